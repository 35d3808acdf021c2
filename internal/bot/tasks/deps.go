// Package tasks implements the scheduled jobs of the groupbot processes:
// the operator error digest, the records reports and store maintenance.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
	"github.com/Dev-PGVAA/tg-group-bot/internal/errsink"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
)

// Sender delivers task output. telegram.Sender implements it.
type Sender interface {
	SendText(ctx context.Context, chatID int64, threadID int, text string, markup models.ReplyMarkup) (int, error)
	SendPNG(ctx context.Context, chatID int64, threadID int, name string, data []byte, caption string) error
}

// RecordSource provides the records a report shows.
type RecordSource interface {
	Records(ctx context.Context) []store.Record
}

// Maintainer compacts the store.
type Maintainer interface {
	Maintain(ctx context.Context) error
}

// TableRenderer draws the records table.
type TableRenderer interface {
	Table(records []store.Record) ([]byte, error)
}

// TaskDeps contains the dependencies of the scheduled tasks. A task whose
// dependencies are nil is not registered.
type TaskDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Sender   Sender
	Sink     *errsink.Sink
	Records  RecordSource
	Store    Maintainer
	Renderer TableRenderer
	// Now defaults to time.Now in the configured timezone.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	loc, err := d.Config.Location()
	if err != nil {
		return time.Now()
	}
	return time.Now().In(loc)
}
