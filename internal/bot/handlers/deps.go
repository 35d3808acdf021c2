package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot/models"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
	"github.com/Dev-PGVAA/tg-group-bot/internal/errsink"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
)

// Messenger sends replies. telegram.Sender implements it.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, threadID int, text string, markup models.ReplyMarkup) (int, error)
	SendPNG(ctx context.Context, chatID int64, threadID int, name string, data []byte, caption string) error
	Delete(ctx context.Context, chatID int64, messageID int)
	AnswerCallback(ctx context.Context, callbackID string)
}

// RecordStore is the part of the store the record handlers use.
type RecordStore interface {
	Records(ctx context.Context) []store.Record
	PutRecord(ctx context.Context, user, movement string, weight float64) (store.Record, bool, store.Outcome)
	TopTotals(ctx context.Context, n int) []store.UserTotal
}

// TableRenderer draws the records table.
type TableRenderer interface {
	Table(records []store.Record) ([]byte, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     RecordStore
	Messenger Messenger
	Renderer  TableRenderer
	Sink      errsink.Reporter
	Sessions  *Sessions
	// FlushErrors delivers the pending error digest now.
	FlushErrors func(ctx context.Context) error
}

// replyThread picks the thread for a reply: the message's own thread,
// else the configured records topic.
func (d HandlerDeps) replyThread(msg *models.Message) int {
	if msg != nil && msg.MessageThreadID != 0 {
		return msg.MessageThreadID
	}
	return d.Config.Telegram.RecordsTopic
}

// report logs err and queues it for the operator digest.
func (d HandlerDeps) report(ctx context.Context, update *models.Update, what string, err error) {
	chatID, userID := updateOrigin(update)
	d.Logger.ErrorContext(ctx, what, "error", err, "chat_id", chatID, "user_id", userID)
	if d.Sink != nil {
		d.Sink.Report(formatOrigin(chatID, userID) + what + ": " + err.Error())
	}
}
