// Package store persists the groupbot documents (channel set, forward
// stats, records) behind a small key/document contract.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
)

// Document keys.
const (
	KeyChannels = "channels"
	KeyStats    = "stats"
	KeyRecords  = "records"
)

// ErrNotFound is returned by a Backend when a key has never been written.
var ErrNotFound = errors.New("document not found")

// Backend stores raw JSON documents by key.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Close() error
}

// Maintainer is implemented by backends that support periodic compaction.
type Maintainer interface {
	Maintain(ctx context.Context) error
}

// OpenBackend creates the backend selected by cfg.Driver.
func OpenBackend(cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case "", "json":
		return NewJSONBackend(cfg.Dir)
	case "sqlite":
		return NewSQLiteBackend(cfg.SQLitePath)
	case "bolt":
		return NewBoltBackend(cfg.BoltPath, cfg.BoltTimeout)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Open creates the configured backend and wraps it in a Store.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	backend, err := OpenBackend(cfg.Store)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		backend.Close()
		return nil, err
	}
	return New(backend, logger, Options{
		Policy:     RecordPolicy(cfg.Records.Policy),
		DateFormat: cfg.Records.DateFormat,
		Location:   loc,
	}), nil
}
