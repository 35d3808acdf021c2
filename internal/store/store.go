package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// RecordPolicy decides what PutRecord does with an existing (user, movement) entry.
type RecordPolicy string

const (
	// PolicyReplace keeps one entry per (user, movement).
	PolicyReplace RecordPolicy = "replace"
	// PolicyAppend keeps every entry as history.
	PolicyAppend RecordPolicy = "append"
)

// Options tune a Store.
type Options struct {
	Policy     RecordPolicy
	DateFormat string
	Location   *time.Location
	Now        func() time.Time
}

// Store exposes the typed documents on top of a Backend. Read-modify-write
// cycles are serialized inside one process only; separate processes sharing
// the same backend race and the last write wins.
type Store struct {
	backend  Backend
	logger   *slog.Logger
	validate *validator.Validate
	opts     Options

	mu sync.Mutex
}

// New wraps backend. Zero option fields get defaults.
func New(backend Backend, logger *slog.Logger, opts Options) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Policy == "" {
		opts.Policy = PolicyReplace
	}
	if opts.DateFormat == "" {
		opts.DateFormat = "02.01.2006"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		backend:  backend,
		logger:   logger.With("component", "store"),
		validate: validator.New(),
		opts:     opts,
	}
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Maintain runs backend compaction when the backend supports it.
func (s *Store) Maintain(ctx context.Context) error {
	m, ok := s.backend.(Maintainer)
	if !ok {
		return nil
	}
	return m.Maintain(ctx)
}

// Load decodes the document under key into a value of type T. A missing
// document is created from def; an unreadable or corrupt one yields def
// and is left untouched on disk.
func Load[T any](ctx context.Context, s *Store, key string, def T) T {
	data, err := s.backend.Read(ctx, key)
	if errors.Is(err, ErrNotFound) {
		Save(ctx, s, key, def)
		return def
	}
	if err != nil {
		s.logger.Warn("Failed to read document, using default", "key", key, "error", err)
		return def
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("Corrupt document, using default", "key", key, "error", err)
		return def
	}
	return out
}

// Save encodes doc and writes it under key. Failures are logged and
// reported through the return value for callers that care.
func Save[T any](ctx context.Context, s *Store, key string, doc T) bool {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.logger.Error("Failed to encode document", "key", key, "error", err)
		return false
	}
	if err := s.backend.Write(ctx, key, data); err != nil {
		s.logger.Error("Failed to save document", "key", key, "error", err)
		return false
	}
	return true
}

// filterValid drops entries failing their validate tags.
func filterValid[T any](s *Store, key string, items []T) []T {
	out := items[:0]
	for i, item := range items {
		if err := s.validate.Struct(item); err != nil {
			s.logger.Warn("Dropping malformed entry", "key", key, "index", i, "error", err)
			continue
		}
		out = append(out, item)
	}
	return out
}

func (s *Store) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}
