package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var documentsBucket = []byte("documents")

// BoltBackend keeps every document in one bbolt bucket. bbolt holds an
// exclusive file lock while open, so the database is opened per operation
// and several groupbot processes can take turns on the same file.
type BoltBackend struct {
	path    string
	timeout time.Duration
}

// NewBoltBackend creates the database file and bucket if needed.
func NewBoltBackend(path string, timeout time.Duration) (*BoltBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path is empty")
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bolt directory: %w", err)
	}

	b := &BoltBackend{path: path, timeout: timeout}
	err := b.with(false, func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BoltBackend) with(readOnly bool, fn func(tx *bbolt.Tx) error) error {
	db, err := bbolt.Open(b.path, 0o600, &bbolt.Options{Timeout: b.timeout, ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("failed to open bolt database: %w", err)
	}
	defer db.Close()

	if readOnly {
		return db.View(fn)
	}
	return db.Update(fn)
}

// Read returns the stored document or ErrNotFound.
func (b *BoltBackend) Read(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.with(true, func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(documentsBucket)
		if bucket == nil {
			return ErrNotFound
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// data is only valid inside the transaction
		out = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write stores data under key.
func (b *BoltBackend) Write(_ context.Context, key string, data []byte) error {
	return b.with(false, func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(documentsBucket)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), data)
	})
}

// Close is a no-op; nothing stays open between operations.
func (b *BoltBackend) Close() error { return nil }
