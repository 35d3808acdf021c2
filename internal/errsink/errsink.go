// Package errsink queues operational errors for delivery to the operator
// as a periodic digest.
package errsink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// MaxEntryLen caps one entry, in runes.
	MaxEntryLen = 1000
	// MaxDigestLen is the Telegram text limit, in runes.
	MaxDigestLen = 4096

	truncatedMarker = " ... [truncated]"
	timestampLayout = "2006-01-02 15:04:05"
)

// ErrEmpty is returned by Flush when nothing is queued.
var ErrEmpty = errors.New("error queue is empty")

// Reporter is the narrow interface components report through.
type Reporter interface {
	Report(text string)
}

// DeliverFunc sends a built digest.
type DeliverFunc func(ctx context.Context, text string) error

// Sink is an unbounded in-memory queue of timestamped entries. It is safe
// for concurrent use.
type Sink struct {
	header string
	limit  int
	loc    *time.Location
	now    func() time.Time

	mu      sync.Mutex
	entries []string
}

// New creates a Sink. header prefixes every digest and limit is the number
// of most recent entries a digest includes.
func New(header string, limit int, loc *time.Location) *Sink {
	if loc == nil {
		loc = time.Local
	}
	if limit <= 0 {
		limit = 50
	}
	return &Sink{header: header, limit: limit, loc: loc, now: time.Now}
}

// Report queues text stamped with the current time.
func (s *Sink) Report(text string) {
	if r := []rune(text); len(r) > MaxEntryLen {
		text = string(r[:MaxEntryLen]) + truncatedMarker
	}
	entry := fmt.Sprintf("[%s] %s", s.now().In(s.loc).Format(timestampLayout), text)

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
}

// Reportf formats and queues an entry.
func (s *Sink) Reportf(format string, args ...any) {
	s.Report(fmt.Sprintf(format, args...))
}

// Len returns the number of queued entries.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns a copy of the queue.
func (s *Sink) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entries...)
}

// Flush builds a digest of the most recent entries and hands it to
// deliver. The entries that were part of the digest window are removed
// only when deliver succeeds; entries reported meanwhile stay queued.
func (s *Sink) Flush(ctx context.Context, deliver DeliverFunc) error {
	s.mu.Lock()
	n := len(s.entries)
	if n == 0 {
		s.mu.Unlock()
		return ErrEmpty
	}
	start := max(n-s.limit, 0)
	window := append([]string(nil), s.entries[start:n]...)
	s.mu.Unlock()

	if err := deliver(ctx, s.digest(window)); err != nil {
		return fmt.Errorf("failed to deliver error digest: %w", err)
	}

	s.mu.Lock()
	s.entries = append([]string(nil), s.entries[n:]...)
	s.mu.Unlock()
	return nil
}

// digest joins header and entries, dropping the oldest entries until the
// text fits one message.
func (s *Sink) digest(entries []string) string {
	for {
		text := s.header + "\n\n" + strings.Join(entries, "\n")
		if len([]rune(text)) <= MaxDigestLen || len(entries) == 1 {
			if r := []rune(text); len(r) > MaxDigestLen {
				text = string(r[:MaxDigestLen])
			}
			return text
		}
		entries = entries[1:]
	}
}
