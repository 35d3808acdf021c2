package errsink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(limit int) *Sink {
	s := New("📋 Ежедневный отчёт об ошибках:", limit, time.UTC)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestReportFormatsAndTruncates(t *testing.T) {
	t.Parallel()
	s := newTestSink(50)

	s.Report("boom")
	s.Report(strings.Repeat("я", MaxEntryLen+10))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "[2024-05-01 09:00:00] boom", entries[0])
	assert.True(t, strings.HasSuffix(entries[1], strings.Repeat("я", 3)+" ... [truncated]"))
	assert.Equal(t, len("[2024-05-01 09:00:00] ")+MaxEntryLen+len(" ... [truncated]"), len([]rune(entries[1])))
}

func TestFlushEmpty(t *testing.T) {
	t.Parallel()
	s := newTestSink(50)
	called := false
	err := s.Flush(context.Background(), func(context.Context, string) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrEmpty)
	assert.False(t, called)
}

func TestFlushDeliversLastEntries(t *testing.T) {
	t.Parallel()
	s := newTestSink(2)
	s.Report("one")
	s.Report("two")
	s.Report("three")

	var got string
	require.NoError(t, s.Flush(context.Background(), func(_ context.Context, text string) error {
		got = text
		return nil
	}))

	assert.Equal(t, "📋 Ежедневный отчёт об ошибках:\n\n[2024-05-01 09:00:00] two\n[2024-05-01 09:00:00] three", got)
	assert.Zero(t, s.Len())
}

func TestFlushKeepsQueueOnFailure(t *testing.T) {
	t.Parallel()
	s := newTestSink(50)
	s.Report("one")

	err := s.Flush(context.Background(), func(context.Context, string) error {
		return errors.New("telegram down")
	})
	require.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestFlushKeepsEntriesReportedDuringDelivery(t *testing.T) {
	t.Parallel()
	s := newTestSink(50)
	s.Report("before")

	require.NoError(t, s.Flush(context.Background(), func(context.Context, string) error {
		s.Report("during")
		return nil
	}))
	require.Equal(t, 1, s.Len())
	assert.Contains(t, s.Entries()[0], "during")
}

func TestDigestFitsMessageLimit(t *testing.T) {
	t.Parallel()
	s := newTestSink(50)
	for i := range 20 {
		s.Report(fmt.Sprintf("%d %s", i, strings.Repeat("x", 900)))
	}

	var got string
	require.NoError(t, s.Flush(context.Background(), func(_ context.Context, text string) error {
		got = text
		return nil
	}))
	assert.LessOrEqual(t, len([]rune(got)), MaxDigestLen)
	assert.Contains(t, got, "19 xxx")
}

func TestReportConcurrent(t *testing.T) {
	t.Parallel()
	s := newTestSink(50)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				s.Report("e")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, s.Len())
}
