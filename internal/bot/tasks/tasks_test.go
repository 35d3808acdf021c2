package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
	"github.com/Dev-PGVAA/tg-group-bot/internal/errsink"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
)

type sent struct {
	chatID int64
	thread int
	text   string
}

type fakeSender struct {
	texts  []sent
	photos []sent
	err    error
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, threadID int, text string, _ models.ReplyMarkup) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.texts = append(f.texts, sent{chatID, threadID, text})
	return len(f.texts), nil
}

func (f *fakeSender) SendPNG(_ context.Context, chatID int64, threadID int, _ string, _ []byte, caption string) error {
	if f.err != nil {
		return f.err
	}
	f.photos = append(f.photos, sent{chatID, threadID, caption})
	return nil
}

type staticRecords []store.Record

func (s staticRecords) Records(context.Context) []store.Record { return s }

type pngRenderer struct{ rendered [][]store.Record }

func (r *pngRenderer) Table(records []store.Record) ([]byte, error) {
	r.rendered = append(r.rendered, records)
	return []byte("png"), nil
}

type countingMaintainer struct {
	calls int
	err   error
}

func (m *countingMaintainer) Maintain(context.Context) error {
	m.calls++
	return m.err
}

func testDeps(t *testing.T) (TaskDeps, *fakeSender) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "telegram:\n  group_id: -100500\n  forward_topic: 4\n  admin_id: 99\nreports:\n  requests_dir: " + filepath.Join(dir, "requests") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	sender := &fakeSender{}
	return TaskDeps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:   cfg,
		Sender:   sender,
		Sink:     errsink.New(cfg.Messages.ErrorDigestHeader, 50, time.UTC),
		Records:  staticRecords{{User: "@a", Movement: "Жим", Weight: 100, Date: "01.03.2025"}},
		Store:    &countingMaintainer{},
		Renderer: &pngRenderer{},
		Now:      func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) },
	}, sender
}

func TestRegisterAllTasksDependsOnDeps(t *testing.T) {
	deps, _ := testDeps(t)
	assert.Len(t, RegisterAllTasks(deps), 4)

	deps.Records = nil
	deps.Store = nil
	got := RegisterAllTasks(deps)
	assert.Len(t, got, 1)
	assert.Contains(t, got, ErrorDigest)
}

func TestErrorDigest(t *testing.T) {
	deps, sender := testDeps(t)
	task := RegisterAllTasks(deps)[ErrorDigest]
	ctx := context.Background()

	require.NoError(t, task(ctx), "empty queue is not an error")
	assert.Empty(t, sender.texts)

	deps.Sink.Report("Forwarder FloodWait 30s: @news")
	require.NoError(t, task(ctx))
	require.Len(t, sender.texts, 1)
	assert.Equal(t, int64(99), sender.texts[0].chatID)
	assert.Contains(t, sender.texts[0].text, "📋 Ежедневный отчёт об ошибках:")
	assert.Contains(t, sender.texts[0].text, "FloodWait 30s")
	assert.Zero(t, deps.Sink.Len())
}

func TestErrorDigestKeepsEntriesOnFailure(t *testing.T) {
	deps, sender := testDeps(t)
	sender.err = errors.New("network")
	deps.Sink.Report("boom")

	err := RegisterAllTasks(deps)[ErrorDigest](context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, deps.Sink.Len())
}

func TestErrorDigestWithoutAdmin(t *testing.T) {
	deps, sender := testDeps(t)
	deps.Config.Telegram.AdminID = 0
	deps.Sink.Report("boom")

	require.Error(t, RegisterAllTasks(deps)[ErrorDigest](context.Background()))
	assert.Empty(t, sender.texts)
	assert.Equal(t, 1, deps.Sink.Len())
}

func TestRecordsReport(t *testing.T) {
	deps, sender := testDeps(t)
	require.NoError(t, RegisterAllTasks(deps)[RecordsReport](context.Background()))

	require.Len(t, sender.photos, 1)
	assert.Equal(t, sent{-100500, 4, "📅 Авто-отчёт (2025-03-14)"}, sender.photos[0])
}

func TestReportTriggerConsumesRequests(t *testing.T) {
	deps, sender := testDeps(t)
	task := RegisterAllTasks(deps)[ReportTrigger]
	ctx := context.Background()

	require.NoError(t, task(ctx), "missing directory means no requests")
	assert.Empty(t, sender.photos)

	dir := deps.Config.Reports.RequestsDir
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range []string{"report_trigger_1", "report_trigger_2", "other.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	require.NoError(t, task(ctx))
	require.Len(t, sender.photos, 1, "one report for all pending requests")
	assert.Equal(t, "📅 Ручной отчёт (2025-03-14 09:30)", sender.photos[0].text)

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "other.txt", left[0].Name())

	require.NoError(t, task(ctx))
	assert.Len(t, sender.photos, 1)
}

func TestReportTriggerKeepsRequestsOnFailure(t *testing.T) {
	deps, sender := testDeps(t)
	sender.err = errors.New("network")
	dir := deps.Config.Reports.RequestsDir
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report_trigger_x"), nil, 0o600))

	require.Error(t, RegisterAllTasks(deps)[ReportTrigger](context.Background()))
	_, err := os.Stat(filepath.Join(dir, "report_trigger_x"))
	assert.NoError(t, err)
	assert.Equal(t, 1, deps.Sink.Len())
}

func TestStoreMaintenance(t *testing.T) {
	deps, _ := testDeps(t)
	m := deps.Store.(*countingMaintainer)
	require.NoError(t, RegisterAllTasks(deps)[StoreMaintenance](context.Background()))
	assert.Equal(t, 1, m.calls)

	m.err = errors.New("locked")
	assert.Error(t, RegisterAllTasks(deps)[StoreMaintenance](context.Background()))
}
