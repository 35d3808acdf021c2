package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
	"github.com/Dev-PGVAA/tg-group-bot/internal/errsink"
	"github.com/Dev-PGVAA/tg-group-bot/internal/store"
)

const (
	groupID      = int64(-100500)
	recordsTopic = 3
)

type sentMessage struct {
	ChatID int64
	Thread int
	Text   string
	Markup models.ReplyMarkup
}

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	sent    []sentMessage
	photos  []sentMessage
	deleted []int
	answers []string
	failAll error
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, threadID int, text string, markup models.ReplyMarkup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return 0, f.failAll
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Thread: threadID, Text: text, Markup: markup})
	return f.nextID, nil
}

func (f *fakeMessenger) SendPNG(_ context.Context, chatID int64, threadID int, _ string, _ []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	f.photos = append(f.photos, sentMessage{ChatID: chatID, Thread: threadID, Text: caption})
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, _ int64, messageID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, id)
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

type fakeRenderer struct {
	calls int
	err   error
}

func (r *fakeRenderer) Table(records []store.Record) ([]byte, error) {
	r.calls++
	return []byte("png"), r.err
}

type fixture struct {
	deps      HandlerDeps
	messenger *fakeMessenger
	store     *store.Store
	sink      *errsink.Sink
	renderer  *fakeRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  group_id: -100500\n  records_topic: 3\n  admin_id: 99\n"), 0o600))
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	backend, err := store.NewJSONBackend(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(backend, logger, store.Options{
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})

	f := &fixture{
		messenger: &fakeMessenger{},
		store:     st,
		sink:      errsink.New("errors", 50, time.UTC),
		renderer:  &fakeRenderer{},
	}
	f.deps = HandlerDeps{
		Logger:    logger,
		Config:    cfg,
		Store:     st,
		Messenger: f.messenger,
		Renderer:  f.renderer,
		Sink:      f.sink,
		Sessions:  NewSessions(),
	}
	return f
}

func textUpdate(userID int64, username string, thread int, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		ID:              100,
		Chat:            models.Chat{ID: groupID},
		From:            &models.User{ID: userID, Username: username, FirstName: "Name"},
		MessageThreadID: thread,
		Text:            text,
	}}
}

func callbackUpdate(userID int64, data string) *models.Update {
	return &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:      "cb1",
		From:    models.User{ID: userID, Username: "ivan"},
		Data:    data,
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{ID: 1, Chat: models.Chat{ID: groupID}}},
	}}
}

func TestParseWeight(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"100", 100, true},
		{"87,5", 87.5, true},
		{"87.5 кг", 87.5, true},
		{"вес 120кг", 120, true},
		{"100.", 100, true},
		{"много", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseWeight(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestHelpUsesRecordsTopicOutsideThreads(t *testing.T) {
	f := newFixture(t)
	NewHelpHandler(f.deps)(context.Background(), nil, textUpdate(1, "ivan", 0, "/help"))

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, recordsTopic, f.messenger.sent[0].Thread)
	assert.Contains(t, f.messenger.sent[0].Text, "/sil")
}

func TestSilPresetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	NewSilHandler(f.deps)(ctx, nil, textUpdate(1, "ivan", 7, "/sil"))
	require.Len(t, f.messenger.sent, 1)
	kb, ok := f.messenger.sent[0].Markup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "Жим", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "sil:custom", kb.InlineKeyboard[1][1].CallbackData)
	assert.Equal(t, 7, f.messenger.sent[0].Thread)

	NewMovementCallbackHandler(f.deps)(ctx, nil, callbackUpdate(1, "sil:bench"))
	assert.Equal(t, []string{"cb1"}, f.messenger.answers)
	assert.Equal(t, []int{1}, f.messenger.deleted, "menu removed")
	assert.Equal(t, "Введи вес в кг:", f.messenger.texts()[1])

	NewTextHandler(f.deps)(ctx, nil, textUpdate(1, "ivan", 7, "100кг"))
	assert.Equal(t, []int{1, 2}, f.messenger.deleted, "prompt removed")

	texts := f.messenger.texts()
	assert.Contains(t, texts, "✅ Записано: @ivan — 100 кг в ЖИМ")
	assert.Contains(t, texts, "💥 НОВЫЙ РЕКОРД!\n@ivan — 100 кг в ЖИМ!")

	records := f.store.Records(ctx)
	require.Len(t, records, 1)
	assert.Equal(t, store.Record{User: "@ivan", Movement: "Жим", Weight: 100, Date: "01.03.2025"}, records[0])

	_, ok = f.deps.Sessions.get(1)
	assert.False(t, ok, "dialogue finished")
}

func TestSilCustomMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	NewMovementCallbackHandler(f.deps)(ctx, nil, callbackUpdate(2, "sil:custom"))
	NewTextHandler(f.deps)(ctx, nil, textUpdate(2, "", 0, "Подтягивания"))
	assert.Equal(t, "Теперь введи вес для Подтягивания (пример: 100кг):", f.messenger.texts()[1])

	NewTextHandler(f.deps)(ctx, nil, textUpdate(2, "", 0, "20,5"))
	records := f.store.Records(ctx)
	require.Len(t, records, 1)
	assert.Equal(t, "Name", records[0].User)
	assert.Equal(t, "Подтягивания", records[0].Movement)
	assert.InDelta(t, 20.5, records[0].Weight, 1e-9)
}

func TestUnparsedWeightKeepsDialogue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	NewMovementCallbackHandler(f.deps)(ctx, nil, callbackUpdate(1, "sil:squat"))
	NewTextHandler(f.deps)(ctx, nil, textUpdate(1, "ivan", 0, "тяжело"))

	assert.Equal(t, "⚠️ Вес не распознан. Пример: 100 или 87.5", f.messenger.texts()[1])
	assert.Empty(t, f.store.Records(ctx))
	sess, ok := f.deps.Sessions.get(1)
	require.True(t, ok)
	assert.Equal(t, "squat", sess.Movement)
}

func TestTextWithoutDialogueIsIgnored(t *testing.T) {
	f := newFixture(t)
	NewTextHandler(f.deps)(context.Background(), nil, textUpdate(1, "ivan", 0, "100"))
	assert.Empty(t, f.messenger.sent)
	assert.Empty(t, f.store.Records(context.Background()))
}

func TestNoAnnouncementWhenNotBest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, _ = f.store.PutRecord(ctx, "@olga", "Жим", 120)

	NewMovementCallbackHandler(f.deps)(ctx, nil, callbackUpdate(1, "sil:bench"))
	NewTextHandler(f.deps)(ctx, nil, textUpdate(1, "ivan", 0, "100"))

	for _, text := range f.messenger.texts() {
		assert.NotContains(t, text, "НОВЫЙ РЕКОРД")
	}
}

func TestTopAndTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, _ = f.store.PutRecord(ctx, "@a", "Жим", 100)
	_, _, _ = f.store.PutRecord(ctx, "@a", "Присед", 150.7)
	_, _, _ = f.store.PutRecord(ctx, "@b", "Жим", 300)

	NewTopHandler(f.deps)(ctx, nil, textUpdate(1, "ivan", 0, "/top"))
	assert.Equal(t, "🏆 Топ по сумме:\n@b — 300 кг\n@a — 250 кг", f.messenger.texts()[0])

	NewTableHandler(f.deps)(ctx, nil, textUpdate(1, "ivan", 0, "/table"))
	require.Len(t, f.messenger.photos, 1)
	assert.Equal(t, "📊 Таблица рекордов", f.messenger.photos[0].Text)
	assert.Equal(t, recordsTopic, f.messenger.photos[0].Thread)
}

func TestSendFailuresReachTheSink(t *testing.T) {
	f := newFixture(t)
	f.messenger.failAll = errors.New("telegram down")

	NewHelpHandler(f.deps)(context.Background(), nil, textUpdate(1, "ivan", 0, "/help"))
	entries := f.sink.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "[chat_id=-100500 user_id=1]")
	assert.Contains(t, entries[0], "telegram down")
}

func TestRecoverReportsPanics(t *testing.T) {
	f := newFixture(t)
	h := Recover(f.deps)(func(context.Context, *bot.Bot, *models.Update) { panic("boom") })

	require.NotPanics(t, func() { h(context.Background(), nil, textUpdate(1, "ivan", 0, "/sil")) })
	entries := f.sink.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "panic: boom")
}

func TestAdminOnly(t *testing.T) {
	f := newFixture(t)
	calls := 0
	h := AdminOnly(f.deps)(func(context.Context, *bot.Bot, *models.Update) { calls++ })

	h(context.Background(), nil, textUpdate(1, "ivan", 0, "/errors"))
	assert.Equal(t, 0, calls)
	h(context.Background(), nil, textUpdate(99, "admin", 0, "/errors"))
	assert.Equal(t, 1, calls)
}

func TestRegistryHasErrorsOnlyWithFlush(t *testing.T) {
	f := newFixture(t)
	assert.NotContains(t, RegisterAllCommands(f.deps), "/errors")

	f.deps.FlushErrors = func(context.Context) error { return nil }
	all := RegisterAllCommands(f.deps)
	assert.Contains(t, all, "/errors")
	assert.Len(t, all["/errors"].Middleware, 2)
	for name, h := range all {
		assert.NotNil(t, h.Handler, name)
	}
}
