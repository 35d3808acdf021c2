//go:build unix

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dev-PGVAA/tg-group-bot/internal/config"
)

func newTestSupervisor(t *testing.T, bots ...config.BotTarget) *Supervisor {
	t.Helper()
	s, err := New(config.SupervisorConfig{
		LogDir:      t.TempDir(),
		GracePeriod: 300 * time.Millisecond,
		StopTimeout: 500 * time.Millisecond,
		TailLines:   10,
		Bots:        bots,
	}, "", slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func shBot(name, script string) config.BotTarget {
	return config.BotTarget{Name: name, Command: "/bin/sh", Args: []string{"-c", script}}
}

func TestStartMissingTarget(t *testing.T) {
	s := newTestSupervisor(t, config.BotTarget{Name: "Forwarder", Command: "/nonexistent/forwarder"})

	res, err := s.Control(context.Background(), "Forwarder", ActionStart)
	require.NoError(t, err)
	assert.Equal(t, "error", res.Status)
	assert.Contains(t, res.Message, ReasonNotFound)

	_, err = s.Start(context.Background(), "Forwarder")
	var se *StartError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ReasonNotFound, se.Reason)

	st, err := s.Status("Forwarder")
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Zero(t, st.PID)
	hasCmd, hasLog := s.bots["Forwarder"].handles()
	assert.False(t, hasCmd)
	assert.False(t, hasLog)
}

func TestStartRunStop(t *testing.T) {
	s := newTestSupervisor(t, shBot("Sleeper", "echo hello; exec sleep 30"))
	ctx := context.Background()

	msg, err := s.Start(ctx, "Sleeper")
	require.NoError(t, err)
	assert.Equal(t, "started", msg)

	st, err := s.Status("Sleeper")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, StateRunning, st.State)
	assert.NotZero(t, st.PID)

	lines, err := s.Tail("Sleeper", 5)
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.Equal(t, "hello", lines[len(lines)-1])
	assert.True(t, strings.HasPrefix(lines[len(lines)-2], "=== Sleeper started at "))

	msg, err = s.Stop(ctx, "Sleeper")
	require.NoError(t, err)
	assert.Equal(t, "stopped", msg)

	st, _ = s.Status("Sleeper")
	assert.False(t, st.Active)
	assert.Equal(t, StateStopped, st.State)
	hasCmd, hasLog := s.bots["Sleeper"].handles()
	assert.False(t, hasCmd)
	assert.False(t, hasLog)

	msg, err = s.Stop(ctx, "Sleeper")
	require.NoError(t, err)
	assert.Equal(t, "not running", msg)
}

func TestStartTwiceSpawnsOnce(t *testing.T) {
	s := newTestSupervisor(t, shBot("Sleeper", "exec sleep 30"))
	ctx := context.Background()

	_, err := s.Start(ctx, "Sleeper")
	require.NoError(t, err)
	first, _ := s.Status("Sleeper")

	msg, err := s.Start(ctx, "Sleeper")
	require.NoError(t, err)
	assert.Equal(t, "already running", msg)

	second, _ := s.Status("Sleeper")
	assert.Equal(t, first.PID, second.PID)
}

func TestConcurrentStartSpawnsOnce(t *testing.T) {
	s := newTestSupervisor(t, shBot("Sleeper", "exec sleep 30"))
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		msgs []string
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := s.Start(ctx, "Sleeper")
			assert.NoError(t, err)
			mu.Lock()
			msgs = append(msgs, msg)
			mu.Unlock()
		}()
	}
	wg.Wait()

	started := 0
	for _, m := range msgs {
		if m == "started" {
			started++
		}
	}
	assert.Equal(t, 1, started)
}

func TestStartImmediateCrash(t *testing.T) {
	s := newTestSupervisor(t, shBot("Crasher", "echo 'token missing' >&2; exit 3"))

	_, err := s.Start(context.Background(), "Crasher")
	var se *StartError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ReasonExited, se.Reason)
	assert.Contains(t, se.Tail, "token missing")

	st, _ := s.Status("Crasher")
	assert.False(t, st.Active)
	assert.Equal(t, StateCrashed, st.State)

	res, err := s.Control(context.Background(), "Crasher", ActionStart)
	require.NoError(t, err)
	assert.Equal(t, "error", res.Status)
	assert.Contains(t, res.Tail, "token missing")
}

func TestStatusDetectsSilentDeath(t *testing.T) {
	s := newTestSupervisor(t, shBot("Short", "sleep 0.6; exit 2"))

	_, err := s.Start(context.Background(), "Short")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, _ := s.Status("Short")
		return st.State == StateCrashed
	}, 3*time.Second, 50*time.Millisecond)

	st, _ := s.Status("Short")
	assert.False(t, st.Active)
	assert.Zero(t, st.PID)
}

func TestStatusCleanExitIsStopped(t *testing.T) {
	s := newTestSupervisor(t, shBot("Short", "sleep 0.6"))

	_, err := s.Start(context.Background(), "Short")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, _ := s.Status("Short")
		return st.State == StateStopped
	}, 3*time.Second, 50*time.Millisecond)
}

func TestStopEscalatesToKill(t *testing.T) {
	s := newTestSupervisor(t, shBot("Stubborn", "trap '' TERM; while true; do sleep 0.1; done"))
	ctx := context.Background()

	_, err := s.Start(ctx, "Stubborn")
	require.NoError(t, err)

	begin := time.Now()
	_, err = s.Stop(ctx, "Stubborn")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(begin), 500*time.Millisecond)

	st, _ := s.Status("Stubborn")
	assert.Equal(t, StateStopped, st.State)
}

func TestRestart(t *testing.T) {
	s := newTestSupervisor(t, shBot("Sleeper", "exec sleep 30"))
	ctx := context.Background()

	msg, err := s.Restart(ctx, "Sleeper")
	require.NoError(t, err)
	assert.Equal(t, "restarted", msg)
	first, _ := s.Status("Sleeper")

	_, err = s.Restart(ctx, "Sleeper")
	require.NoError(t, err)
	second, _ := s.Status("Sleeper")

	assert.True(t, second.Active)
	assert.NotEqual(t, first.PID, second.PID)
}

func TestControlUnknown(t *testing.T) {
	s := newTestSupervisor(t, shBot("Sleeper", "exec sleep 30"))

	res, err := s.Control(context.Background(), "Nope", ActionStart)
	assert.ErrorIs(t, err, ErrUnknownBot)
	assert.Equal(t, "error", res.Status)

	_, err = s.Control(context.Background(), "Sleeper", "pause")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestShutdownStopsAll(t *testing.T) {
	s := newTestSupervisor(t,
		shBot("A", "exec sleep 30"),
		shBot("B", "exec sleep 30"),
	)
	ctx := context.Background()
	for _, name := range []string{"A", "B"} {
		_, err := s.Start(ctx, name)
		require.NoError(t, err)
	}

	require.NoError(t, s.Shutdown(ctx))
	for _, st := range s.List() {
		assert.False(t, st.Active, st.Name)
	}
}

func TestAutostart(t *testing.T) {
	bot := shBot("Auto", "exec sleep 30")
	bot.Autostart = true
	s := newTestSupervisor(t, bot, shBot("Manual", "exec sleep 30"))

	s.Autostart(context.Background())

	list := s.List()
	require.Len(t, list, 2)
	assert.True(t, list[0].Active)
	assert.False(t, list[1].Active)
}

func TestRotateLog(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "forwarder.log")
	content := strings.Repeat("line\n", 100)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	archive, err := rotateLog(path, 100, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "forwarder-20240102-030405.log.gz"), archive)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	f, err := os.Open(archive)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	archive, err = rotateLog(path, 100, time.Now())
	require.NoError(t, err)
	assert.Empty(t, archive)
}

func TestTailFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "x.log")

	var b strings.Builder
	for i := range 5000 {
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString("\n")
	}
	b.WriteString("last\n")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	lines, err := TailFile(path, 3)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "last", lines[2])

	_, err = TailFile(filepath.Join(t.TempDir(), "absent"), 3)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLogFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "forwarder.log", logFileName("Forwarder"))
	assert.Equal(t, "sil_bot.log", logFileName("Sil Bot"))
	assert.Equal(t, "bot.log", logFileName("!!"))
}

func TestStateJSONRoundTrip(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(BotStatus{Name: "Records", State: StateRunning})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"running"`)

	var st BotStatus
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, StateRunning, st.State)

	assert.Error(t, json.Unmarshal([]byte(`{"state":"sleeping"}`), &st))
}

func TestStartSurvivesCallerCancel(t *testing.T) {
	s := newTestSupervisor(t, shBot("Sleeper", "exec sleep 30"))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	msg, err := s.Start(ctx, "Sleeper")
	require.NoError(t, err)
	assert.Equal(t, "started", msg)

	st, err := s.Status("Sleeper")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, StateRunning, st.State)
}

func TestStartWithCanceledContextDoesNotSpawn(t *testing.T) {
	s := newTestSupervisor(t, shBot("Sleeper", "exec sleep 30"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Start(ctx, "Sleeper")
	var se *StartError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ReasonSpawn, se.Reason)

	hasCmd, _ := s.bots["Sleeper"].handles()
	assert.False(t, hasCmd)
}

func TestChildEnvironment(t *testing.T) {
	t.Setenv("PYTHONUNBUFFERED", "1")
	require.NoError(t, os.Unsetenv("PYTHONUNBUFFERED"))
	s := newTestSupervisor(t, shBot("Env", "env; exec sleep 30"))

	_, err := s.Start(context.Background(), "Env")
	require.NoError(t, err)

	lines, err := s.Tail("Env", 200)
	require.NoError(t, err)
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "GROUPBOT_BOT_NAME=Env")
	assert.NotContains(t, joined, "PYTHONUNBUFFERED")
}
