package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  group_id: -100123\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, int64(-100123), cfg.Telegram.GroupID)
	assert.Equal(t, DefaultStoreDriver, cfg.Store.Driver)
	assert.Equal(t, DefaultForwarderRefreshEvery, cfg.Forwarder.RefreshEvery)
	assert.Equal(t, 10*time.Second, cfg.Forwarder.ReconnectBackoff)
	assert.Equal(t, 5*time.Second, cfg.Supervisor.StopTimeout)
	require.Len(t, cfg.Supervisor.Bots, 2)
	assert.Equal(t, "Forwarder", cfg.Supervisor.Bots[0].Name)
	assert.Equal(t, []string{"forwarder"}, cfg.Supervisor.Bots[0].Args)
	require.Len(t, cfg.Records.Movements, 3)
	assert.Equal(t, "Жим", cfg.Records.Movements[0].Name)
	assert.Equal(t, "🏆 Топ по сумме:", cfg.Messages.TopHeader)
	assert.Equal(t, path, cfg.Path)

	digest, ok := cfg.Scheduler.Tasks["error_digest"]
	require.True(t, ok)
	assert.True(t, digest.Enabled)
	assert.Equal(t, "0 0 9 * * *", digest.Schedule)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
telegram:
  group_id: -1
  forward_topic: 7
store:
  driver: bolt
records:
  policy: append
  movements:
    - key: press
      name: Жим стоя
supervisor:
  stop_timeout: 2s
  bots:
    - name: Echo
      command: /bin/echo
      args: ["hi"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Telegram.ForwardTopic)
	assert.Equal(t, "bolt", cfg.Store.Driver)
	assert.Equal(t, "append", cfg.Records.Policy)
	assert.Equal(t, []Movement{{Key: "press", Name: "Жим стоя"}}, cfg.Records.Movements)
	assert.Equal(t, 2*time.Second, cfg.Supervisor.StopTimeout)
	require.Len(t, cfg.Supervisor.Bots, 1)
	assert.Equal(t, "/bin/echo", cfg.Supervisor.Bots[0].Command)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "telegram:\n  group_id: -1\n")
	t.Setenv("BOT_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("BOT_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_GROUP_ID", "-42")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, int64(-42), cfg.Telegram.GroupID)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing group", "log:\n  level: info\n"},
		{"bad driver", "telegram:\n  group_id: -1\nstore:\n  driver: redis\n"},
		{"bad policy", "telegram:\n  group_id: -1\nrecords:\n  policy: merge\n"},
		{"bad level", "telegram:\n  group_id: -1\nlog:\n  level: loud\n"},
		{"bad timezone", "telegram:\n  group_id: -1\nreports:\n  timezone: Mars/Olympus\n"},
		{"duplicate bots", "telegram:\n  group_id: -1\nsupervisor:\n  bots:\n    - name: A\n    - name: A\n"},
		{"task without schedule", "telegram:\n  group_id: -1\nscheduler:\n  tasks:\n    extra:\n      enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestRequireToken(t *testing.T) {
	t.Parallel()

	_, err := RequireToken("forwarder.token", "")
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "forwarder.token")

	tok, err := RequireToken("telegram.token", "x")
	require.NoError(t, err)
	assert.Equal(t, "x", tok)
}
