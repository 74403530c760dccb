package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	req := require.New(t)
	t.Setenv("IM_AUTH_SECRET", "s3cret")
	t.Setenv("IM_NOTIFY_BATCH_SIZE", "50")

	cfg, err := LoadConfig("", nil)

	req.NoError(err)
	req.Equal("s3cret", cfg.Auth.Secret)
	req.Equal(50, cfg.Notify.BatchSize)
	req.Equal(":8080", cfg.HTTP.Addr)
	req.Equal(256, cfg.Registry.MailboxSize)
	req.Equal(25*time.Second, cfg.HTTP.PingInterval)
	req.Equal("log", cfg.Push.Provider)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte(`
auth:
  secret: from-file
http:
  addr: ":9000"
log:
  level: warn
`), 0o600))

	cfg, err := LoadConfig(path, []string{"--http.addr=:9100"})

	req.NoError(err)
	req.Equal("from-file", cfg.Auth.Secret)
	req.Equal(":9100", cfg.HTTP.Addr)
	req.Equal("warn", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	req := require.New(t)
	t.Setenv("IM_AUTH_SECRET", "")

	_, err := LoadConfig("", nil)
	req.Error(err)

	t.Setenv("IM_AUTH_SECRET", "x")
	t.Setenv("IM_PUSH_PROVIDER", "http")
	_, err = LoadConfig("", nil)
	req.ErrorContains(err, "Endpoint")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
