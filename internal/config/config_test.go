package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "remote:\n  base_url: http://localhost:4000\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sync.db", cfg.Storage.Path)
	assert.Equal(t, "http://localhost:4000", cfg.Remote.BaseURL)
	assert.Equal(t, time.Second, cfg.Sync.GetInitialDelay())
	assert.Equal(t, 2.0, cfg.Sync.BackoffMultiplier)
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Sync.GetRetryInterval())
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Connectivity.GetPollInterval())
	assert.True(t, cfg.Connectivity.Optimistic)
	assert.Equal(t, 15*time.Minute, cfg.Cache.GetDefaultTTL())
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: /tmp/engine.db
sync:
  initial_delay: 250ms
  backoff_multiplier: 1.5
  max_attempts: 3
  retry_interval: 90s
scheduler:
  enabled: true
  interval: "@every 5m"
remote:
  base_url: https://api.example.com
  auth_token: tok-123
  timeout: 10s
logging:
  level: debug
  format: console
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/engine.db", cfg.Storage.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.GetInitialDelay())
	assert.Equal(t, 1.5, cfg.Sync.BackoffMultiplier)
	assert.Equal(t, 3, cfg.Sync.MaxAttempts)
	assert.Equal(t, 90*time.Second, cfg.Sync.GetRetryInterval())
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "@every 5m", cfg.Scheduler.Interval)
	assert.Equal(t, "tok-123", cfg.Remote.AuthToken)
	assert.Equal(t, 10*time.Second, cfg.Remote.GetTimeout())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestDurationFallbacks(t *testing.T) {
	s := SyncConfig{InitialDelay: "not-a-duration", RetryInterval: ""}
	assert.Equal(t, time.Second, s.GetInitialDelay())
	assert.Equal(t, 5*time.Minute, s.GetRetryInterval())

	r := RemoteConfig{Timeout: "bogus"}
	assert.Equal(t, 30*time.Second, r.GetTimeout())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
