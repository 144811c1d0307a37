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

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  port: "5432"
  user: postgres
  password: postgres
  dbname: market_data
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, 2, cfg.RateLimit.MaxCallsPerMinute)
	assert.Equal(t, 120, cfg.RateLimit.MaxCallsPerDay)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.MinCallInterval)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "exponential", cfg.Retry.Strategy)
	assert.Equal(t, 5*time.Minute, cfg.Retry.MaxDelay)
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.CircuitBreaker.Timeout)
	assert.Equal(t, 30, cfg.Download.DefaultMaxUnits)
	assert.Equal(t, time.Second, cfg.Download.TaskInterval)
	assert.Equal(t, 80.0, cfg.Download.LowCoverageRate)
	assert.Equal(t, 100, cfg.Download.LowCoverageLimit)
	assert.Equal(t, "2020-01-01", cfg.Download.DefaultStartDate)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "0 9 * * *", cfg.Scheduler.Cron)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
ratelimit:
  maxCallsPerMinute: 10
  maxCallsPerDay: 500
retry:
  strategy: linear
download:
  defaultMaxUnits: 90
scheduler:
  enabled: true
  windowDays: 14
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 10, cfg.RateLimit.MaxCallsPerMinute)
	assert.Equal(t, 500, cfg.RateLimit.MaxCallsPerDay)
	assert.Equal(t, "linear", cfg.Retry.Strategy)
	assert.Equal(t, 90, cfg.Download.DefaultMaxUnits)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 14, cfg.Scheduler.WindowDays)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
