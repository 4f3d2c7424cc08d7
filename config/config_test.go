package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadParsesDurations(t *testing.T) {
	writeConfig(t, `
db:
  host: localhost
  port: 5432
queue:
  workers: 8
  poll_interval: 250ms
  backoff_base: 2s
  backoff_max: 1m
  drain_timeout: 10s
scheduler:
  ingest_interval: 10m
  ingest_window: 30m
`)

	cfg := Load()

	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Queue.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Queue.BackoffBase)
	assert.Equal(t, time.Minute, cfg.Queue.BackoffMax)
	assert.Equal(t, 10*time.Second, cfg.Queue.DrainTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.IngestInterval)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.IngestWindow)
}

func TestLoadAppliesDefaults(t *testing.T) {
	writeConfig(t, `
db:
  host: localhost
`)

	cfg := Load()

	assert.Equal(t, float64(100), cfg.Scoring.Max)
	assert.Equal(t, float64(70), cfg.Scoring.HighTier)
	assert.Equal(t, float64(40), cfg.Scoring.MediumTier)
	assert.Equal(t, float64(50), cfg.Scoring.NeutralScore)
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Queue.PollInterval)
	assert.Equal(t, 50, cfg.Queue.ImmediateLimit)
	assert.Equal(t, "07:00", cfg.Digest.MorningAt)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, 200, cfg.Scheduler.FeedbackBatch)
}

func TestEnvOverrides(t *testing.T) {
	writeConfig(t, `
db:
  host: localhost
jwt:
  secret: from-file
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DB_HOST", "db.internal")

	cfg := Load()

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "db.internal", cfg.DB.Host)
}
