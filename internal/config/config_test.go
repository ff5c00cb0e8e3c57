package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// No config file in the test working directory, so defaults apply.
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Mode)
	assert.Equal(t, "./data/sentinel.db", cfg.Database.Path)
	assert.Equal(t, "./migrations", cfg.Database.MigrationsPath)
	assert.Equal(t, "1h", cfg.Database.PruneInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "30s", cfg.Collector.Interval)
	assert.Equal(t, 1000, cfg.Collector.HistoryCap)
	assert.Equal(t, "168h", cfg.Collector.Retention)
	assert.True(t, cfg.Alerting.Enabled)
	assert.Equal(t, 500, cfg.Alerting.AlertCap)
	assert.Equal(t, "2m", cfg.Escalation.ScanInterval)
	assert.Empty(t, cfg.Health.Services)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, Duration("30s", time.Minute))
	assert.Equal(t, 90*time.Minute, Duration("1h30m", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("not-a-duration", time.Minute))
}
