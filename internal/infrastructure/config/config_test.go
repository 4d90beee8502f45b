package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 24*time.Hour, cfg.Pipeline.SweepInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
	assert.Empty(t, cfg.Metrics.Address)
	assert.Equal(t, time.Second, cfg.Script.Timeout)
	assert.Equal(t, 4, cfg.Script.PoolSize)
}

func TestLoadRequiresConfigFile(t *testing.T) {
	t.Setenv("IOT2DB_CONFIG_FILE", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IOT2DB_CONFIG_FILE")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IOT2DB_CONFIG_FILE", "/etc/iot2db.toml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/iot2db.toml", cfg.Pipeline.ConfigFile)
	assert.Equal(t, 24*time.Hour, cfg.Pipeline.SweepInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, time.Second, cfg.Script.Timeout)
	assert.Equal(t, 4, cfg.Script.PoolSize)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"IOT2DB_CONFIG_FILE": "/etc/iot2db.d",
		"SWEEP_INTERVAL":     "1h",
		"LOG_LEVEL":          "debug",
		"LOG_DEV":            "true",
		"METRICS_ADDR":       ":9100",
		"SCRIPT_TIMEOUT":     "250ms",
		"SCRIPT_POOL_SIZE":   "8",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/iot2db.d", cfg.Pipeline.ConfigFile)
	assert.Equal(t, time.Hour, cfg.Pipeline.SweepInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, ":9100", cfg.Metrics.Address)
	assert.Equal(t, 250*time.Millisecond, cfg.Script.Timeout)
	assert.Equal(t, 8, cfg.Script.PoolSize)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("IOT2DB_CONFIG_FILE", "/etc/iot2db.toml")
	t.Setenv("SCRIPT_POOL_SIZE", "many")

	_, err := Load()
	assert.Error(t, err)
}
