package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all process configuration.
type Config struct {
	Pipeline PipelineConfig
	Logging  LogConfig
	Metrics  MetricsConfig
	Script   ScriptConfig
}

// PipelineConfig locates the pipeline configuration and tunes maintenance.
type PipelineConfig struct {
	ConfigFile    string        `envconfig:"IOT2DB_CONFIG_FILE" required:"true"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"24h"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig holds the health and metrics endpoint configuration.
// An empty address disables the endpoint.
type MetricsConfig struct {
	Address string `envconfig:"METRICS_ADDR"`
}

// ScriptConfig holds expression evaluator limits.
type ScriptConfig struct {
	Timeout  time.Duration `envconfig:"SCRIPT_TIMEOUT" default:"1s"`
	PoolSize int           `envconfig:"SCRIPT_POOL_SIZE" default:"4"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Pipeline.ConfigFile == "" {
		return nil, fmt.Errorf("failed to load config: IOT2DB_CONFIG_FILE is empty")
	}
	if cfg.Pipeline.SweepInterval <= 0 {
		return nil, fmt.Errorf("failed to load config: SWEEP_INTERVAL must be positive")
	}
	return &cfg, nil
}

// Default returns default configuration. The pipeline file is left empty.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			SweepInterval: 24 * time.Hour,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Script: ScriptConfig{
			Timeout:  time.Second,
			PoolSize: 4,
		},
	}
}
