// Package config provides 12-factor process configuration for iot2db.
//
// Configuration is loaded from environment variables with defaults. The
// pipelines themselves live in the file named by IOT2DB_CONFIG_FILE.
//
// Environment Variables:
//   - IOT2DB_CONFIG_FILE (required): pipeline configuration file or directory
//   - SWEEP_INTERVAL: retention sweep period (24h)
//   - LOG_LEVEL, LOG_DEV
//   - METRICS_ADDR: address of the health and metrics endpoint (disabled when empty)
//   - SCRIPT_TIMEOUT, SCRIPT_POOL_SIZE: expression evaluator limits
package config
