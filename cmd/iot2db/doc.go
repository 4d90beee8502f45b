// Package main is the entry point of iot2db.
//
// iot2db reads telemetry from HTTP endpoints, Homematic CCU3 controllers,
// MQTT brokers, NATS servers, shell commands and the systemd journal, maps
// each document to a flat record and writes it to PostgreSQL, SQLite or
// stdout. Every data entry of the pipeline configuration runs as its own
// pipeline; a failing pipeline does not stop the others.
//
// Architecture:
//
//	Frontend → Stream → Filter → Mapper → Inserter → Backend
//
// Configuration:
//   - IOT2DB_CONFIG_FILE: pipeline configuration file or directory
//     (TOML, YAML, JSON or JSONC)
//   - Environment variables for logging, metrics and script limits
//
// Usage:
//
//	IOT2DB_CONFIG_FILE=/etc/iot2db.d ./iot2db
//
//	# Development mode (colored logs, debug level)
//	IOT2DB_CONFIG_FILE=iot2db.toml LOG_DEV=true ./iot2db
//
//	# Health and Prometheus metrics on :9100
//	IOT2DB_CONFIG_FILE=iot2db.toml METRICS_ADDR=:9100 ./iot2db
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
