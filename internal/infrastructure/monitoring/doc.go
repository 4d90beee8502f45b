// Package monitoring provides Prometheus metrics for iot2db.
//
// Metrics are registered against an injected prometheus.Registerer so tests
// and the process each own their registry. All recording methods accept a
// nil *Metrics and do nothing, which keeps components usable without
// metrics.
//
// Metric families:
//   - iot2db_documents_*, iot2db_records_emitted_total: pipeline throughput
//   - iot2db_inserts_total, iot2db_insert_duration_seconds: backend writes
//   - iot2db_retention_sweeps_total: retention sweeps
//   - iot2db_poll_errors_total, iot2db_decode_errors_total: frontend health
//   - iot2db_subscriber_lagged_messages_total: dropped pub/sub messages
//   - iot2db_pipelines_running, iot2db_pipeline_failures_total
//
// Example Usage:
//
//	reg := prometheus.NewRegistry()
//	metrics := monitoring.NewMetrics(reg)
//	metrics.RecordDocument("inverter")
package monitoring
