// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for log collectors
//   - Development: colored console output (LOG_DEV=true)
//
// Components receive a *zap.Logger and add their own fields with With.
// Pipelines log with the data entry name and a run id on every line.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("pipeline started", zap.String("data", "inverter"))
//	logger.Pipeline("inverter", runID).Warn("insert failed", zap.Error(err))
package logging
