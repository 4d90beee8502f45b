// Package pipeline wires frontends, mappers and backends together.
//
// Build resolves a parsed configuration into one Pipeline per data entry,
// opening every referenced frontend and backend once. Orchestrator.Run
// starts all pipelines and keeps each isolated: a pipeline that fails or
// panics is logged and recorded without affecting the others.
package pipeline
