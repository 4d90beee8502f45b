package monitoring

import "time"

// Snapshot returns current totals and the uptime.
func (m *Metrics) Snapshot() map[string]any {
	if m == nil {
		return map[string]any{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"documents":       m.snapshot.Documents,
		"records":         m.snapshot.Records,
		"insert_failures": m.snapshot.InsertFailures,
		"lagged":          m.snapshot.Lagged,
		"uptime_seconds":  int64(time.Since(m.startTime).Seconds()),
	}
}
