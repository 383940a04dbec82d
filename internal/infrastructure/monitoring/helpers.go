package monitoring

// Outcome labels shared by the Record methods.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusSkipped  = "skipped"
	StatusNotFound = "not_found"
	StatusMismatch = "mismatch"
)

// Snapshot returns the current JSON-friendly counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// AverageLatency returns the mean HTTP request duration in milliseconds.
func (s MetricsSnapshot) AverageLatency() float64 {
	if s.RequestCount == 0 {
		return 0
	}
	return s.TotalDuration / float64(s.RequestCount) * 1000
}
