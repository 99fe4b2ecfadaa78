package scheduler

import "sync/atomic"

// Metrics counts scheduler activity for the status API.
type Metrics struct {
	cycles        atomic.Int64
	signals       atomic.Int64
	filteredByHTF atomic.Int64
	errors        atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Cycles        int64 `json:"cycles"`
	Signals       int64 `json:"signals"`
	FilteredByHTF int64 `json:"filteredByHtf"`
	Errors        int64 `json:"errors"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Cycles:        m.cycles.Load(),
		Signals:       m.signals.Load(),
		FilteredByHTF: m.filteredByHTF.Load(),
		Errors:        m.errors.Load(),
	}
}
