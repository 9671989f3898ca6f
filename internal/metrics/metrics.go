package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store records the outcome and latency of attendance store operations.
type Store struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewStore registers the store collectors on reg. A nil reg uses the default
// registerer.
func NewStore(reg prometheus.Registerer) *Store {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &Store{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollbook",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Attendance store operations by name and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rollbook",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of attendance store operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"op"}),
	}
	reg.MustRegister(s.ops, s.latency)
	return s
}

// Observe implements attendance.Observer.
func (s *Store) Observe(op, outcome string, elapsed time.Duration) {
	s.ops.WithLabelValues(op, outcome).Inc()
	s.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}
