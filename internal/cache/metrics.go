package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics exports cache activity per entity family. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics registers the cache collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cached query results served without a backend call.",
		}, []string{"entity"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Queries that had to reach the backend.",
		}, []string{"entity"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "cache",
			Name:      "invalidated_entries_total",
			Help:      "Entries dropped by write-driven invalidation.",
		}, []string{"entity"}),
	}
	reg.MustRegister(m.hits, m.misses, m.invalidations)
	return m
}

func (m *Metrics) hit(entity string) {
	if m != nil {
		m.hits.WithLabelValues(entity).Inc()
	}
}

func (m *Metrics) miss(entity string) {
	if m != nil {
		m.misses.WithLabelValues(entity).Inc()
	}
}

func (m *Metrics) invalidated(entity string, n int) {
	if m != nil && n > 0 {
		m.invalidations.WithLabelValues(entity).Add(float64(n))
	}
}
