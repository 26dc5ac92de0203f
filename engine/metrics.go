package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/quantdata/metric"
)

// engineMetrics holds Prometheus metrics for pipeline-level operations.
// Per-provider metrics live in the tracker; the resolve counter and duration
// histogram are the core pipeline collectors, already registered by the
// metrics registry.
type engineMetrics struct {
	resolves        *prometheus.CounterVec // by data_type and outcome
	resolveDuration *prometheus.HistogramVec
	cacheHits       *prometheus.CounterVec // by data_type
	failovers       prometheus.Counter     // candidate advances inside the loop
}

func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil // metrics disabled
	}
	core := registry.CoreMetrics()

	m := &engineMetrics{
		resolves:        core.ResolveOutcomes,
		resolveDuration: core.ResolveDuration,

		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quantdata",
			Subsystem: "engine",
			Name:      "cache_hits_total",
			Help:      "Resolves short-circuited by the result cache",
		}, []string{"data_type"}),

		failovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quantdata",
			Subsystem: "engine",
			Name:      "failovers_total",
			Help:      "Candidate advances inside the extraction loop",
		}),
	}

	if err := registry.RegisterCounterVec("engine", "cache_hits", m.cacheHits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("engine", "failovers", m.failovers); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *engineMetrics) recordResolve(dataType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.resolves.WithLabelValues(dataType, outcome).Inc()
	m.resolveDuration.WithLabelValues(dataType).Observe(duration.Seconds())
}

func (m *engineMetrics) recordCacheHit(dataType string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(dataType).Inc()
}

func (m *engineMetrics) recordFailover() {
	if m == nil {
		return
	}
	m.failovers.Inc()
}
