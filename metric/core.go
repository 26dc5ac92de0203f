// Package metric provides provider-level metrics for the data engine: rolling
// per-provider counters and latency driving the derived health score, plus
// Prometheus export through a MetricsRegistry and HTTP handler.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for provider request metrics. Transport and quality
// failures are distinct counters by design.
const (
	OutcomeSuccess          = "success"
	OutcomeTransportFailure = "transport_failure"
	OutcomeQualityFailure   = "quality_failure"
)

// Metrics contains all engine-level Prometheus metrics (not per-component)
type Metrics struct {
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ProviderHealth   *prometheus.GaugeVec
	BreakerState     *prometheus.GaugeVec

	// ResolveDuration and ResolveOutcomes are fed by the engine's resolve
	// pipeline; everything above is fed by the tracker and breaker manager.
	ResolveDuration *prometheus.HistogramVec
	ResolveOutcomes *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all engine metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quantdata",
				Subsystem: "provider",
				Name:      "requests_total",
				Help:      "Total adapter invocations by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quantdata",
				Subsystem: "provider",
				Name:      "latency_seconds",
				Help:      "Adapter call latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		ProviderHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "quantdata",
				Subsystem: "provider",
				Name:      "health_score",
				Help:      "Derived provider health score in [0,1]",
			},
			[]string{"provider"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "quantdata",
				Subsystem: "breaker",
				Name:      "state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"provider"},
		),

		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quantdata",
				Subsystem: "pipeline",
				Name:      "resolve_duration_seconds",
				Help:      "End-to-end resolve duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"data_type"},
		),

		ResolveOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quantdata",
				Subsystem: "pipeline",
				Name:      "resolve_total",
				Help:      "Resolve calls by data type and outcome (success, cache_hit, no_provider, exhausted, invalid)",
			},
			[]string{"data_type", "outcome"},
		),
	}
}

// collectors returns every core metric for bulk registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ProviderRequests,
		m.ProviderLatency,
		m.ProviderHealth,
		m.BreakerState,
		m.ResolveDuration,
		m.ResolveOutcomes,
	}
}
