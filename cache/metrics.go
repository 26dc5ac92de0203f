package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/quantdata/metric"
)

// tierMetrics holds Prometheus metrics for one cache tier.
type tierMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	discards  prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func counterOpts(prefix, name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   "quantdata",
		Subsystem:   "cache",
		Name:        name,
		ConstLabels: prometheus.Labels{"tier": prefix},
		Help:        help,
	}
}

// newTierMetrics creates and registers tier metrics with the registry.
func newTierMetrics(registry *metric.MetricsRegistry, prefix string) (*tierMetrics, error) {
	m := &tierMetrics{
		hits:     prometheus.NewCounter(counterOpts(prefix, "hits_total", "Total number of cache hits")),
		misses:   prometheus.NewCounter(counterOpts(prefix, "misses_total", "Total number of cache misses")),
		sets:     prometheus.NewCounter(counterOpts(prefix, "sets_total", "Total number of cache writes")),
		discards: prometheus.NewCounter(counterOpts(prefix, "discards_total", "Writes dropped by at-most-once-wins")),
		evictions: prometheus.NewCounter(
			counterOpts(prefix, "evictions_total", "Total number of cache evictions")),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "quantdata",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: prometheus.Labels{"tier": prefix},
			Help:        "Current number of entries in the tier",
		}),
	}

	if err := registry.RegisterCounter(prefix, "cache_hits", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_misses", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_sets", m.sets); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_discards", m.discards); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_evictions", m.evictions); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "cache_size", m.size); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *tierMetrics) recordHit()      { m.hits.Inc() }
func (m *tierMetrics) recordMiss()     { m.misses.Inc() }
func (m *tierMetrics) recordSet()      { m.sets.Inc() }
func (m *tierMetrics) recordDiscard()  { m.discards.Inc() }
func (m *tierMetrics) recordEviction() { m.evictions.Inc() }
func (m *tierMetrics) updateSize(size int) {
	m.size.Set(float64(size))
}
