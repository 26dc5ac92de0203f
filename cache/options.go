package cache

import (
	"time"

	"github.com/c360/quantdata/metric"
)

// Option configures a cache tier using the functional options pattern.
type Option[V any] func(*tierOptions[V])

// tierOptions holds internal configuration for cache tiers. Stats are
// always collected; Prometheus export is opt-in via WithMetrics.
type tierOptions[V any] struct {
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
	evictCallback EvictCallback[V]
	cleanupEvery  time.Duration
}

// WithMetrics enables Prometheus metrics export for tier statistics. The
// prefix becomes the component label. A nil registry is ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(opts *tierOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback invoked with each evicted entry.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *tierOptions[V]) {
		opts.evictCallback = callback
	}
}

// WithCleanupInterval overrides how often the background sweep removes
// expired entries. Intervals <= 0 are ignored.
func WithCleanupInterval[V any](interval time.Duration) Option[V] {
	return func(opts *tierOptions[V]) {
		if interval > 0 {
			opts.cleanupEvery = interval
		}
	}
}

func applyOptions[V any](options ...Option[V]) *tierOptions[V] {
	opts := &tierOptions[V]{
		cleanupEvery: 30 * time.Second,
	}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
