package cache

import (
	"context"
	"time"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/metric"
	"github.com/c360/quantdata/types"
)

// TTLConfig sets the entry lifetime per data type. Realtime quotes live
// seconds, intraday bars minutes, end-of-day history hours.
type TTLConfig struct {
	Quote      time.Duration `json:"quote" mapstructure:"quote"`
	Intraday   time.Duration `json:"intraday" mapstructure:"intraday"`
	Historical time.Duration `json:"historical" mapstructure:"historical"`
}

// DefaultTTLConfig returns the default TTL tiers: 5s quotes, 5m intraday,
// 12h historical.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Quote:      5 * time.Second,
		Intraday:   5 * time.Minute,
		Historical: 12 * time.Hour,
	}
}

// For returns the TTL for a data type.
func (c TTLConfig) For(data types.DataType) time.Duration {
	switch data {
	case types.DataRealtimeQuote:
		return c.Quote
	case types.DataIntradayKline:
		return c.Intraday
	default:
		return c.Historical
	}
}

// ResultCache is the multi-level cache for canonical results, keyed by the
// query fingerprint. Reads check memory first, then disk, promoting disk
// hits back into memory with their remaining lifetime. The disk tier is
// optional; without one the cache is memory-only.
//
// At most one live entry exists per key. A Put that loses to a live entry
// discards its write in every tier.
type ResultCache struct {
	ttls   TTLConfig
	memory Store[*types.Result]
	disk   *DiskTier
}

// ResultConfig configures the result cache.
type ResultConfig struct {
	// TTLs per data type. Zero durations fall back to the defaults.
	TTLs TTLConfig `json:"ttls" mapstructure:"ttls"`
	// Dir is the disk tier directory. Empty disables the disk tier.
	Dir string `json:"dir" mapstructure:"dir"`
}

// NewResultCache builds the tiered cache. The context bounds the tiers'
// background sweeps. Metrics registration is optional.
func NewResultCache(ctx context.Context, config ResultConfig, registry *metric.MetricsRegistry) (*ResultCache, error) {
	ttls := config.TTLs
	defaults := DefaultTTLConfig()
	if ttls.Quote <= 0 {
		ttls.Quote = defaults.Quote
	}
	if ttls.Intraday <= 0 {
		ttls.Intraday = defaults.Intraday
	}
	if ttls.Historical <= 0 {
		ttls.Historical = defaults.Historical
	}

	memory, err := NewMemory[*types.Result](ctx, WithMetrics[*types.Result](registry, "memory"))
	if err != nil {
		return nil, errors.WrapFatal(err, "cache", "NewResultCache", "memory tier")
	}

	rc := &ResultCache{ttls: ttls, memory: memory}
	if config.Dir != "" {
		disk, err := NewDisk(ctx, config.Dir, WithMetrics[*types.Result](registry, "disk"))
		if err != nil {
			_ = memory.Close()
			return nil, errors.WrapFatal(err, "cache", "NewResultCache", "disk tier")
		}
		rc.disk = disk
	}
	return rc, nil
}

// Get returns the cached result for the query, if a live entry exists in
// any tier.
func (rc *ResultCache) Get(query types.Query) (*types.Result, bool) {
	key := query.Fingerprint()

	if result, ok := rc.memory.Get(key); ok {
		return result, true
	}
	if rc.disk == nil {
		return nil, false
	}

	result, expiresAt, ok := rc.disk.GetWithExpiry(key)
	if !ok {
		return nil, false
	}
	// Promote with the remaining lifetime so the memory copy never
	// outlives the disk entry it came from.
	if remaining := time.Until(expiresAt); remaining > 0 {
		_, _ = rc.memory.SetIfAbsent(key, result, remaining)
	}
	return result, true
}

// Put caches a result under the query's fingerprint with the TTL tier for
// its data type. Returns true when the write won; false when a live entry
// already held the key and the write was discarded.
func (rc *ResultCache) Put(query types.Query, result *types.Result) (bool, error) {
	key := query.Fingerprint()
	ttl := rc.ttls.For(query.Data)

	won, err := rc.memory.SetIfAbsent(key, result, ttl)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}
	if rc.disk != nil {
		if _, err := rc.disk.SetIfAbsent(key, result, ttl); err != nil {
			// The memory write already succeeded; a disk failure only
			// costs persistence across restarts.
			return true, errors.WrapTransient(err, "cache", "Put", "disk tier write")
		}
	}
	return true, nil
}

// Invalidate removes the entry for the query from every tier.
func (rc *ResultCache) Invalidate(query types.Query) {
	key := query.Fingerprint()
	_, _ = rc.memory.Delete(key)
	if rc.disk != nil {
		_, _ = rc.disk.Delete(key)
	}
}

// Clear empties every tier.
func (rc *ResultCache) Clear() error {
	if err := rc.memory.Clear(); err != nil {
		return err
	}
	if rc.disk != nil {
		return rc.disk.Clear()
	}
	return nil
}

// TTLFor returns the configured TTL for a data type.
func (rc *ResultCache) TTLFor(data types.DataType) time.Duration {
	return rc.ttls.For(data)
}

// MemoryStats returns the memory tier's statistics.
func (rc *ResultCache) MemoryStats() *Statistics {
	return rc.memory.Stats()
}

// DiskStats returns the disk tier's statistics, or nil without a disk tier.
func (rc *ResultCache) DiskStats() *Statistics {
	if rc.disk == nil {
		return nil
	}
	return rc.disk.Stats()
}

// Close shuts down every tier.
func (rc *ResultCache) Close() error {
	err := rc.memory.Close()
	if rc.disk != nil {
		if diskErr := rc.disk.Close(); err == nil {
			err = diskErr
		}
	}
	return err
}
