package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360/quantdata/errors"
)

// memoryEntry is one entry in the memory tier.
type memoryEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func (e *memoryEntry[V]) expired() bool {
	return time.Now().After(e.expiresAt)
}

// memoryTier is the thread-safe in-memory TTL tier. Every entry carries its
// own expiry; a background sweep removes expired entries between reads.
type memoryTier[V any] struct {
	mu      sync.RWMutex
	items   map[string]*memoryEntry[V]
	stats   *Statistics
	metrics *tierMetrics
	evictFn EvictCallback[V]

	shutdown chan struct{}
	done     chan struct{}
}

// NewMemory creates the in-memory tier. The context bounds the background
// sweep goroutine; cancelling it stops cleanup without closing the tier.
func NewMemory[V any](ctx context.Context, options ...Option[V]) (Store[V], error) {
	opts := applyOptions(options...)

	var metrics *tierMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newTierMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewMemory", "metrics registration")
		}
	}

	c := &memoryTier[V]{
		items:    make(map[string]*memoryEntry[V]),
		stats:    NewStatistics(),
		metrics:  metrics,
		evictFn:  opts.evictCallback,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.sweep(ctx, opts.cleanupEvery)
	return c, nil
}

// Get retrieves a live value by key. An expired entry is removed and
// reported as a miss.
func (c *memoryTier[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return c.miss()
	}

	if entry.expired() {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// replaced the entry with a live one.
		if current, still := c.items[key]; still && current.expired() {
			delete(c.items, key)
			if c.evictFn != nil {
				defer c.evictFn(key, current.value)
			}
			c.stats.Eviction()
			c.stats.UpdateSize(int64(len(c.items)))
			if c.metrics != nil {
				c.metrics.recordEviction()
				c.metrics.updateSize(len(c.items))
			}
		}
		c.mu.Unlock()
		return c.miss()
	}

	c.stats.Hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return entry.value, true
}

func (c *memoryTier[V]) miss() (V, bool) {
	var zero V
	c.stats.Miss()
	if c.metrics != nil {
		c.metrics.recordMiss()
	}
	return zero, false
}

// Set stores a value with the given TTL, replacing any existing entry.
func (c *memoryTier[V]) Set(key string, value V, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = &memoryEntry[V]{key: key, value: value, expiresAt: time.Now().Add(ttl)}
	size := len(c.items)
	c.mu.Unlock()

	c.recordWrite(size)
	return !exists, nil
}

// SetIfAbsent stores a value only when no live entry holds the key. A
// losing writer discards its write; it never replaces or retries.
func (c *memoryTier[V]) SetIfAbsent(key string, value V, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	if current, exists := c.items[key]; exists && !current.expired() {
		c.mu.Unlock()
		c.stats.Discard()
		if c.metrics != nil {
			c.metrics.recordDiscard()
		}
		return false, nil
	}
	c.items[key] = &memoryEntry[V]{key: key, value: value, expiresAt: time.Now().Add(ttl)}
	size := len(c.items)
	c.mu.Unlock()

	c.recordWrite(size)
	return true, nil
}

func (c *memoryTier[V]) recordWrite(size int) {
	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(size)
	}
}

// Delete removes an entry by key.
func (c *memoryTier[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	entry, exists := c.items[key]
	if exists {
		delete(c.items, key)
		if c.evictFn != nil {
			defer c.evictFn(key, entry.value)
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.stats.Delete()
		c.stats.UpdateSize(int64(size))
		if c.metrics != nil {
			c.metrics.updateSize(size)
		}
	}
	return exists, nil
}

// Clear removes all entries.
func (c *memoryTier[V]) Clear() error {
	c.mu.Lock()
	if c.evictFn != nil {
		for _, entry := range c.items {
			c.evictFn(entry.key, entry.value)
		}
	}
	c.items = make(map[string]*memoryEntry[V])
	c.mu.Unlock()

	c.stats.UpdateSize(0)
	if c.metrics != nil {
		c.metrics.updateSize(0)
	}
	return nil
}

// Size returns the current number of entries, expired ones included until
// the next sweep.
func (c *memoryTier[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns the keys of all live entries.
func (c *memoryTier[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	now := time.Now()
	for key, entry := range c.items {
		if now.Before(entry.expiresAt) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Stats returns the tier's statistics.
func (c *memoryTier[V]) Stats() *Statistics {
	return c.stats
}

// Close stops the background sweep goroutine.
func (c *memoryTier[V]) Close() error {
	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for cache sweep goroutine to finish")
	}
}

func (c *memoryTier[V]) sweep(ctx context.Context, every time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *memoryTier[V]) removeExpired() {
	now := time.Now()
	var expired []*memoryEntry[V]

	c.mu.Lock()
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			expired = append(expired, entry)
			delete(c.items, key)
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	// Eviction callbacks run outside the lock.
	if c.evictFn != nil {
		for _, entry := range expired {
			c.evictFn(entry.key, entry.value)
		}
	}
	for range expired {
		c.stats.Eviction()
	}
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		for range expired {
			c.metrics.recordEviction()
		}
		c.metrics.updateSize(size)
	}
}
