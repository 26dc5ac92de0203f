package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	segjson "github.com/segmentio/encoding/json"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/types"
)

const diskSuffix = ".json"

// diskEnvelope wraps a cached result with its expiry on disk.
type diskEnvelope struct {
	StoredAt  time.Time     `json:"stored_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Result    *types.Result `json:"result"`
}

// DiskTier persists cached results as one JSON file per key so warm
// entries survive a process restart. Keys are fingerprint hex strings and
// map directly to file names. Writes go through a temp file and rename so
// readers never observe a partial entry.
type DiskTier struct {
	dir     string
	mu      sync.Mutex
	stats   *Statistics
	metrics *tierMetrics

	shutdown chan struct{}
	done     chan struct{}
}

// NewDisk creates the disk tier rooted at dir, creating it if needed. The
// context bounds the background sweep goroutine.
func NewDisk(ctx context.Context, dir string, options ...Option[*types.Result]) (*DiskTier, error) {
	if dir == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "cache", "NewDisk", "empty cache directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "cache", "NewDisk", "create cache directory")
	}

	opts := applyOptions(options...)
	var metrics *tierMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newTierMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewDisk", "metrics registration")
		}
	}

	d := &DiskTier{
		dir:      dir,
		stats:    NewStatistics(),
		metrics:  metrics,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go d.sweep(ctx, opts.cleanupEvery)
	return d, nil
}

func (d *DiskTier) path(key string) string {
	return filepath.Join(d.dir, key+diskSuffix)
}

// Get reads a live entry from disk. Expired or unreadable entries are
// removed and reported as misses.
func (d *DiskTier) Get(key string) (*types.Result, bool) {
	result, _, ok := d.GetWithExpiry(key)
	return result, ok
}

// GetWithExpiry reads a live entry along with its expiry time, letting a
// warmer tier adopt the remaining lifetime on promotion.
func (d *DiskTier) GetWithExpiry(key string) (*types.Result, time.Time, bool) {
	d.mu.Lock()
	envelope, ok := d.read(key)
	d.mu.Unlock()

	if !ok {
		d.stats.Miss()
		if d.metrics != nil {
			d.metrics.recordMiss()
		}
		return nil, time.Time{}, false
	}
	d.stats.Hit()
	if d.metrics != nil {
		d.metrics.recordHit()
	}
	return envelope.Result, envelope.ExpiresAt, true
}

// read loads and validates one entry; callers hold the lock. Invalid or
// expired files are deleted in place.
func (d *DiskTier) read(key string) (*diskEnvelope, bool) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		return nil, false
	}
	var envelope diskEnvelope
	if err := segjson.Unmarshal(data, &envelope); err != nil || envelope.Result == nil {
		// Corrupt entry: drop the file rather than serving it.
		_ = os.Remove(d.path(key))
		return nil, false
	}
	if time.Now().After(envelope.ExpiresAt) {
		_ = os.Remove(d.path(key))
		d.stats.Eviction()
		if d.metrics != nil {
			d.metrics.recordEviction()
		}
		return nil, false
	}
	return &envelope, true
}

// Set stores a result under key, replacing any existing entry.
func (d *DiskTier) Set(key string, result *types.Result, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, existed := d.read(key)
	if err := d.write(key, result, ttl); err != nil {
		return false, err
	}
	return !existed, nil
}

// SetIfAbsent stores a result only when no live entry holds the key.
func (d *DiskTier) SetIfAbsent(key string, result *types.Result, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, existed := d.read(key); existed {
		d.stats.Discard()
		if d.metrics != nil {
			d.metrics.recordDiscard()
		}
		return false, nil
	}
	if err := d.write(key, result, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// write marshals and atomically replaces the entry file; callers hold the
// lock.
func (d *DiskTier) write(key string, result *types.Result, ttl time.Duration) error {
	now := time.Now()
	data, err := segjson.Marshal(&diskEnvelope{
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Result:    result,
	})
	if err != nil {
		return errors.WrapInvalid(err, "cache", "write", "marshal cache entry")
	}

	tmp := d.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.WrapTransient(err, "cache", "write", "write cache entry")
	}
	if err := os.Rename(tmp, d.path(key)); err != nil {
		_ = os.Remove(tmp)
		return errors.WrapTransient(err, "cache", "write", "publish cache entry")
	}

	d.stats.Set()
	d.stats.UpdateSize(int64(d.count()))
	if d.metrics != nil {
		d.metrics.recordSet()
		d.metrics.updateSize(d.count())
	}
	return nil
}

// Delete removes an entry by key.
func (d *DiskTier) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	err := os.Remove(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.WrapTransient(err, "cache", "Delete", "remove cache entry")
	}
	d.stats.Delete()
	return true, nil
}

// Clear removes every entry in the tier's directory.
func (d *DiskTier) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, key := range d.keysLocked() {
		_ = os.Remove(d.path(key))
	}
	d.stats.UpdateSize(0)
	if d.metrics != nil {
		d.metrics.updateSize(0)
	}
	return nil
}

// Size returns the number of entry files, expired ones included until the
// next sweep.
func (d *DiskTier) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count()
}

func (d *DiskTier) count() int {
	return len(d.keysLocked())
}

// Keys returns the keys of all entry files.
func (d *DiskTier) Keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keysLocked()
}

func (d *DiskTier) keysLocked() []string {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, diskSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, diskSuffix))
	}
	return keys
}

// Stats returns the tier's statistics.
func (d *DiskTier) Stats() *Statistics {
	return d.stats
}

// Close stops the background sweep goroutine.
func (d *DiskTier) Close() error {
	select {
	case <-d.shutdown:
	default:
		close(d.shutdown)
	}
	<-d.done
	return nil
}

func (d *DiskTier) sweep(ctx context.Context, every time.Duration) {
	defer close(d.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case <-ticker.C:
			d.removeExpired()
		}
	}
}

func (d *DiskTier) removeExpired() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, key := range d.keysLocked() {
		// read deletes expired entries as a side effect.
		d.read(key)
	}
	d.stats.UpdateSize(int64(d.count()))
	if d.metrics != nil {
		d.metrics.updateSize(d.count())
	}
}
