// Package cache provides the multi-level result cache: a generic in-memory
// TTL tier backed by an optional on-disk tier, composed into a read-through
// ResultCache keyed by the canonical query fingerprint.
//
// All tiers are thread-safe with built-in statistics (always enabled for
// observability) and optional Prometheus metrics integration via functional
// options. Writes are at-most-once-wins per key: a writer that loses the
// race to a live entry discards its write rather than retrying.
package cache

import (
	"time"

	"github.com/c360/quantdata/errors"
)

// Store is the contract every cache tier satisfies. The store is
// parameterized by value type V for type safety. Entries carry their own
// TTL so one tier can hold data types with different lifetimes.
type Store[V any] interface {
	// Get retrieves a value by key. Returns the value and true if a live
	// entry exists, zero value and false otherwise.
	Get(key string) (V, bool)

	// Set stores a value under key with the given TTL, replacing any
	// existing entry. Returns true if a new entry was created.
	Set(key string, value V, ttl time.Duration) (bool, error)

	// SetIfAbsent stores a value only when no live entry exists for key.
	// Returns true if the write won, false if it was discarded.
	SetIfAbsent(key string, value V, ttl time.Duration) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Keys returns all keys with live entries.
	Keys() []string

	// Stats returns the tier's statistics. Never nil.
	Stats() *Statistics

	// Close shuts the tier down and releases background resources.
	Close() error
}

// EvictCallback is called when an entry is evicted from a tier.
type EvictCallback[V any] func(key string, value V)

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
