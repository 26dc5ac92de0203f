// Package provider defines the uniform adapter contract every external data
// source plugs in behind, and the registry that tracks adapters, their
// declared capabilities and their lifecycle state.
package provider

import (
	"context"
	"time"

	"github.com/c360/quantdata/types"
)

// HealthCheckResult is the outcome of one adapter health probe.
type HealthCheckResult struct {
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message,omitempty"`
}

// RawResult is the loosely-typed payload returned by an adapter before
// normalization. Field names are provider-specific; the normalizer maps them
// onto the canonical schema.
type RawResult struct {
	// Fields lists the column names in vendor order when the vendor reports
	// them. Optional; the normalizer falls back to record keys.
	Fields []string

	// Records holds one map per row, keyed by the vendor's field names.
	Records []map[string]any
}

// Adapter wraps one external data source behind the uniform contract. All
// methods are mandatory: a source that cannot serve an operation for some
// (asset, data) pair declares that through Capabilities, never by omitting
// methods.
type Adapter interface {
	// ID returns the stable provider identifier used in routing, metrics
	// and diagnostics.
	ID() string

	// DisplayName returns the human-readable provider name.
	DisplayName() string

	// Capabilities returns the declared (asset type, data type) pairs this
	// adapter can serve.
	Capabilities() types.CapabilitySet

	// Connect establishes the vendor session. Adapters receive their
	// configuration at construction; Connect performs the I/O.
	Connect(ctx context.Context) error

	// Disconnect tears down the vendor session.
	Disconnect() error

	// IsConnected reports whether the adapter holds a live session.
	IsConnected() bool

	// HealthCheck probes the vendor and reports reachability and latency.
	HealthCheck(ctx context.Context) HealthCheckResult

	// Fetch executes one canonical query against the vendor and returns the
	// raw, un-normalized payload. Fetch must honor ctx cancellation: on
	// deadline expiry the caller abandons the call and counts it as a
	// transport failure.
	Fetch(ctx context.Context, query types.Query) (*RawResult, error)

	// ListAssets enumerates instruments of the given asset type. Market
	// narrows the listing for vendors that segment by exchange; empty means
	// all markets.
	ListAssets(ctx context.Context, asset types.AssetType, market string) ([]types.AssetDescriptor, error)
}
