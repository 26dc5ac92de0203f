// Package testutil provides deterministic fakes and fixture builders for
// engine, router and pipeline tests. The fake adapter runs a caller-supplied
// script so failover order and failure handling can be asserted exactly.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/types"
)

// FakeAdapter is a scripted provider adapter for tests. Zero values behave
// as a healthy, connectable provider returning whatever FetchFunc yields.
type FakeAdapter struct {
	IDValue   string
	NameValue string
	Caps      types.CapabilitySet

	// FetchFunc supplies the scripted response. When nil, Fetch returns an
	// empty RawResult.
	FetchFunc func(ctx context.Context, query types.Query) (*provider.RawResult, error)

	// FetchDelay simulates provider latency before FetchFunc runs. Fetch
	// honors context cancellation during the delay.
	FetchDelay time.Duration

	// ConnectErr makes Connect fail.
	ConnectErr error

	// Unhealthy makes HealthCheck report a failed probe.
	Unhealthy bool

	connected  atomic.Bool
	fetchCalls atomic.Int64
}

// NewFakeAdapter builds a fake with an id and declared capabilities.
func NewFakeAdapter(id string, caps ...types.Capability) *FakeAdapter {
	return &FakeAdapter{
		IDValue:   id,
		NameValue: "Fake " + id,
		Caps:      caps,
	}
}

// ID implements provider.Adapter
func (f *FakeAdapter) ID() string { return f.IDValue }

// DisplayName implements provider.Adapter
func (f *FakeAdapter) DisplayName() string { return f.NameValue }

// Capabilities implements provider.Adapter
func (f *FakeAdapter) Capabilities() types.CapabilitySet { return f.Caps }

// Connect implements provider.Adapter
func (f *FakeAdapter) Connect(_ context.Context) error {
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected.Store(true)
	return nil
}

// Disconnect implements provider.Adapter
func (f *FakeAdapter) Disconnect() error {
	f.connected.Store(false)
	return nil
}

// IsConnected implements provider.Adapter
func (f *FakeAdapter) IsConnected() bool { return f.connected.Load() }

// HealthCheck implements provider.Adapter
func (f *FakeAdapter) HealthCheck(_ context.Context) provider.HealthCheckResult {
	if f.Unhealthy {
		return provider.HealthCheckResult{OK: false, Message: "scripted failure"}
	}
	return provider.HealthCheckResult{OK: true, Latency: time.Millisecond}
}

// Fetch implements provider.Adapter
func (f *FakeAdapter) Fetch(ctx context.Context, query types.Query) (*provider.RawResult, error) {
	f.fetchCalls.Add(1)
	if f.FetchDelay > 0 {
		timer := time.NewTimer(f.FetchDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if f.FetchFunc != nil {
		return f.FetchFunc(ctx, query)
	}
	return &provider.RawResult{}, nil
}

// ListAssets implements provider.Adapter
func (f *FakeAdapter) ListAssets(_ context.Context, asset types.AssetType, _ string) ([]types.AssetDescriptor, error) {
	return []types.AssetDescriptor{
		{Symbol: "FAKE1", Name: "Fake Instrument 1", Asset: asset},
	}, nil
}

// FetchCalls returns how many times Fetch was invoked.
func (f *FakeAdapter) FetchCalls() int64 { return f.fetchCalls.Load() }

// KlineRecords builds n valid raw OHLCV rows with vendor-style field names,
// one bar per day ending at end.
func KlineRecords(n int, end time.Time) []map[string]any {
	records := make([]map[string]any, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		base := 100.0 + float64(n-1-i)
		records = append(records, map[string]any{
			"date":   day.Format("2006-01-02"),
			"open":   base,
			"high":   base + 2,
			"low":    base - 1,
			"close":  base + 1,
			"volume": 1000 + float64(i),
		})
	}
	return records
}

// QuoteRecord builds one valid raw quote row with vendor-style field names.
func QuoteRecord(symbol string, at time.Time) map[string]any {
	return map[string]any{
		"symbol":    symbol,
		"timestamp": at.Unix(),
		"price":     123.45,
		"bid":       123.40,
		"ask":       123.50,
		"vol":       98765.0,
	}
}

// ScriptedFetch returns a FetchFunc that replays the given outcomes in
// order, then repeats the last one. Useful for breaker transition tests.
func ScriptedFetch(outcomes ...func() (*provider.RawResult, error)) func(context.Context, types.Query) (*provider.RawResult, error) {
	var call atomic.Int64
	return func(context.Context, types.Query) (*provider.RawResult, error) {
		i := int(call.Add(1)) - 1
		if i >= len(outcomes) {
			i = len(outcomes) - 1
		}
		if i < 0 {
			return nil, fmt.Errorf("no scripted outcomes")
		}
		return outcomes[i]()
	}
}
