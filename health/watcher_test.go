package health

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/quantdata/breaker"
	"github.com/c360/quantdata/metric"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/testutil"
	"github.com/c360/quantdata/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWatcher(t *testing.T) (*Watcher, *provider.Registry) {
	t.Helper()
	logger := testLogger()
	registry := provider.NewRegistry(logger)
	tracker := metric.NewTracker(nil)
	breakers := breaker.NewManager(breaker.DefaultConfig(), nil, logger)
	registry.AddObserver(tracker)
	registry.AddObserver(breakers)

	watcher := NewWatcher(WatcherConfig{}, registry, tracker, breakers, logger)
	return watcher, registry
}

func register(t *testing.T, registry *provider.Registry, fake *testutil.FakeAdapter) {
	t.Helper()
	require.NoError(t, registry.Register(fake, 1))
	require.NoError(t, registry.Activate(fake.ID()))
}

func TestWatcher_SweepPopulatesMonitor(t *testing.T) {
	watcher, registry := newTestWatcher(t)

	healthy := testutil.NewFakeAdapter("alpha", types.Capability{Asset: types.AssetStock, Data: types.DataRealtimeQuote})
	failing := testutil.NewFakeAdapter("beta", types.Capability{Asset: types.AssetStock, Data: types.DataRealtimeQuote})
	failing.Unhealthy = true
	register(t, registry, healthy)
	register(t, registry, failing)

	watcher.Sweep(context.Background())

	status, ok := watcher.Monitor().Get("alpha")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())
	require.NotNil(t, status.Metrics)
	assert.Equal(t, 1.0, status.Metrics.HealthScore)

	status, ok = watcher.Monitor().Get("beta")
	require.True(t, ok)
	assert.True(t, status.IsUnhealthy())
}

func TestWatcher_SweepDropsUnregisteredProviders(t *testing.T) {
	watcher, registry := newTestWatcher(t)

	fake := testutil.NewFakeAdapter("alpha", types.Capability{Asset: types.AssetStock, Data: types.DataRealtimeQuote})
	register(t, registry, fake)
	watcher.Sweep(context.Background())
	require.Len(t, watcher.Monitor().GetAll(), 1)

	require.NoError(t, registry.Unregister("alpha"))
	watcher.Sweep(context.Background())
	assert.Empty(t, watcher.Monitor().GetAll())
}

func TestWatcher_StartSweepsImmediately(t *testing.T) {
	watcher, registry := newTestWatcher(t)

	fake := testutil.NewFakeAdapter("alpha", types.Capability{Asset: types.AssetStock, Data: types.DataRealtimeQuote})
	register(t, registry, fake)

	watcher.Start(context.Background())
	defer watcher.Stop()

	assert.Eventually(t, func() bool {
		_, ok := watcher.Monitor().Get("alpha")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	watcher, _ := newTestWatcher(t)
	watcher.Start(context.Background())
	watcher.Stop()
	watcher.Stop()
}
