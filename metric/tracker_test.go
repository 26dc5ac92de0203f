package metric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/quantdata/provider"
)

func TestTracker_ZeroedOnRegistration(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.ProviderRegistered(provider.Info{ID: "alpha"})

	snap, ok := tracker.Snapshot("alpha")
	require.True(t, ok)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.Success)
	assert.Equal(t, 1.0, snap.HealthScore, "new providers start fully healthy")
}

func TestTracker_RecordOutcomes(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.ProviderRegistered(provider.Info{ID: "alpha"})

	tracker.RecordSuccess("alpha", 100*time.Millisecond)
	tracker.RecordTransportFailure("alpha", 2*time.Second)
	tracker.RecordQualityFailure("alpha", 150*time.Millisecond)

	snap, ok := tracker.Snapshot("alpha")
	require.True(t, ok)
	assert.Equal(t, int64(3), snap.Total)
	assert.Equal(t, int64(1), snap.Success)
	assert.Equal(t, int64(1), snap.TransportFailures)
	assert.Equal(t, int64(1), snap.QualityFailures)
	assert.Greater(t, snap.AvgLatency, time.Duration(0))
	assert.Less(t, snap.HealthScore, 1.0)
	assert.GreaterOrEqual(t, snap.HealthScore, 0.0)
}

func TestTracker_EWMALatency(t *testing.T) {
	tracker := NewTracker(nil)

	tracker.RecordSuccess("alpha", 100*time.Millisecond)
	snap, _ := tracker.Snapshot("alpha")
	assert.Equal(t, 100*time.Millisecond, snap.AvgLatency, "first sample sets the average directly")

	tracker.RecordSuccess("alpha", 200*time.Millisecond)
	snap, _ = tracker.Snapshot("alpha")
	// 0.3*200ms + 0.7*100ms = 130ms
	assert.InDelta(t, float64(130*time.Millisecond), float64(snap.AvgLatency), float64(time.Millisecond))
}

func TestTracker_HealthScoreOrdersProviders(t *testing.T) {
	tracker := NewTracker(nil)

	for i := 0; i < 10; i++ {
		tracker.RecordSuccess("good", 50*time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		tracker.RecordSuccess("flaky", 50*time.Millisecond)
		tracker.RecordTransportFailure("flaky", 50*time.Millisecond)
	}

	assert.Greater(t, tracker.HealthScore("good"), tracker.HealthScore("flaky"))
	assert.Equal(t, 0.0, tracker.HealthScore("unknown"))
}

func TestTracker_Reset(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.ProviderRegistered(provider.Info{ID: "alpha"})
	tracker.RecordTransportFailure("alpha", time.Second)
	tracker.RecordTransportFailure("alpha", time.Second)

	snap, _ := tracker.Snapshot("alpha")
	require.Equal(t, int64(2), snap.Total)

	tracker.Reset("alpha")
	snap, _ = tracker.Snapshot("alpha")
	assert.Zero(t, snap.Total)
	assert.Equal(t, 1.0, snap.HealthScore)
}

func TestTracker_Unregister(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.ProviderRegistered(provider.Info{ID: "alpha"})
	tracker.ProviderUnregistered("alpha")

	_, ok := tracker.Snapshot("alpha")
	assert.False(t, ok)
}

func TestTracker_PrometheusExport(t *testing.T) {
	registry := NewMetricsRegistry()
	tracker := NewTracker(registry.CoreMetrics())
	tracker.ProviderRegistered(provider.Info{ID: "alpha"})
	tracker.RecordSuccess("alpha", 10*time.Millisecond)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["quantdata_provider_requests_total"])
	assert.True(t, names["quantdata_provider_health_score"])
}
