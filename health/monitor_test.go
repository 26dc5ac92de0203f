package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateAndGet(t *testing.T) {
	monitor := NewMonitor()

	monitor.Update("alpha", NewHealthy("alpha", "connected"))
	monitor.Update("beta", NewUnhealthy("beta", "no session"))

	status, ok := monitor.Get("alpha")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "alpha", status.Provider)
	assert.False(t, status.Timestamp.IsZero())

	status, ok = monitor.Get("beta")
	require.True(t, ok)
	assert.True(t, status.IsUnhealthy())

	_, ok = monitor.Get("gamma")
	assert.False(t, ok)
}

func TestMonitor_UpdateFixesProviderName(t *testing.T) {
	monitor := NewMonitor()

	// The map key wins over whatever name the status carries.
	monitor.Update("alpha", NewHealthy("wrong-name", "ok"))

	status, ok := monitor.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", status.Provider)
}

func TestMonitor_GetAllReturnsCopy(t *testing.T) {
	monitor := NewMonitor()
	monitor.Update("alpha", NewHealthy("alpha", "ok"))

	all := monitor.GetAll()
	delete(all, "alpha")

	_, ok := monitor.Get("alpha")
	assert.True(t, ok)
}

func TestMonitor_AggregateHealth(t *testing.T) {
	monitor := NewMonitor()
	monitor.Update("alpha", NewHealthy("alpha", "ok"))
	monitor.Update("beta", NewDegraded("beta", "slow"))

	aggregate := monitor.AggregateHealth("engine")
	assert.Equal(t, "degraded", aggregate.Status)
	assert.Len(t, aggregate.SubStatuses, 2)

	monitor.Update("gamma", NewUnhealthy("gamma", "down"))
	aggregate = monitor.AggregateHealth("engine")
	assert.Equal(t, "unhealthy", aggregate.Status)
}

func TestMonitor_Remove(t *testing.T) {
	monitor := NewMonitor()
	monitor.Update("alpha", NewHealthy("alpha", "ok"))
	monitor.Update("beta", NewHealthy("beta", "ok"))
	require.Len(t, monitor.GetAll(), 2)

	monitor.Remove("alpha")
	assert.Len(t, monitor.GetAll(), 1)
	assert.Equal(t, []string{"beta"}, monitor.ListProviders())
}
