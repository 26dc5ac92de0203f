package breaker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/provider"
)

func failingCall() (*provider.RawResult, error) {
	return nil, fmt.Errorf("connection refused")
}

func okCall() (*provider.RawResult, error) {
	return &provider.RawResult{}, nil
}

func testManager(cooldown time.Duration) *Manager {
	return NewManager(Config{
		FailureThreshold: 5,
		Cooldown:         cooldown,
		Window:           time.Minute,
	}, nil, nil)
}

func TestManager_StartsClosed(t *testing.T) {
	m := testManager(time.Minute)
	m.ProviderRegistered(provider.Info{ID: "alpha"})

	assert.Equal(t, StateClosed, m.State("alpha"))
}

func TestManager_OpensAfterExactlyNFailures(t *testing.T) {
	m := testManager(time.Minute)

	for i := 0; i < 4; i++ {
		_, err := m.Execute("alpha", failingCall)
		require.Error(t, err)
		assert.Equal(t, StateClosed, m.State("alpha"), "still closed after %d failures", i+1)
	}

	_, err := m.Execute("alpha", failingCall)
	require.Error(t, err)
	assert.Equal(t, StateOpen, m.State("alpha"), "fifth consecutive failure trips the breaker")
}

func TestManager_SuccessResetsConsecutiveCount(t *testing.T) {
	m := testManager(time.Minute)

	for i := 0; i < 4; i++ {
		_, _ = m.Execute("alpha", failingCall)
	}
	_, err := m.Execute("alpha", okCall)
	require.NoError(t, err)

	// Four more failures do not trip; the run was broken by a success.
	for i := 0; i < 4; i++ {
		_, _ = m.Execute("alpha", failingCall)
	}
	assert.Equal(t, StateClosed, m.State("alpha"))
}

func TestManager_OpenRejectsWithCircuitOpen(t *testing.T) {
	m := testManager(time.Minute)
	for i := 0; i < 5; i++ {
		_, _ = m.Execute("alpha", failingCall)
	}

	called := false
	_, err := m.Execute("alpha", func() (*provider.RawResult, error) {
		called = true
		return okCall()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCircuitOpen)
	assert.False(t, called, "open breaker must not invoke the adapter")
}

func TestManager_HalfOpenAfterCooldownThenCloses(t *testing.T) {
	m := testManager(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		_, _ = m.Execute("alpha", failingCall)
	}
	require.Equal(t, StateOpen, m.State("alpha"))

	time.Sleep(70 * time.Millisecond)
	require.Equal(t, StateHalfOpen, m.State("alpha"))

	// A single success in half-open closes the breaker.
	_, err := m.Execute("alpha", okCall)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, m.State("alpha"))
}

func TestManager_HalfOpenFailureReopens(t *testing.T) {
	m := testManager(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		_, _ = m.Execute("alpha", failingCall)
	}
	time.Sleep(70 * time.Millisecond)
	require.Equal(t, StateHalfOpen, m.State("alpha"))

	_, err := m.Execute("alpha", failingCall)
	require.Error(t, err)
	assert.Equal(t, StateOpen, m.State("alpha"), "probe failure restarts the cool-down")
}

func TestManager_SingleProbeDuringHalfOpen(t *testing.T) {
	m := testManager(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		_, _ = m.Execute("alpha", failingCall)
	}
	time.Sleep(70 * time.Millisecond)
	require.Equal(t, StateHalfOpen, m.State("alpha"))

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := m.Execute("alpha", func() (*provider.RawResult, error) {
			close(probeStarted)
			<-release
			return okCall()
		})
		done <- err
	}()

	<-probeStarted
	// A second request while the probe is in flight is treated as still-open.
	_, err := m.Execute("alpha", okCall)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCircuitOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, m.State("alpha"))
}

func TestManager_BreakersAreIndependent(t *testing.T) {
	m := testManager(time.Minute)
	for i := 0; i < 5; i++ {
		_, _ = m.Execute("alpha", failingCall)
	}

	assert.Equal(t, StateOpen, m.State("alpha"))
	assert.Equal(t, StateClosed, m.State("beta"))

	_, err := m.Execute("beta", okCall)
	assert.NoError(t, err)
}

func TestManager_UnregisterDropsBreaker(t *testing.T) {
	m := testManager(time.Minute)
	for i := 0; i < 5; i++ {
		_, _ = m.Execute("alpha", failingCall)
	}
	require.Equal(t, StateOpen, m.State("alpha"))

	m.ProviderUnregistered("alpha")
	// Re-registration starts from a fresh CLOSED breaker.
	m.ProviderRegistered(provider.Info{ID: "alpha"})
	assert.Equal(t, StateClosed, m.State("alpha"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
