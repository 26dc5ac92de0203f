package provider_test

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/testutil"
	"github.com/c360/quantdata/types"
)

type recordingObserver struct {
	mu           sync.Mutex
	registered   []string
	unregistered []string
}

func (o *recordingObserver) ProviderRegistered(info provider.Info) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registered = append(o.registered, info.ID)
}

func (o *recordingObserver) ProviderUnregistered(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unregistered = append(o.unregistered, id)
}

func stockKline() types.Capability {
	return types.Capability{Asset: types.AssetStock, Data: types.DataHistoricalKline}
}

func TestRegistry_Register(t *testing.T) {
	reg := provider.NewRegistry(nil)

	err := reg.Register(testutil.NewFakeAdapter("alpha", stockKline()), 2)
	require.NoError(t, err)

	info, err := reg.Info("alpha")
	require.NoError(t, err)
	assert.Equal(t, provider.StateValidated, info.State)
	assert.Equal(t, 2, info.Weight)
	assert.Equal(t, "Fake alpha", info.Name)
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := provider.NewRegistry(nil)
	require.NoError(t, reg.Register(testutil.NewFakeAdapter("alpha", stockKline()), 1))

	err := reg.Register(testutil.NewFakeAdapter("alpha", stockKline()), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateProvider)
}

func TestRegistry_Register_EmptyCapabilities(t *testing.T) {
	reg := provider.NewRegistry(nil)

	err := reg.Register(testutil.NewFakeAdapter("alpha"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidCapability)
}

func TestRegistry_Register_InvalidCapabilityPair(t *testing.T) {
	reg := provider.NewRegistry(nil)

	bad := testutil.NewFakeAdapter("alpha", types.Capability{Asset: "options", Data: types.DataRealtimeQuote})
	assert.Error(t, reg.Register(bad, 1))
}

func TestRegistry_RegisterWalksLifecycleStates(t *testing.T) {
	var buf bytes.Buffer
	reg := provider.NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, reg.Register(testutil.NewFakeAdapter("alpha", stockKline()), 1))

	info, err := reg.Info("alpha")
	require.NoError(t, err)
	assert.Equal(t, provider.StateValidated, info.State)

	// Registration walks discovered -> validated before the entry settles.
	assert.Contains(t, buf.String(), "from=discovered")
	assert.Contains(t, buf.String(), "to=validated")
}

func TestRegistry_FailedValidationLeavesNoEntry(t *testing.T) {
	reg := provider.NewRegistry(nil)

	bad := testutil.NewFakeAdapter("alpha", types.Capability{Asset: "options", Data: types.DataRealtimeQuote})
	require.Error(t, reg.Register(bad, 1))

	assert.Empty(t, reg.All())
	_, err := reg.Info("alpha")
	assert.ErrorIs(t, err, errors.ErrUnknownProvider)
}

func TestRegistry_ObserversNotified(t *testing.T) {
	reg := provider.NewRegistry(nil)
	obs := &recordingObserver{}
	reg.AddObserver(obs)

	require.NoError(t, reg.Register(testutil.NewFakeAdapter("alpha", stockKline()), 1))
	require.NoError(t, reg.Unregister("alpha"))

	assert.Equal(t, []string{"alpha"}, obs.registered)
	assert.Equal(t, []string{"alpha"}, obs.unregistered)
}

func TestRegistry_LateObserverSeesExistingProviders(t *testing.T) {
	reg := provider.NewRegistry(nil)
	require.NoError(t, reg.Register(testutil.NewFakeAdapter("alpha", stockKline()), 1))
	require.NoError(t, reg.Register(testutil.NewFakeAdapter("beta", stockKline()), 1))

	obs := &recordingObserver{}
	reg.AddObserver(obs)

	assert.ElementsMatch(t, []string{"alpha", "beta"}, obs.registered)
}

func TestRegistry_ListCapable(t *testing.T) {
	reg := provider.NewRegistry(nil)
	require.NoError(t, reg.Register(testutil.NewFakeAdapter("beta", stockKline()), 1))
	require.NoError(t, reg.Register(testutil.NewFakeAdapter("alpha", stockKline()), 1))
	cryptoOnly := testutil.NewFakeAdapter("gamma",
		types.Capability{Asset: types.AssetCrypto, Data: types.DataHistoricalKline})
	require.NoError(t, reg.Register(cryptoOnly, 1))

	// Nothing listed until activation.
	assert.Empty(t, reg.ListCapable(types.AssetStock, types.DataHistoricalKline))

	require.NoError(t, reg.Activate("alpha"))
	require.NoError(t, reg.Activate("beta"))
	require.NoError(t, reg.Activate("gamma"))

	capable := reg.ListCapable(types.AssetStock, types.DataHistoricalKline)
	require.Len(t, capable, 2)
	// Sorted by id for determinism.
	assert.Equal(t, "alpha", capable[0].ID)
	assert.Equal(t, "beta", capable[1].ID)

	// A crypto-only provider never appears for stock queries.
	for _, info := range capable {
		assert.NotEqual(t, "gamma", info.ID)
	}
}

func TestRegistry_DisableRemovesFromListing(t *testing.T) {
	reg := provider.NewRegistry(nil)
	require.NoError(t, reg.Register(testutil.NewFakeAdapter("alpha", stockKline()), 1))
	require.NoError(t, reg.Activate("alpha"))
	require.Len(t, reg.ListCapable(types.AssetStock, types.DataHistoricalKline), 1)

	require.NoError(t, reg.Disable("alpha"))
	assert.Empty(t, reg.ListCapable(types.AssetStock, types.DataHistoricalKline))

	require.NoError(t, reg.Activate("alpha"))
	assert.Len(t, reg.ListCapable(types.AssetStock, types.DataHistoricalKline), 1)
}

func TestRegistry_SetPriority(t *testing.T) {
	reg := provider.NewRegistry(nil)
	require.NoError(t, reg.Register(testutil.NewFakeAdapter("alpha", stockKline()), 1))
	require.NoError(t, reg.Register(testutil.NewFakeAdapter("beta", stockKline()), 1))

	require.NoError(t, reg.SetPriority(types.AssetStock, []string{"beta", "alpha"}))
	assert.Equal(t, []string{"beta", "alpha"}, reg.Priority(types.AssetStock))

	err := reg.SetPriority(types.AssetStock, []string{"beta", "ghost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownProvider)

	// Unregistering drops the provider from priority orderings.
	require.NoError(t, reg.Unregister("beta"))
	assert.Equal(t, []string{"alpha"}, reg.Priority(types.AssetStock))
}

func TestRegistry_UnknownProviderErrors(t *testing.T) {
	reg := provider.NewRegistry(nil)

	_, err := reg.Adapter("ghost")
	assert.ErrorIs(t, err, errors.ErrUnknownProvider)
	_, err = reg.Info("ghost")
	assert.ErrorIs(t, err, errors.ErrUnknownProvider)
	assert.ErrorIs(t, reg.Unregister("ghost"), errors.ErrUnknownProvider)
	assert.ErrorIs(t, reg.Activate("ghost"), errors.ErrUnknownProvider)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "discovered", provider.StateDiscovered.String())
	assert.Equal(t, "validated", provider.StateValidated.String())
	assert.Equal(t, "active", provider.StateActive.String())
	assert.Equal(t, "disabled", provider.StateDisabled.String())
	assert.Equal(t, "unknown", provider.State(99).String())
}
