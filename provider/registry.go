package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/types"
)

// Observer is notified of registry lifecycle events. The metrics tracker and
// the breaker manager subscribe so every registered provider starts with a
// zeroed counter set and a CLOSED breaker.
type Observer interface {
	ProviderRegistered(info Info)
	ProviderUnregistered(id string)
}

// Registry tracks all provider adapters, their declared capabilities and
// their lifecycle state. It exclusively owns Info records and adapter
// instances; other components read copies.
type Registry struct {
	mu         sync.RWMutex
	adapters   map[string]Adapter
	infos      map[string]*Info
	priorities map[types.AssetType][]string
	observers  []Observer
	logger     *slog.Logger
}

// NewRegistry creates a new empty provider registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		adapters:   make(map[string]Adapter),
		infos:      make(map[string]*Info),
		priorities: make(map[types.AssetType][]string),
		logger:     logger.With("component", "Registry"),
	}
}

// AddObserver subscribes an observer to registration events. Observers added
// after providers were registered are notified for the existing providers so
// subscription order does not matter.
func (r *Registry) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	r.mu.Lock()
	r.observers = append(r.observers, obs)
	existing := make([]Info, 0, len(r.infos))
	for _, info := range r.infos {
		existing = append(existing, *info)
	}
	r.mu.Unlock()

	for _, info := range existing {
		obs.ProviderRegistered(info)
	}
}

// Register registers a provider adapter with the given routing weight. The
// entry is stored in StateDiscovered, moves to StateValidated once its
// capability declarations check out, and is discarded on validation failure.
// Registration fails with ErrDuplicateProvider if the id is taken and
// ErrInvalidCapability if the adapter declares no capabilities.
func (r *Registry) Register(adapter Adapter, weight int) error {
	if adapter == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "adapter validation")
	}
	id := strings.TrimSpace(adapter.ID())
	if id == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "provider id validation")
	}
	if weight <= 0 {
		weight = 1
	}
	caps := adapter.Capabilities()

	info := Info{
		ID:           id,
		Name:         adapter.DisplayName(),
		Capabilities: caps,
		State:        StateDiscovered,
		Weight:       weight,
		RegisteredAt: time.Now(),
	}

	r.mu.Lock()
	if _, exists := r.infos[id]; exists {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrDuplicateProvider, "Registry", "Register",
			fmt.Sprintf("duplicate check for '%s'", id))
	}
	r.adapters[id] = adapter
	stored := info
	r.infos[id] = &stored
	r.mu.Unlock()

	if err := validateCapabilities(caps); err != nil {
		r.discard(id)
		return err
	}
	if err := r.setState(id, StateValidated, "Register"); err != nil {
		return err
	}
	info.State = StateValidated

	r.mu.RLock()
	observers := append([]Observer(nil), r.observers...)
	r.mu.RUnlock()

	r.logger.Info("provider registered",
		"provider", id, "capabilities", len(caps), "weight", weight)

	// Notify outside the lock: observers may call back into the registry.
	for _, obs := range observers {
		obs.ProviderRegistered(info)
	}
	return nil
}

func validateCapabilities(caps types.CapabilitySet) error {
	if caps.Empty() {
		return errors.WrapInvalid(errors.ErrInvalidCapability, "Registry", "Register", "capability validation")
	}
	for _, c := range caps {
		if !c.Asset.Valid() || !c.Data.Valid() {
			return errors.WrapInvalid(
				fmt.Errorf("capability (%s, %s) is not a supported pair", c.Asset, c.Data),
				"Registry", "Register", "capability validation")
		}
	}
	return nil
}

// discard removes an entry that never completed registration, without the
// observer notifications Unregister sends.
func (r *Registry) discard(id string) {
	r.mu.Lock()
	delete(r.adapters, id)
	delete(r.infos, id)
	for asset, order := range r.priorities {
		r.priorities[asset] = removeID(order, id)
	}
	r.mu.Unlock()
}

// Unregister removes a provider and notifies observers.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	if _, exists := r.infos[id]; !exists {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrUnknownProvider, "Registry", "Unregister",
			fmt.Sprintf("lookup for '%s'", id))
	}
	delete(r.adapters, id)
	delete(r.infos, id)
	for asset, order := range r.priorities {
		r.priorities[asset] = removeID(order, id)
	}
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	r.logger.Info("provider unregistered", "provider", id)

	for _, obs := range observers {
		obs.ProviderUnregistered(id)
	}
	return nil
}

// Adapter returns the adapter instance for a provider id.
func (r *Registry) Adapter(id string) (Adapter, error) {
	r.mu.RLock()
	adapter, exists := r.adapters[id]
	r.mu.RUnlock()
	if !exists {
		return nil, errors.WrapInvalid(errors.ErrUnknownProvider, "Registry", "Adapter",
			fmt.Sprintf("lookup for '%s'", id))
	}
	return adapter, nil
}

// Info returns a copy of the registry metadata for a provider id.
func (r *Registry) Info(id string) (Info, error) {
	r.mu.RLock()
	info, exists := r.infos[id]
	r.mu.RUnlock()
	if !exists {
		return Info{}, errors.WrapInvalid(errors.ErrUnknownProvider, "Registry", "Info",
			fmt.Sprintf("lookup for '%s'", id))
	}
	return *info, nil
}

// ListCapable returns the active providers declaring capability for the
// given (asset type, data type) pair, sorted by id for determinism. The
// router applies strategy ordering on top of this list.
func (r *Registry) ListCapable(asset types.AssetType, data types.DataType) []Info {
	r.mu.RLock()
	capable := make([]Info, 0, len(r.infos))
	for _, info := range r.infos {
		if info.State != StateActive {
			continue
		}
		if info.Capabilities.Supports(asset, data) {
			capable = append(capable, *info)
		}
	}
	r.mu.RUnlock()

	sort.Slice(capable, func(i, j int) bool { return capable[i].ID < capable[j].ID })
	return capable
}

// All returns a copy of every registered provider's metadata.
func (r *Registry) All() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.infos))
	for _, info := range r.infos {
		infos = append(infos, *info)
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// SetPriority sets the operator-configured provider order for an asset type,
// consumed by the priority routing strategy. Every id must be registered.
func (r *Registry) SetPriority(asset types.AssetType, orderedIDs []string) error {
	if !asset.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("unknown asset type %q", asset), "Registry", "SetPriority", "asset type validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range orderedIDs {
		if _, exists := r.infos[id]; !exists {
			return errors.WrapInvalid(errors.ErrUnknownProvider, "Registry", "SetPriority",
				fmt.Sprintf("priority entry '%s'", id))
		}
	}
	r.priorities[asset] = append([]string(nil), orderedIDs...)
	return nil
}

// Priority returns the operator-configured provider order for an asset type.
func (r *Registry) Priority(asset types.AssetType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.priorities[asset]...)
}

// Activate moves a validated or disabled provider into routing eligibility.
func (r *Registry) Activate(id string) error {
	return r.setState(id, StateActive, "Activate")
}

// Disable removes a provider from routing consideration without
// unregistering it. Explicit operator action.
func (r *Registry) Disable(id string) error {
	return r.setState(id, StateDisabled, "Disable")
}

func (r *Registry) setState(id string, state State, op string) error {
	r.mu.Lock()
	info, exists := r.infos[id]
	if !exists {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrUnknownProvider, "Registry", op,
			fmt.Sprintf("lookup for '%s'", id))
	}
	previous := info.State
	info.State = state
	r.mu.Unlock()

	if previous != state {
		r.logger.Info("provider state changed",
			"provider", id, "from", previous.String(), "to", state.String())
	}
	return nil
}

func removeID(order []string, id string) []string {
	out := order[:0]
	for _, v := range order {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
