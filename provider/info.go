package provider

import (
	"time"

	"github.com/c360/quantdata/types"
)

// State represents the current lifecycle state of a registered provider
type State int

const (
	// StateDiscovered indicates the provider was seen but not yet validated
	StateDiscovered State = iota
	// StateValidated indicates registration checks passed
	StateValidated
	// StateActive indicates the provider is eligible for routing
	StateActive
	// StateDisabled indicates an operator removed the provider from routing
	StateDisabled
)

// String returns a string representation of the provider state
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateValidated:
		return "validated"
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Info holds registry-owned metadata about one registered provider. The
// registry is the only component that mutates Info; everyone else reads
// copies.
type Info struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Capabilities types.CapabilitySet `json:"capabilities"`
	State        State              `json:"state"`
	// Weight is the operator-configured routing weight used by the weighted
	// round-robin strategy. Defaults to 1.
	Weight       int       `json:"weight"`
	RegisteredAt time.Time `json:"registered_at"`
}
