// Package breaker provides per-provider circuit breakers for the data
// engine. Each provider gets an independent three-state breaker: CLOSED
// under normal operation, OPEN after a run of consecutive transport
// failures, HALF_OPEN after the cool-down with a single probe request.
// Concurrent requests during HALF_OPEN are rejected and treated as
// still-OPEN so a recovering provider is not hit by a thundering herd.
package breaker

import (
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/metric"
	"github.com/c360/quantdata/provider"
)

// State is the breaker state exposed to the router.
type State int

const (
	// StateClosed passes requests through normally
	StateClosed State = iota
	// StateHalfOpen admits a single probe request after the cool-down
	StateHalfOpen
	// StateOpen rejects all requests until the cool-down elapses
	StateOpen
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config holds breaker thresholds. Zero values take the defaults.
type Config struct {
	// FailureThreshold is the number of consecutive transport failures
	// that trips CLOSED -> OPEN.
	FailureThreshold uint32 `json:"failure_threshold"`

	// Cooldown is how long the breaker stays OPEN before admitting the
	// HALF_OPEN probe.
	Cooldown time.Duration `json:"cooldown"`

	// Window is the rolling interval after which the consecutive-failure
	// count is cleared while CLOSED.
	Window time.Duration `json:"window"`
}

// DefaultConfig returns the default breaker thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
		Window:           60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	return c
}

// Manager owns one circuit breaker per provider. It implements
// provider.Observer so every registered provider starts CLOSED.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[*provider.RawResult]
	cfg      Config
	core     *metric.Metrics
	logger   *slog.Logger
}

// NewManager creates a breaker manager. core may be nil in tests.
func NewManager(cfg Config, core *metric.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker[*provider.RawResult]),
		cfg:      cfg.withDefaults(),
		core:     core,
		logger:   logger.With("component", "BreakerManager"),
	}
}

// ProviderRegistered implements provider.Observer
func (m *Manager) ProviderRegistered(info provider.Info) {
	m.breaker(info.ID)
}

// ProviderUnregistered implements provider.Observer
func (m *Manager) ProviderUnregistered(id string) {
	m.mu.Lock()
	delete(m.breakers, id)
	m.mu.Unlock()

	if m.core != nil {
		m.core.BreakerState.DeleteLabelValues(id)
	}
}

// State returns the breaker state for a provider. Unknown providers report
// CLOSED: the breaker only constrains providers it has seen.
func (m *Manager) State(id string) State {
	m.mu.RLock()
	cb, exists := m.breakers[id]
	m.mu.RUnlock()
	if !exists {
		return StateClosed
	}
	return fromGobreaker(cb.State())
}

// Execute runs fn under the provider's breaker. A rejected call (breaker
// OPEN, or a second request during the HALF_OPEN probe) returns
// errors.ErrCircuitOpen without invoking fn.
func (m *Manager) Execute(id string, fn func() (*provider.RawResult, error)) (*provider.RawResult, error) {
	result, err := m.breaker(id).Execute(fn)
	if err != nil {
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.WrapTransient(errors.ErrCircuitOpen, "BreakerManager", "Execute", id)
		}
		return nil, err
	}
	return result, nil
}

func (m *Manager) breaker(id string) *gobreaker.CircuitBreaker[*provider.RawResult] {
	m.mu.RLock()
	cb, exists := m.breakers[id]
	m.mu.RUnlock()
	if exists {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, exists = m.breakers[id]; exists {
		return cb
	}

	threshold := m.cfg.FailureThreshold
	cb = gobreaker.NewCircuitBreaker[*provider.RawResult](gobreaker.Settings{
		Name:        id,
		MaxRequests: 1, // single HALF_OPEN probe
		Interval:    m.cfg.Window,
		Timeout:     m.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.logger.Warn("breaker state changed",
				"provider", name,
				"from", fromGobreaker(from).String(),
				"to", fromGobreaker(to).String())
			if m.core != nil {
				m.core.BreakerState.WithLabelValues(name).Set(float64(fromGobreaker(to)))
			}
		},
	})
	m.breakers[id] = cb

	if m.core != nil {
		m.core.BreakerState.WithLabelValues(id).Set(float64(StateClosed))
	}
	return cb
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
