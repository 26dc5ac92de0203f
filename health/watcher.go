package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/quantdata/breaker"
	"github.com/c360/quantdata/metric"
	"github.com/c360/quantdata/provider"
)

// WatcherConfig tunes the probe sweep.
type WatcherConfig struct {
	// Interval is the time between full sweeps over the registry.
	Interval time.Duration `json:"interval" mapstructure:"interval"`

	// ProbeTimeout bounds one adapter HealthCheck call.
	ProbeTimeout time.Duration `json:"probe_timeout" mapstructure:"probe_timeout"`
}

// DefaultWatcherConfig returns the default sweep cadence.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Interval:     30 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

func (c WatcherConfig) withDefaults() WatcherConfig {
	d := DefaultWatcherConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	return c
}

// Watcher probes every registered adapter on a fixed interval and keeps the
// monitor current. Probes run outside the request path and never feed the
// failure counters; they exist for operator visibility only.
type Watcher struct {
	cfg      WatcherConfig
	registry *provider.Registry
	tracker  *metric.Tracker
	breakers *breaker.Manager
	monitor  *Monitor
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewWatcher creates a watcher over the given registry, tracker and breaker
// manager. The monitor is owned by the watcher and exposed via Monitor().
func NewWatcher(cfg WatcherConfig, registry *provider.Registry, tracker *metric.Tracker, breakers *breaker.Manager, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:      cfg.withDefaults(),
		registry: registry,
		tracker:  tracker,
		breakers: breakers,
		monitor:  NewMonitor(),
		logger:   logger.With("component", "HealthWatcher"),
	}
}

// Monitor exposes the status map the watcher maintains.
func (w *Watcher) Monitor() *Monitor { return w.monitor }

// Start launches the sweep loop. The first sweep runs immediately so the
// monitor is populated before the first tick.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.stopped = make(chan struct{})

	go w.run(ctx)
}

// Stop ends the sweep loop and waits for the in-flight sweep to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	stopped := w.stopped
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

// Sweep probes every registered adapter once and updates the monitor.
func (w *Watcher) Sweep(ctx context.Context) {
	for _, info := range w.registry.All() {
		adapter, err := w.registry.Adapter(info.ID)
		if err != nil {
			// Unregistered between All and here.
			w.monitor.Remove(info.ID)
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, w.cfg.ProbeTimeout)
		probe := adapter.HealthCheck(probeCtx)
		cancel()

		status := FromProbe(info.ID, probe, w.tracker.HealthScore(info.ID), w.breakers.State(info.ID))
		w.monitor.Update(info.ID, status)

		if !status.Healthy {
			w.logger.Warn("provider unhealthy",
				"provider", info.ID, "status", status.Status, "message", status.Message)
		}
	}

	// Drop statuses for providers that left the registry.
	known := make(map[string]bool)
	for _, info := range w.registry.All() {
		known[info.ID] = true
	}
	for _, name := range w.monitor.ListProviders() {
		if !known[name] {
			w.monitor.Remove(name)
		}
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.stopped)

	w.Sweep(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}
