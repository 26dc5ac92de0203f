package metric

import (
	"sync"
	"time"

	"github.com/c360/quantdata/provider"
)

// ewmaAlpha is the smoothing factor for the exponentially-weighted average
// latency. Higher values track recent samples more closely.
const ewmaAlpha = 0.3

// latencyBaseline is the latency at which the latency sub-factor of the
// health score is 0.5. Providers faster than this score close to 1.
const latencyBaseline = 500 * time.Millisecond

// Snapshot is a point-in-time copy of one provider's rolling metrics.
type Snapshot struct {
	Provider          string        `json:"provider"`
	Total             int64         `json:"total"`
	Success           int64         `json:"success"`
	TransportFailures int64         `json:"transport_failures"`
	QualityFailures   int64         `json:"quality_failures"`
	AvgLatency        time.Duration `json:"avg_latency"`
	HealthScore       float64       `json:"health_score"`
	LastUpdated       time.Time     `json:"last_updated"`
}

// providerMetrics is the mutable rolling state for one provider. Guarded by
// the tracker's per-provider entry lock; there is no global lock across
// providers.
type providerMetrics struct {
	mu                sync.Mutex
	total             int64
	success           int64
	transportFailures int64
	qualityFailures   int64
	ewmaLatency       time.Duration
	lastUpdated       time.Time
}

// Tracker owns all ProviderMetrics. It implements provider.Observer so every
// registered provider starts with a zeroed counter set, and feeds the
// Prometheus core metrics on every update. Counters are never reset except
// by explicit operator action (Reset).
type Tracker struct {
	mu        sync.RWMutex
	providers map[string]*providerMetrics
	core      *Metrics
}

// NewTracker creates a tracker. core may be nil in tests; Prometheus export
// is skipped in that case.
func NewTracker(core *Metrics) *Tracker {
	return &Tracker{
		providers: make(map[string]*providerMetrics),
		core:      core,
	}
}

// ProviderRegistered implements provider.Observer
func (t *Tracker) ProviderRegistered(info provider.Info) {
	t.mu.Lock()
	if _, exists := t.providers[info.ID]; !exists {
		t.providers[info.ID] = &providerMetrics{}
	}
	t.mu.Unlock()

	if t.core != nil {
		t.core.ProviderHealth.WithLabelValues(info.ID).Set(1.0)
	}
}

// ProviderUnregistered implements provider.Observer
func (t *Tracker) ProviderUnregistered(id string) {
	t.mu.Lock()
	delete(t.providers, id)
	t.mu.Unlock()

	if t.core != nil {
		t.core.ProviderHealth.DeleteLabelValues(id)
		t.core.ProviderLatency.DeleteLabelValues(id)
	}
}

// RecordSuccess records one successful adapter invocation.
func (t *Tracker) RecordSuccess(id string, latency time.Duration) {
	t.record(id, OutcomeSuccess, latency)
}

// RecordTransportFailure records one transport-level adapter failure
// (connection error, timeout, abandoned call).
func (t *Tracker) RecordTransportFailure(id string, latency time.Duration) {
	t.record(id, OutcomeTransportFailure, latency)
}

// RecordQualityFailure records an invocation that returned data below the
// quality threshold. Distinct from transport failures: the provider is
// reachable but its data is poor.
func (t *Tracker) RecordQualityFailure(id string, latency time.Duration) {
	t.record(id, OutcomeQualityFailure, latency)
}

func (t *Tracker) record(id, outcome string, latency time.Duration) {
	pm := t.entry(id)

	pm.mu.Lock()
	pm.total++
	switch outcome {
	case OutcomeSuccess:
		pm.success++
	case OutcomeTransportFailure:
		pm.transportFailures++
	case OutcomeQualityFailure:
		pm.qualityFailures++
	}
	if latency > 0 {
		if pm.ewmaLatency == 0 {
			pm.ewmaLatency = latency
		} else {
			pm.ewmaLatency = time.Duration(
				ewmaAlpha*float64(latency) + (1-ewmaAlpha)*float64(pm.ewmaLatency))
		}
	}
	pm.lastUpdated = time.Now()
	score := healthScore(pm.success, pm.total, pm.ewmaLatency)
	pm.mu.Unlock()

	if t.core != nil {
		t.core.ProviderRequests.WithLabelValues(id, outcome).Inc()
		if latency > 0 {
			t.core.ProviderLatency.WithLabelValues(id).Observe(latency.Seconds())
		}
		t.core.ProviderHealth.WithLabelValues(id).Set(score)
	}
}

// Snapshot returns a copy of the rolling metrics for one provider.
func (t *Tracker) Snapshot(id string) (Snapshot, bool) {
	t.mu.RLock()
	pm, exists := t.providers[id]
	t.mu.RUnlock()
	if !exists {
		return Snapshot{}, false
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	return Snapshot{
		Provider:          id,
		Total:             pm.total,
		Success:           pm.success,
		TransportFailures: pm.transportFailures,
		QualityFailures:   pm.qualityFailures,
		AvgLatency:        pm.ewmaLatency,
		HealthScore:       healthScore(pm.success, pm.total, pm.ewmaLatency),
		LastUpdated:       pm.lastUpdated,
	}, true
}

// HealthScore returns the derived health score in [0,1] for a provider.
// Unknown providers score 0; providers with no traffic yet score 1 so new
// providers are not starved by the health-based strategy.
func (t *Tracker) HealthScore(id string) float64 {
	snap, exists := t.Snapshot(id)
	if !exists {
		return 0
	}
	return snap.HealthScore
}

// All returns snapshots for every tracked provider.
func (t *Tracker) All() []Snapshot {
	t.mu.RLock()
	ids := make([]string, 0, len(t.providers))
	for id := range t.providers {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := t.Snapshot(id); ok {
			snapshots = append(snapshots, snap)
		}
	}
	return snapshots
}

// Reset zeroes the counters for one provider. Explicit operator action only.
func (t *Tracker) Reset(id string) {
	t.mu.RLock()
	pm, exists := t.providers[id]
	t.mu.RUnlock()
	if !exists {
		return
	}

	pm.mu.Lock()
	pm.total = 0
	pm.success = 0
	pm.transportFailures = 0
	pm.qualityFailures = 0
	pm.ewmaLatency = 0
	pm.lastUpdated = time.Now()
	pm.mu.Unlock()

	if t.core != nil {
		t.core.ProviderHealth.WithLabelValues(id).Set(1.0)
	}
}

func (t *Tracker) entry(id string) *providerMetrics {
	t.mu.RLock()
	pm, exists := t.providers[id]
	t.mu.RUnlock()
	if exists {
		return pm
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if pm, exists = t.providers[id]; exists {
		return pm
	}
	pm = &providerMetrics{}
	t.providers[id] = pm
	return pm
}

// healthScore derives the [0,1] health score from the success ratio and the
// smoothed latency: score = 0.8*successRate + 0.2*latencyFactor, where
// latencyFactor = baseline/(baseline+ewma). Providers with no traffic score 1.
func healthScore(success, total int64, ewma time.Duration) float64 {
	if total == 0 {
		return 1.0
	}
	successRate := float64(success) / float64(total)
	latencyFactor := float64(latencyBaseline) / float64(latencyBaseline+ewma)
	return 0.8*successRate + 0.2*latencyFactor
}
