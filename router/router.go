// Package router produces ranked provider candidate lists for canonical
// queries. Ranking combines the registry's capability filter, the circuit
// breaker eligibility filter and a selectable ordering strategy. The router
// reads registry and metrics state but owns neither; candidate lists are
// produced fresh per request and never cached.
package router

import (
	"sort"
	"sync"

	"github.com/c360/quantdata/breaker"
	"github.com/c360/quantdata/metric"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/types"
)

// Strategy selects the candidate ordering policy.
type Strategy string

// Supported routing strategies
const (
	StrategyPriority           Strategy = "priority"
	StrategyRoundRobin         Strategy = "round_robin"
	StrategyWeightedRoundRobin Strategy = "weighted_round_robin"
	StrategyHealthBased        Strategy = "health_based"
	StrategyCircuitBreaker     Strategy = "circuit_breaker"
)

// Valid reports whether the strategy is one of the supported values.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPriority, StrategyRoundRobin, StrategyWeightedRoundRobin,
		StrategyHealthBased, StrategyCircuitBreaker:
		return true
	default:
		return false
	}
}

// Router ranks eligible providers for a query.
type Router struct {
	registry *provider.Registry
	tracker  *metric.Tracker
	breakers *breaker.Manager

	mu      sync.Mutex
	cursors map[types.AssetType]int
}

// New creates a router over the given registry, metrics tracker and breaker
// manager.
func New(registry *provider.Registry, tracker *metric.Tracker, breakers *breaker.Manager) *Router {
	return &Router{
		registry: registry,
		tracker:  tracker,
		breakers: breakers,
		cursors:  make(map[types.AssetType]int),
	}
}

// Route returns the ranked provider ids for the query, possibly empty. An
// empty list means no eligible provider exists; the caller reports that as
// NoEligibleProvider. A provider hint in the query is ranked first but is
// never exempted from the breaker filter.
func (r *Router) Route(query types.Query, strategy Strategy) []string {
	capable := r.registry.ListCapable(query.Asset, query.Data)

	// Breaker filter: OPEN providers are never candidates.
	eligible := make([]provider.Info, 0, len(capable))
	for _, info := range capable {
		if r.breakers.State(info.ID) == breaker.StateOpen {
			continue
		}
		eligible = append(eligible, info)
	}
	if len(eligible) == 0 {
		return nil
	}

	// Pull the hinted provider to the front; rank the rest by strategy.
	var hinted []provider.Info
	rest := eligible
	if query.ProviderHint != "" {
		rest = make([]provider.Info, 0, len(eligible))
		for _, info := range eligible {
			if info.ID == query.ProviderHint {
				hinted = append(hinted, info)
			} else {
				rest = append(rest, info)
			}
		}
	}

	var ranked []provider.Info
	switch strategy {
	case StrategyRoundRobin:
		ranked = r.rotate(query.Asset, rest)
	case StrategyWeightedRoundRobin:
		ranked = r.rotateWeighted(query.Asset, rest)
	case StrategyHealthBased:
		ranked = r.rankByHealth(rest)
	case StrategyCircuitBreaker:
		ranked = r.rankBreakerAware(query.Asset, rest)
	default:
		ranked = r.rankByPriority(query.Asset, rest)
	}

	ids := make([]string, 0, len(hinted)+len(ranked))
	for _, info := range hinted {
		ids = append(ids, info.ID)
	}
	for _, info := range ranked {
		ids = append(ids, info.ID)
	}
	return ids
}

// rankByPriority orders providers by the operator-configured order for the
// asset type. Providers missing from the configured order keep their id
// ordering after the configured ones.
func (r *Router) rankByPriority(asset types.AssetType, infos []provider.Info) []provider.Info {
	order := r.registry.Priority(asset)
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}

	ranked := append([]provider.Info(nil), infos...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, iOK := rank[ranked[i].ID]
		rj, jOK := rank[ranked[j].ID]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return ranked[i].ID < ranked[j].ID
		}
	})
	return ranked
}

// rotate advances the per-asset-type cursor and rotates the id-sorted list.
func (r *Router) rotate(asset types.AssetType, infos []provider.Info) []provider.Info {
	if len(infos) == 0 {
		return infos
	}
	pos := r.advanceCursor(asset)
	start := pos % len(infos)
	rotated := make([]provider.Info, 0, len(infos))
	rotated = append(rotated, infos[start:]...)
	rotated = append(rotated, infos[:start]...)
	return rotated
}

// rotateWeighted rotates over a sequence where each provider appears
// proportionally to its configured weight, then deduplicates preserving
// first occurrence. Heavier providers lead the ranking more often.
func (r *Router) rotateWeighted(asset types.AssetType, infos []provider.Info) []provider.Info {
	if len(infos) == 0 {
		return infos
	}

	var sequence []provider.Info
	for _, info := range infos {
		weight := info.Weight
		if weight <= 0 {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			sequence = append(sequence, info)
		}
	}

	pos := r.advanceCursor(asset)
	start := pos % len(sequence)

	seen := make(map[string]bool, len(infos))
	ranked := make([]provider.Info, 0, len(infos))
	for i := 0; i < len(sequence); i++ {
		info := sequence[(start+i)%len(sequence)]
		if seen[info.ID] {
			continue
		}
		seen[info.ID] = true
		ranked = append(ranked, info)
	}
	return ranked
}

// rankByHealth orders providers by descending health score, breaking ties by
// lower average latency, then by provider id for determinism.
func (r *Router) rankByHealth(infos []provider.Info) []provider.Info {
	type scored struct {
		info    provider.Info
		health  float64
		latency int64
	}
	scoredInfos := make([]scored, 0, len(infos))
	for _, info := range infos {
		s := scored{info: info, health: 1.0}
		if snap, ok := r.tracker.Snapshot(info.ID); ok {
			s.health = snap.HealthScore
			s.latency = int64(snap.AvgLatency)
		}
		scoredInfos = append(scoredInfos, s)
	}

	sort.SliceStable(scoredInfos, func(i, j int) bool {
		if scoredInfos[i].health != scoredInfos[j].health {
			return scoredInfos[i].health > scoredInfos[j].health
		}
		if scoredInfos[i].latency != scoredInfos[j].latency {
			return scoredInfos[i].latency < scoredInfos[j].latency
		}
		return scoredInfos[i].info.ID < scoredInfos[j].info.ID
	})

	ranked := make([]provider.Info, 0, len(scoredInfos))
	for _, s := range scoredInfos {
		ranked = append(ranked, s.info)
	}
	return ranked
}

// rankBreakerAware keeps the priority ordering but demotes HALF_OPEN
// providers to the tail so they serve as limited-traffic probes.
func (r *Router) rankBreakerAware(asset types.AssetType, infos []provider.Info) []provider.Info {
	byPriority := r.rankByPriority(asset, infos)

	closed := make([]provider.Info, 0, len(byPriority))
	var halfOpen []provider.Info
	for _, info := range byPriority {
		if r.breakers.State(info.ID) == breaker.StateHalfOpen {
			halfOpen = append(halfOpen, info)
		} else {
			closed = append(closed, info)
		}
	}
	return append(closed, halfOpen...)
}

func (r *Router) advanceCursor(asset types.AssetType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos := r.cursors[asset]
	r.cursors[asset] = pos + 1
	return pos
}
