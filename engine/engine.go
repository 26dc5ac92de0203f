// Package engine implements the unified data access pipeline: canonical
// queries are answered from the cache when possible, otherwise routed
// across the registered providers with quality-gated failover, normalized,
// scored and cached.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/c360/quantdata/breaker"
	"github.com/c360/quantdata/cache"
	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/metric"
	"github.com/c360/quantdata/normalize"
	"github.com/c360/quantdata/pkg/retry"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/quality"
	"github.com/c360/quantdata/router"
	"github.com/c360/quantdata/types"
)

// Engine is the pipeline entry point. It owns the provider registry, the
// router, the per-provider metrics and breakers, the quality scorer and the
// result cache; callers own nothing but the query.
type Engine struct {
	cfg      Config
	registry *provider.Registry
	tracker  *metric.Tracker
	breakers *breaker.Manager
	router   *router.Router
	cache    *cache.ResultCache
	scorer   *quality.Scorer
	logger   *slog.Logger
	metrics  *engineMetrics

	// flight collapses concurrent identical queries into one extraction.
	flight   singleflight.Group
	limiters *limiterSet
}

// New creates an engine. The context bounds background goroutines (cache
// sweeps); cancelling it stops them without closing the engine.
func New(ctx context.Context, cfg Config, logger *slog.Logger, registry *metric.MetricsRegistry) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "Engine")

	var core *metric.Metrics
	if registry != nil {
		core = registry.CoreMetrics()
	}

	providers := provider.NewRegistry(logger)
	tracker := metric.NewTracker(core)
	breakers := breaker.NewManager(cfg.Breaker, core, logger)
	providers.AddObserver(tracker)
	providers.AddObserver(breakers)

	resultCache, err := cache.NewResultCache(ctx, cfg.Cache, registry)
	if err != nil {
		return nil, errors.WrapFatal(err, "Engine", "New", "result cache")
	}

	metrics, err := newEngineMetrics(registry)
	if err != nil {
		logger.Error("engine metrics registration failed, continuing without", "error", err)
		metrics = nil
	}

	return &Engine{
		cfg:      cfg,
		registry: providers,
		tracker:  tracker,
		breakers: breakers,
		router:   router.New(providers, tracker, breakers),
		cache:    resultCache,
		scorer:   quality.NewScorer(cfg.Scorer),
		logger:   logger,
		metrics:  metrics,
		limiters: newLimiterSet(cfg.ProviderConcurrency, cfg.ProviderRate),
	}, nil
}

// Registry exposes the provider registry for registration and operator
// lifecycle actions.
func (e *Engine) Registry() *provider.Registry { return e.registry }

// Tracker exposes the per-provider metrics tracker.
func (e *Engine) Tracker() *metric.Tracker { return e.tracker }

// Breakers exposes the circuit breaker manager.
func (e *Engine) Breakers() *breaker.Manager { return e.breakers }

// Cache exposes the result cache for operator invalidation.
func (e *Engine) Cache() *cache.ResultCache { return e.cache }

// RegisterProvider connects an adapter (with backoff), registers it with
// the given routing weight and activates it. A connect failure leaves the
// adapter unregistered.
func (e *Engine) RegisterProvider(ctx context.Context, adapter provider.Adapter, weight int) error {
	if adapter == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "RegisterProvider", "adapter validation")
	}
	if err := retry.Do(ctx, retry.Connect(), func() error {
		return adapter.Connect(ctx)
	}); err != nil {
		return errors.WrapTransient(err, "Engine", "RegisterProvider",
			fmt.Sprintf("connect '%s'", adapter.ID()))
	}
	if err := e.registry.Register(adapter, weight); err != nil {
		return err
	}
	return e.registry.Activate(adapter.ID())
}

// Resolve answers a canonical query: cache read-through, then the
// extraction-with-failover loop. Transport and quality failures are handled
// locally; only the aggregate outcome crosses this boundary.
func (e *Engine) Resolve(ctx context.Context, query types.Query) (*types.Result, error) {
	start := time.Now()
	dataType := string(query.Data)

	if err := query.Validate(); err != nil {
		e.metrics.recordResolve(dataType, "invalid", time.Since(start))
		return nil, err
	}

	if result, ok := e.cache.Get(query); ok {
		e.metrics.recordCacheHit(dataType)
		e.metrics.recordResolve(dataType, "cache_hit", time.Since(start))
		return result, nil
	}

	// Concurrent identical queries share one extraction; the winner's
	// cache write serves the rest.
	value, err, _ := e.flight.Do(query.Fingerprint(), func() (any, error) {
		if result, ok := e.cache.Get(query); ok {
			return result, nil
		}
		result, err := e.extract(ctx, query)
		if err != nil {
			return nil, err
		}
		if _, err := e.cache.Put(query, result); err != nil {
			e.logger.Warn("cache write failed", "query", query.Fingerprint(), "error", err)
		}
		return result, nil
	})
	if err != nil {
		outcome := "exhausted"
		if errors.Is(err, errors.ErrNoEligibleProvider) {
			outcome = "no_provider"
		}
		e.metrics.recordResolve(dataType, outcome, time.Since(start))
		return nil, err
	}

	e.metrics.recordResolve(dataType, "success", time.Since(start))
	return value.(*types.Result), nil
}

// extract runs the failover loop: candidates in ranked order, strictly one
// at a time, until one yields a result above the quality gate.
func (e *Engine) extract(ctx context.Context, query types.Query) (*types.Result, error) {
	candidates := e.router.Route(query, e.cfg.Strategy)
	if len(candidates) == 0 {
		return nil, errors.WrapTransient(errors.ErrNoEligibleProvider, "Engine", "extract",
			fmt.Sprintf("routing for (%s, %s)", query.Asset, query.Data))
	}

	threshold := e.cfg.thresholdFor(query.Data)
	attempts := make([]errors.Attempt, 0, len(candidates))

	for i, id := range candidates {
		if i > 0 {
			e.metrics.recordFailover()
		}
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, errors.Attempt{
				ProviderID: id, Reason: "request cancelled", Transport: true,
			})
			break
		}

		result, attempt := e.tryProvider(ctx, id, query, threshold)
		if result != nil {
			return result, nil
		}
		attempts = append(attempts, attempt)
	}

	return nil, errors.Exhausted(attempts)
}

// tryProvider runs one candidate end to end: bounded fetch through the
// breaker, normalization, scoring, quality gate. Returns a result only when
// the gate passes; otherwise the attempt diagnostic.
func (e *Engine) tryProvider(ctx context.Context, id string, query types.Query, threshold float64) (*types.Result, errors.Attempt) {
	adapter, err := e.registry.Adapter(id)
	if err != nil {
		return nil, errors.Attempt{ProviderID: id, Reason: "adapter lookup failed", Transport: true}
	}

	release, err := e.limiters.acquire(ctx, id)
	if err != nil {
		return nil, errors.Attempt{ProviderID: id, Reason: "concurrency limit wait cancelled", Transport: true}
	}
	defer release()

	start := time.Now()
	raw, err := e.breakers.Execute(id, func() (*provider.RawResult, error) {
		return e.fetchBounded(ctx, adapter, query)
	})
	latency := time.Since(start)

	if err != nil {
		if errors.Is(err, errors.ErrCircuitOpen) {
			// Rejected before reaching the adapter; not an adapter call,
			// so provider metrics stay untouched.
			return nil, errors.Attempt{ProviderID: id, Reason: "circuit open", Transport: true}
		}
		e.tracker.RecordTransportFailure(id, latency)
		e.logger.Debug("provider fetch failed",
			"provider", id, "query", query.Fingerprint(), "error", err)
		return nil, errors.Attempt{ProviderID: id, Reason: err.Error(), Transport: true}
	}

	result, report, err := normalize.Normalize(raw, query)
	if err != nil {
		// Unmappable payloads are quality failures: the transport worked,
		// the data did not.
		e.tracker.RecordQualityFailure(id, latency)
		return nil, errors.Attempt{ProviderID: id, Reason: err.Error(), Transport: false}
	}

	result.Quality = e.scorer.Score(result, quality.RowStats{
		RawRows:  report.RawRows,
		KeptRows: report.KeptRows,
	})
	result.Source = types.Provenance{
		Provider:  id,
		RequestID: uuid.NewString(),
		FetchedAt: time.Now().UTC(),
		Latency:   latency,
	}

	if result.Quality.Overall < threshold {
		e.tracker.RecordQualityFailure(id, latency)
		return nil, errors.Attempt{
			ProviderID: id,
			Reason:     fmt.Sprintf("quality %.2f below threshold %.2f", result.Quality.Overall, threshold),
			Transport:  false,
		}
	}

	e.tracker.RecordSuccess(id, latency)
	return result, errors.Attempt{}
}

// fetchBounded invokes the adapter under the per-data-type deadline. On
// expiry the call is abandoned: the loop moves on even if the adapter's
// underlying I/O has not returned yet.
func (e *Engine) fetchBounded(ctx context.Context, adapter provider.Adapter, query types.Query) (*provider.RawResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.timeoutFor(query.Data))
	defer cancel()

	type outcome struct {
		raw *provider.RawResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		raw, err := adapter.Fetch(callCtx, query)
		done <- outcome{raw: raw, err: err}
	}()

	select {
	case out := <-done:
		return out.raw, out.err
	case <-callCtx.Done():
		return nil, errors.WrapTransient(errors.ErrProviderTimeout, "Engine", "fetchBounded",
			fmt.Sprintf("fetch from '%s'", adapter.ID()))
	}
}

// InvalidateCache drops the cached entry for a query.
func (e *Engine) InvalidateCache(query types.Query) {
	e.cache.Invalidate(query)
}

// ProviderMetrics returns a snapshot of every provider's counters.
func (e *Engine) ProviderMetrics() []metric.Snapshot {
	return e.tracker.All()
}

// ResetProviderMetrics zeroes one provider's counters. Explicit operator
// action only; nothing in the pipeline resets counters.
func (e *Engine) ResetProviderMetrics(id string) {
	e.tracker.Reset(id)
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	return e.cache.Close()
}
