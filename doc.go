// Package quantdata is a unified multi-source market data access engine.
//
// Callers describe the data they want as a canonical query (symbol, asset
// type, data type, frequency, range) and the engine answers it: the result
// cache is consulted first, then eligible providers are ranked by the
// configured routing strategy and tried in order until one returns data that
// clears the quality gate. Provider payloads are normalized into a canonical
// schema, scored for completeness, consistency and timeliness, stamped with
// provenance and cached.
//
// Package layout:
//
//   - types: canonical query, result and classification types
//   - provider: the adapter contract and the provider registry
//   - provider/httpfeed, provider/wsfeed: concrete adapters
//   - normalize: vendor field mapping onto the canonical schema
//   - quality: the result quality scorer
//   - router: candidate ranking strategies
//   - breaker: per-provider circuit breakers
//   - metric: Prometheus registry and per-provider rolling metrics
//   - cache: memory and disk result caching with per-data-type TTLs
//   - engine: the resolve pipeline tying the above together
//   - health: provider health probing
//   - service: the NATS request/reply surface
//   - cmd/quantdatad: the daemon
package quantdata
