// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// This package offers a minimal retry mechanism with exponential backoff, designed for
// transient failures when connecting provider adapters to upstream data sources.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Connect(): 10 attempts, 50ms-1s delay (adapter connection at startup)
//
// # Usage Examples
//
// Basic retry with defaults:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return adapter.Connect(ctx)
//	})
//
// Retry with result:
//
//	assets, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() ([]types.AssetDescriptor, error) {
//	    return adapter.ListAssets(ctx, types.AssetStock, "")
//	})
//
// # Design Philosophy
//
// This package is intentionally minimal:
//
//   - No circuit breaker (the breaker package owns that concern)
//   - No metrics collection (instrument at the call site)
//   - No error classification beyond NonRetryable (caller decides what to retry)
//
// # Context Cancellation
//
// All retry operations respect context cancellation and stop immediately when the
// context ends, whether during the operation or during a backoff delay.
package retry
