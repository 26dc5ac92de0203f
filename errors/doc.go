// Package errors provides standardized error handling for quantdata components.
//
// # Overview
//
// The package implements a three-class error classification system for the
// data-access engine: Transient (temporary, recoverable via failover or
// retry), Invalid (bad input or configuration, non-retryable), and Fatal
// (unrecoverable, stop processing).
//
// It also carries the engine's error taxonomy as standard error variables:
//
//   - Registration: ErrDuplicateProvider, ErrInvalidCapability
//   - Transport: ErrNoConnection, ErrConnectionLost, ErrProviderTimeout
//   - Quality gate: ErrQualityBelowThreshold, ErrMissingRequiredField
//   - Pipeline outcome: ErrNoEligibleProvider, ErrAllSourcesExhausted
//
// Transport and quality failures are handled inside the extraction loop and
// never surface individually; only the aggregate outcome crosses the pipeline
// boundary. ExhaustedError carries per-candidate diagnostics for operators.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// All error types support errors.Is, errors.As and wrapping chains, and
// classification is preserved through the chain. Context errors
// (context.DeadlineExceeded, context.Canceled) classify as Transient so an
// abandoned adapter call counts as a provider failure.
package errors
