// Package errors provides standardized error handling patterns for quantdata
// components. It includes error classification, standard error variables for
// the data-engine error taxonomy, and helper functions for consistent error
// wrapping and classification across the system.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried or
	// recovered via failover to another provider
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Registration and configuration errors
	ErrDuplicateProvider = errors.New("provider already registered")
	ErrInvalidCapability = errors.New("provider declares no capabilities")
	ErrUnknownProvider   = errors.New("provider not registered")
	ErrProviderDisabled  = errors.New("provider disabled")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrMissingConfig     = errors.New("missing required configuration")

	// Transport-level adapter errors, recoverable via failover
	ErrNoConnection    = errors.New("no connection available")
	ErrConnectionLost  = errors.New("connection lost")
	ErrProviderTimeout = errors.New("provider call timed out")
	ErrRateLimited     = errors.New("rate limited")

	// Data errors
	ErrInvalidData           = errors.New("invalid data format")
	ErrMissingRequiredField  = errors.New("required field not mapped")
	ErrQualityBelowThreshold = errors.New("result quality below threshold")
	ErrEmptyResult           = errors.New("provider returned no data")

	// Pipeline outcome errors
	ErrNoEligibleProvider   = errors.New("no eligible provider for query")
	ErrAllSourcesExhausted  = errors.New("all data sources exhausted")
	ErrCircuitOpen          = errors.New("circuit breaker open")
	ErrConcurrencyExhausted = errors.New("provider concurrency limit reached")

	// Cache errors
	ErrCacheKeyInvalid = errors.New("invalid cache key")
	ErrCacheClosed     = errors.New("cache closed")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Attempt records the outcome of one provider invocation inside the
// extraction loop. Reason distinguishes transport failures from quality
// failures for operator diagnostics.
type Attempt struct {
	ProviderID string `json:"provider_id"`
	Reason     string `json:"reason"`
	Transport  bool   `json:"transport"`
}

// ExhaustedError is returned when every routed candidate was tried and none
// produced a qualifying result. It carries per-candidate diagnostics.
type ExhaustedError struct {
	Attempts []Attempt
}

// Error implements the error interface
func (ee *ExhaustedError) Error() string {
	parts := make([]string, 0, len(ee.Attempts))
	for _, a := range ee.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.ProviderID, a.Reason))
	}
	return fmt.Sprintf("%v [%s]", ErrAllSourcesExhausted, strings.Join(parts, "; "))
}

// Unwrap allows errors.Is(err, ErrAllSourcesExhausted) checks
func (ee *ExhaustedError) Unwrap() error {
	return ErrAllSourcesExhausted
}

// Exhausted builds an ExhaustedError from the attempts gathered by the
// extraction loop.
func Exhausted(attempts []Attempt) error {
	return &ExhaustedError{Attempts: attempts}
}

// Is reports whether any error in err's chain matches target. Re-exported
// so callers do not need both this package and the standard library one.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain matching target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsTransient checks if an error is transient and recoverable via failover
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrNoConnection) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrProviderTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrQualityBelowThreshold) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	// Unclassified errors from third-party adapter SDKs: fall back to
	// message inspection for common transport patterns.
	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
		"busy",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrDuplicateProvider) ||
		errors.Is(err, ErrInvalidCapability) ||
		errors.Is(err, ErrMissingRequiredField)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient // Default for nil
	}

	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	// Default to transient for unknown errors to allow failover
	return ErrorTransient
}

// newClassified creates a new classified error
// This is an internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}
