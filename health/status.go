// Package health tracks provider health for operator visibility. A periodic
// watcher probes every registered adapter and combines the probe outcome
// with the rolling health score and circuit breaker state into a single
// status per provider.
package health

import (
	"regexp"
	"strings"
	"time"

	"github.com/c360/quantdata/breaker"
	"github.com/c360/quantdata/provider"
)

// Pre-compiled regexes for error message sanitization
var (
	httpURLRegex     = regexp.MustCompile(`https?://[^\s]+`)
	wsURLRegex       = regexp.MustCompile(`wss?://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegex = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status represents the health state of one provider or the system
type Status struct {
	Provider    string    `json:"provider"`
	Healthy     bool      `json:"healthy"` // true if status is "healthy"
	Status      string    `json:"status"`  // "healthy", "unhealthy", "degraded"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics carries the probe and pipeline measurements behind a status
type Metrics struct {
	ProbeLatency time.Duration `json:"probe_latency,omitempty"`
	HealthScore  float64       `json:"health_score"`
	Breaker      string        `json:"breaker,omitempty"`
	LastProbe    time.Time     `json:"last_probe,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == "healthy"
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == "degraded"
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == "unhealthy"
}

// WithMetrics returns a copy of the status with metrics attached
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithSubStatus adds a sub-status and returns a copy
func (s Status) WithSubStatus(subStatus Status) Status {
	newSubStatuses := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(newSubStatuses, s.SubStatuses)
	s.SubStatuses = append(newSubStatuses, subStatus)
	return s
}

// NewHealthy creates a healthy status for a provider.
func NewHealthy(provider, message string) Status {
	return Status{
		Provider:  provider,
		Healthy:   true,
		Status:    "healthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates an unhealthy status for a provider.
func NewUnhealthy(provider, message string) Status {
	return Status{
		Provider:  provider,
		Healthy:   false,
		Status:    "unhealthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a degraded status for a provider.
func NewDegraded(provider, message string) Status {
	return Status{
		Provider:  provider,
		Healthy:   false,
		Status:    "degraded",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate folds provider statuses into one rollup. Any unhealthy provider
// makes the rollup unhealthy; otherwise any degraded provider makes it
// degraded. No providers at all counts as healthy.
func Aggregate(provider string, subStatuses []Status) Status {
	hasUnhealthy := false
	hasDegraded := false
	for _, sub := range subStatuses {
		if sub.IsUnhealthy() {
			hasUnhealthy = true
		} else if sub.IsDegraded() {
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case len(subStatuses) == 0:
		return NewHealthy(provider, "no providers monitored")
	case hasUnhealthy:
		status = NewUnhealthy(provider, "at least one provider is unhealthy")
	case hasDegraded:
		status = NewDegraded(provider, "at least one provider is degraded")
	default:
		status = NewHealthy(provider, "all providers healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}

// sanitizeErrorMessage removes potentially sensitive information from probe
// error messages before they land in an operator-visible status. Vendor
// endpoints, file paths, addresses and credential fragments are masked.
//
// Sanitization patterns:
//   - URLs (http://, https://, ws://, wss://) → [URL]
//   - File paths (Unix: /path/to/file, Windows: C:\path\to\file) → [PATH]
//   - IP addresses (192.168.1.100) → [IP]
//   - Port numbers (:8080) → [PORT]
//   - Credentials (password=X, token=X, key=X, secret=X) → [REDACTED]
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	sanitized := err

	// URLs first, before paths, as they contain paths
	sanitized = httpURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = wsURLRegex.ReplaceAllString(sanitized, "[URL]")

	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = windowsPathRegex.ReplaceAllString(sanitized, "[PATH]")

	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lowerSanitized := strings.ToLower(sanitized)
	if strings.Contains(lowerSanitized, "password") || strings.Contains(lowerSanitized, "token") ||
		strings.Contains(lowerSanitized, "key") || strings.Contains(lowerSanitized, "secret") ||
		strings.Contains(lowerSanitized, "credential") {
		sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	}

	return sanitized
}

// degradedScoreFloor is the rolling health score below which a provider that
// still answers probes is reported degraded rather than healthy.
const degradedScoreFloor = 0.5

// FromProbe converts one adapter probe outcome into a Status, folding in the
// rolling health score and the breaker state. An OPEN breaker or a failed
// probe is unhealthy; a HALF_OPEN breaker or a low health score is degraded.
func FromProbe(id string, probe provider.HealthCheckResult, score float64, state breaker.State) Status {
	metrics := &Metrics{
		ProbeLatency: probe.Latency,
		HealthScore:  score,
		Breaker:      state.String(),
		LastProbe:    time.Now(),
	}

	switch {
	case state == breaker.StateOpen:
		return NewUnhealthy(id, "circuit breaker open").WithMetrics(metrics)
	case !probe.OK:
		message := "health probe failed"
		if probe.Message != "" {
			message = sanitizeErrorMessage(probe.Message)
		}
		return NewUnhealthy(id, message).WithMetrics(metrics)
	case state == breaker.StateHalfOpen:
		return NewDegraded(id, "circuit breaker probing recovery").WithMetrics(metrics)
	case score < degradedScoreFloor:
		return NewDegraded(id, "rolling health score low").WithMetrics(metrics)
	default:
		return NewHealthy(id, "provider healthy").WithMetrics(metrics)
	}
}
