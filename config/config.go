// Package config loads the application configuration from a YAML file with
// environment variable overrides. Every section falls back to its package's
// defaults, so an empty file and no file at all are both valid setups.
package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/c360/quantdata/engine"
	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/health"
	"github.com/c360/quantdata/provider/httpfeed"
	"github.com/c360/quantdata/provider/wsfeed"
)

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig            `json:"log" mapstructure:"log"`
	NATS      NATSConfig           `json:"nats" mapstructure:"nats"`
	Metrics   MetricsConfig        `json:"metrics" mapstructure:"metrics"`
	Engine    engine.Config        `json:"engine" mapstructure:"engine"`
	Health    health.WatcherConfig `json:"health" mapstructure:"health"`
	Providers ProvidersConfig      `json:"providers" mapstructure:"providers"`
}

// MetricsConfig controls the Prometheus scrape endpoint. A zero port
// disables the endpoint.
type MetricsConfig struct {
	Port int    `json:"port" mapstructure:"port"`
	Path string `json:"path" mapstructure:"path"`
}

// HTTPProvider is one HTTP feed deployment plus its routing weight.
type HTTPProvider struct {
	httpfeed.Config `mapstructure:",squash"`
	Weight          int `json:"weight" mapstructure:"weight"`
}

// WSProvider is one websocket feed deployment plus its routing weight.
type WSProvider struct {
	wsfeed.Config `mapstructure:",squash"`
	Weight        int `json:"weight" mapstructure:"weight"`
}

// ProvidersConfig declares the provider fleet and the per-asset priority
// order used by the priority routing strategy.
type ProvidersConfig struct {
	HTTP []HTTPProvider `json:"http" mapstructure:"http"`
	WS   []WSProvider   `json:"ws" mapstructure:"ws"`

	// Priority maps an asset type to the operator-preferred provider order.
	Priority map[string][]string `json:"priority" mapstructure:"priority"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" mapstructure:"level"`

	// Format is "text" or "json".
	Format string `json:"format" mapstructure:"format"`
}

// NATSConfig connects the request/reply service to a NATS server.
type NATSConfig struct {
	// URL is the NATS server address. Empty disables the service layer.
	URL string `json:"url" mapstructure:"url"`

	// Name is the connection name reported to the server.
	Name string `json:"name" mapstructure:"name"`

	// SubjectPrefix roots the service's request subjects.
	SubjectPrefix string `json:"subject_prefix" mapstructure:"subject_prefix"`
}

// DefaultConfig returns the configuration used when no file and no overrides
// are present.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		NATS: NATSConfig{
			Name:          "quantdata",
			SubjectPrefix: "quantdata",
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
		Engine: engine.DefaultConfig(),
		Health: health.DefaultWatcherConfig(),
	}
}

// Validate checks the configuration for values the process cannot run with.
func (c Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"log format validation")
	}
	return c.Engine.Validate()
}

// Logger builds the process logger from the log section. Output defaults to
// stderr; tests pass their own writer.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "parseLevel",
			"log level validation")
	}
}
