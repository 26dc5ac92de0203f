package engine

import (
	"time"

	"github.com/c360/quantdata/breaker"
	"github.com/c360/quantdata/cache"
	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/quality"
	"github.com/c360/quantdata/router"
	"github.com/c360/quantdata/types"
)

// Config is the engine's consumed configuration surface: routing strategy,
// quality gate, per-data-type call timeouts, per-provider concurrency and
// rate caps, and the breaker, scorer and cache settings.
type Config struct {
	// Strategy is the routing strategy for candidate ranking.
	Strategy router.Strategy `json:"strategy" mapstructure:"strategy"`

	// QualityThreshold is the minimum overall quality score a result must
	// reach before the failover loop accepts it.
	QualityThreshold float64 `json:"quality_threshold" mapstructure:"quality_threshold"`

	// QualityThresholds overrides the threshold per data type.
	QualityThresholds map[types.DataType]float64 `json:"quality_thresholds" mapstructure:"quality_thresholds"`

	// HistoricalTimeout bounds one adapter call for bulk kline queries.
	HistoricalTimeout time.Duration `json:"historical_timeout" mapstructure:"historical_timeout"`

	// RealtimeTimeout bounds one adapter call for realtime quote queries.
	RealtimeTimeout time.Duration `json:"realtime_timeout" mapstructure:"realtime_timeout"`

	// ProviderConcurrency caps simultaneous in-flight calls per provider,
	// independently of overall request concurrency.
	ProviderConcurrency int64 `json:"provider_concurrency" mapstructure:"provider_concurrency"`

	// ProviderRate caps calls per second per provider. Zero disables the
	// rate limit.
	ProviderRate float64 `json:"provider_rate" mapstructure:"provider_rate"`

	// BatchWorkers and BatchQueue size the bulk import worker pool.
	BatchWorkers int `json:"batch_workers" mapstructure:"batch_workers"`
	BatchQueue   int `json:"batch_queue" mapstructure:"batch_queue"`

	// Breaker configures the per-provider circuit breakers.
	Breaker breaker.Config `json:"breaker" mapstructure:"breaker"`

	// Scorer configures the quality sub-score weights and windows.
	Scorer quality.Config `json:"scorer" mapstructure:"scorer"`

	// Cache configures TTL tiers and the optional disk tier.
	Cache cache.ResultConfig `json:"cache" mapstructure:"cache"`
}

// DefaultConfig returns the default engine configuration: health-based
// routing, 0.7 quality gate, 10s historical / 2s realtime call timeouts,
// 4-deep per-provider concurrency with no rate cap.
func DefaultConfig() Config {
	return Config{
		Strategy:            router.StrategyHealthBased,
		QualityThreshold:    0.7,
		HistoricalTimeout:   10 * time.Second,
		RealtimeTimeout:     2 * time.Second,
		ProviderConcurrency: 4,
		BatchWorkers:        4,
		BatchQueue:          256,
		Breaker:             breaker.DefaultConfig(),
		Scorer:              quality.DefaultConfig(),
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if c.Strategy != "" && !c.Strategy.Valid() {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "Validate",
			"routing strategy validation")
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "Validate",
			"quality threshold range validation")
	}
	for _, threshold := range c.QualityThresholds {
		if threshold < 0 || threshold > 1 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "Validate",
				"per-data-type threshold range validation")
		}
	}
	if c.HistoricalTimeout < 0 || c.RealtimeTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "Validate",
			"timeout validation")
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.QualityThreshold == 0 {
		c.QualityThreshold = d.QualityThreshold
	}
	if c.HistoricalTimeout == 0 {
		c.HistoricalTimeout = d.HistoricalTimeout
	}
	if c.RealtimeTimeout == 0 {
		c.RealtimeTimeout = d.RealtimeTimeout
	}
	if c.ProviderConcurrency <= 0 {
		c.ProviderConcurrency = d.ProviderConcurrency
	}
	if c.BatchWorkers <= 0 {
		c.BatchWorkers = d.BatchWorkers
	}
	if c.BatchQueue <= 0 {
		c.BatchQueue = d.BatchQueue
	}
	return c
}

// thresholdFor returns the quality gate for a data type.
func (c Config) thresholdFor(data types.DataType) float64 {
	if threshold, ok := c.QualityThresholds[data]; ok {
		return threshold
	}
	return c.QualityThreshold
}

// timeoutFor returns the per-call deadline for a data type.
func (c Config) timeoutFor(data types.DataType) time.Duration {
	if data == types.DataRealtimeQuote {
		return c.RealtimeTimeout
	}
	return c.HistoricalTimeout
}
