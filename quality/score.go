// Package quality computes the [0,1] quality score attached to every
// canonical result. The score is a weighted average of three sub-scores:
// completeness (how many raw records survived normalization), consistency
// (fraction of records passing domain invariants) and timeliness (how fresh
// the most recent record is for the requested frequency). An empty result
// always scores 0.0 regardless of weights.
package quality

import (
	"time"

	"github.com/c360/quantdata/types"
)

// RowStats carries the normalizer's row accounting into the scorer. The
// completeness sub-score is the survival rate of raw records.
type RowStats struct {
	RawRows  int
	KeptRows int
}

// Config tunes the scorer. Zero values fall back to the defaults.
type Config struct {
	// CompletenessWeight, ConsistencyWeight and TimelinessWeight control
	// the weighted overall score. They should sum to 1.
	CompletenessWeight float64
	ConsistencyWeight  float64
	TimelinessWeight   float64

	// QuoteFreshness is the freshness window for realtime quotes, which
	// have no bar frequency to derive one from.
	QuoteFreshness time.Duration

	// StalenessMultiplier sets the staleness bound as a multiple of the
	// freshness window. Timeliness decays linearly from 1 at the window
	// edge to 0 at the bound.
	StalenessMultiplier float64
}

// DefaultConfig returns the default scorer configuration: weights
// 0.4/0.4/0.2, a 60s quote freshness window and a staleness bound of five
// freshness windows.
func DefaultConfig() Config {
	return Config{
		CompletenessWeight:  0.4,
		ConsistencyWeight:   0.4,
		TimelinessWeight:    0.2,
		QuoteFreshness:      60 * time.Second,
		StalenessMultiplier: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CompletenessWeight == 0 && c.ConsistencyWeight == 0 && c.TimelinessWeight == 0 {
		c.CompletenessWeight = d.CompletenessWeight
		c.ConsistencyWeight = d.ConsistencyWeight
		c.TimelinessWeight = d.TimelinessWeight
	}
	if c.QuoteFreshness <= 0 {
		c.QuoteFreshness = d.QuoteFreshness
	}
	if c.StalenessMultiplier <= 1 {
		c.StalenessMultiplier = d.StalenessMultiplier
	}
	return c
}

// Scorer computes quality scores. It is a pure function over its inputs
// apart from the clock, which tests may pin.
type Scorer struct {
	config Config
	now    func() time.Time
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(config Config) *Scorer {
	return &Scorer{config: config.withDefaults(), now: time.Now}
}

// SetClock pins the scorer's clock. Intended for tests.
func (s *Scorer) SetClock(now func() time.Time) {
	s.now = now
}

// Score computes the quality breakdown for a normalized result. Scores are
// computed once per result and never mutated afterwards.
func (s *Scorer) Score(result *types.Result, stats RowStats) types.QualityScore {
	if result == nil || result.Empty() {
		return types.QualityScore{}
	}

	score := types.QualityScore{
		Completeness: s.completeness(stats),
		Consistency:  s.consistency(result),
		Timeliness:   s.timeliness(result),
	}
	score.Overall = s.config.CompletenessWeight*score.Completeness +
		s.config.ConsistencyWeight*score.Consistency +
		s.config.TimelinessWeight*score.Timeliness
	return score
}

// completeness is the fraction of raw records that normalized cleanly.
// Records dropped for missing required values count against it.
func (s *Scorer) completeness(stats RowStats) float64 {
	if stats.RawRows <= 0 {
		// No row accounting available; the result is non-empty so the
		// records we do have are complete by construction.
		return 1.0
	}
	return float64(stats.KeptRows) / float64(stats.RawRows)
}

// consistency is the fraction of records passing the domain invariants for
// their shape. A record also fails if its timestamp does not advance past
// the previous record's (duplicates and regressions both count).
func (s *Scorer) consistency(result *types.Result) float64 {
	if len(result.Bars) > 0 {
		return s.barConsistency(result.Bars)
	}
	return s.quoteConsistency(result.Quotes)
}

func (s *Scorer) barConsistency(bars []types.Bar) float64 {
	passing := 0
	var prev time.Time
	for i := range bars {
		bar := &bars[i]
		ok := barInvariants(bar)
		if i > 0 && !bar.Time.After(prev) {
			ok = false
		}
		prev = bar.Time
		if ok {
			passing++
		}
	}
	return float64(passing) / float64(len(bars))
}

// barInvariants checks low <= open,close <= high and volume >= 0.
func barInvariants(bar *types.Bar) bool {
	if bar.Low.GreaterThan(bar.High) {
		return false
	}
	if bar.Open.LessThan(bar.Low) || bar.Open.GreaterThan(bar.High) {
		return false
	}
	if bar.Close.LessThan(bar.Low) || bar.Close.GreaterThan(bar.High) {
		return false
	}
	if bar.Volume.IsNegative() {
		return false
	}
	return true
}

func (s *Scorer) quoteConsistency(quotes []types.Quote) float64 {
	passing := 0
	var prev time.Time
	for i := range quotes {
		quote := &quotes[i]
		ok := quoteInvariants(quote)
		if i > 0 && !quote.Time.After(prev) {
			ok = false
		}
		prev = quote.Time
		if ok {
			passing++
		}
	}
	return float64(passing) / float64(len(quotes))
}

// quoteInvariants checks last > 0, bid <= ask when both sides are present
// and volume >= 0.
func quoteInvariants(quote *types.Quote) bool {
	if !quote.Last.IsPositive() {
		return false
	}
	if quote.Bid.IsPositive() && quote.Ask.IsPositive() && quote.Bid.GreaterThan(quote.Ask) {
		return false
	}
	if quote.Volume.IsNegative() {
		return false
	}
	return true
}

// timeliness is 1 when the most recent record falls within the freshness
// window for the requested frequency, decaying linearly to 0 at the
// staleness bound. Queries bounded in the past measure freshness against
// their end time, not the wall clock, so a deliberate historical request is
// not scored stale.
func (s *Scorer) timeliness(result *types.Result) float64 {
	latest := result.LatestTime()
	if latest.IsZero() {
		return 0
	}

	window := s.config.QuoteFreshness
	if result.Query.Data != types.DataRealtimeQuote {
		if d := result.Query.Freq.Duration(); d > 0 {
			window = d
		}
	}

	reference := s.now()
	if end := result.Query.End; !end.IsZero() && end.Before(reference) {
		reference = end
	}

	age := reference.Sub(latest)
	if age <= window {
		return 1.0
	}
	bound := time.Duration(float64(window) * s.config.StalenessMultiplier)
	if age >= bound {
		return 0.0
	}
	return float64(bound-age) / float64(bound-window)
}
