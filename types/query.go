package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/c360/quantdata/errors"
)

// Query is the canonical, immutable request issued by callers. A Query is a
// value; the pipeline never mutates it after construction.
type Query struct {
	Symbol string    `json:"symbol"`
	Asset  AssetType `json:"asset_type"`
	Data   DataType  `json:"data_type"`
	Freq   Frequency `json:"frequency,omitempty"`

	// Time range for kline data. Count limits the number of most recent
	// bars when Start/End are zero.
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
	Count int       `json:"count,omitempty"`

	// ProviderHint asks the router to rank this provider first. The hint is
	// still subject to the capability filter and the circuit breaker filter.
	ProviderHint string `json:"provider_hint,omitempty"`
}

// Validate checks the query for structural validity.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Symbol) == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Query", "Validate", "symbol validation")
	}
	if !q.Asset.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("unknown asset type %q", q.Asset), "Query", "Validate", "asset type validation")
	}
	if !q.Data.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("unknown data type %q", q.Data), "Query", "Validate", "data type validation")
	}
	if q.Data != DataRealtimeQuote && !q.Freq.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("kline query requires a frequency, got %q", q.Freq),
			"Query", "Validate", "frequency validation")
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return errors.WrapInvalid(
			fmt.Errorf("end %s before start %s", q.End.Format(time.RFC3339), q.Start.Format(time.RFC3339)),
			"Query", "Validate", "time range validation")
	}
	if q.Count < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("negative count %d", q.Count), "Query", "Validate", "count validation")
	}
	return nil
}

// Fingerprint returns the stable cache key for the query. The key covers
// symbol, asset type, data type, frequency and the normalized time range.
// The provider hint is deliberately excluded: a hint changes routing, not
// the identity of the requested data.
func (q Query) Fingerprint() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(strings.TrimSpace(q.Symbol)))
	b.WriteByte('|')
	b.WriteString(string(q.Asset))
	b.WriteByte('|')
	b.WriteString(string(q.Data))
	b.WriteByte('|')
	b.WriteString(string(q.Freq))
	b.WriteByte('|')
	// Normalize the range to UTC unix seconds so equivalent ranges in
	// different zones produce the same key.
	if !q.Start.IsZero() {
		fmt.Fprintf(&b, "%d", q.Start.UTC().Unix())
	}
	b.WriteByte('-')
	if !q.End.IsZero() {
		fmt.Fprintf(&b, "%d", q.End.UTC().Unix())
	}
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d", q.Count)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}
