package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one canonical OHLCV record. All kline payloads normalize into this
// shape regardless of the vendor's field naming.
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
	// Amount is the traded turnover for the bar. Optional; zero when the
	// vendor does not report it.
	Amount decimal.Decimal `json:"amount,omitempty"`
}

// Quote is one canonical realtime quote record.
type Quote struct {
	Time    time.Time       `json:"time"`
	Symbol  string          `json:"symbol"`
	Last    decimal.Decimal `json:"last"`
	Bid     decimal.Decimal `json:"bid,omitempty"`
	Ask     decimal.Decimal `json:"ask,omitempty"`
	BidSize decimal.Decimal `json:"bid_size,omitempty"`
	AskSize decimal.Decimal `json:"ask_size,omitempty"`
	Volume  decimal.Decimal `json:"volume,omitempty"`
}

// AssetDescriptor describes one listable instrument at a provider.
type AssetDescriptor struct {
	Symbol   string    `json:"symbol"`
	Name     string    `json:"name"`
	Exchange string    `json:"exchange,omitempty"`
	Asset    AssetType `json:"asset_type"`
	Currency string    `json:"currency,omitempty"`
}

// QualityScore is the normalized [0,1] quality measure attached to every
// canonical result, with its sub-score breakdown. Scores are computed once
// per result and never mutated afterwards.
type QualityScore struct {
	Overall      float64 `json:"overall"`
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Timeliness   float64 `json:"timeliness"`
}

// Provenance records which provider produced a result and when.
type Provenance struct {
	Provider  string        `json:"provider"`
	RequestID string        `json:"request_id"`
	FetchedAt time.Time     `json:"fetched_at"`
	Latency   time.Duration `json:"latency"`
}

// Result is the canonical, normalized payload returned by the pipeline.
// Exactly one of Bars or Quotes is populated, according to Query.Data.
type Result struct {
	Query   Query        `json:"query"`
	Bars    []Bar        `json:"bars,omitempty"`
	Quotes  []Quote      `json:"quotes,omitempty"`
	Quality QualityScore `json:"quality"`
	Source  Provenance   `json:"source"`
}

// RowCount returns the number of canonical records in the result.
func (r *Result) RowCount() int {
	if len(r.Bars) > 0 {
		return len(r.Bars)
	}
	return len(r.Quotes)
}

// Empty reports whether the result carries no records.
func (r *Result) Empty() bool {
	return r.RowCount() == 0
}

// LatestTime returns the most recent record timestamp, or the zero time for
// an empty result. Records are expected in ascending time order but the scan
// does not rely on it.
func (r *Result) LatestTime() time.Time {
	var latest time.Time
	for i := range r.Bars {
		if r.Bars[i].Time.After(latest) {
			latest = r.Bars[i].Time
		}
	}
	for i := range r.Quotes {
		if r.Quotes[i].Time.After(latest) {
			latest = r.Quotes[i].Time
		}
	}
	return latest
}
