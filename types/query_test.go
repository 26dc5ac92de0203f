package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Validate(t *testing.T) {
	valid := Query{
		Symbol: "AAPL",
		Asset:  AssetStock,
		Data:   DataHistoricalKline,
		Freq:   FreqDaily,
		Count:  100,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(q *Query)
	}{
		{"empty symbol", func(q *Query) { q.Symbol = "  " }},
		{"unknown asset type", func(q *Query) { q.Asset = "derivatives" }},
		{"unknown data type", func(q *Query) { q.Data = "sentiment" }},
		{"kline without frequency", func(q *Query) { q.Freq = "" }},
		{"negative count", func(q *Query) { q.Count = -1 }},
		{"inverted range", func(q *Query) {
			q.Start = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
			q.End = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			q := valid
			test.mutate(&q)
			assert.Error(t, q.Validate())
		})
	}
}

func TestQuery_Validate_QuoteNeedsNoFrequency(t *testing.T) {
	q := Query{Symbol: "BTCUSDT", Asset: AssetCrypto, Data: DataRealtimeQuote}
	assert.NoError(t, q.Validate())
}

func TestQuery_Fingerprint_Stable(t *testing.T) {
	q1 := Query{
		Symbol: "aapl",
		Asset:  AssetStock,
		Data:   DataHistoricalKline,
		Freq:   FreqDaily,
		Start:  time.Date(2026, 1, 1, 8, 0, 0, 0, time.FixedZone("CST", 8*3600)),
		End:    time.Date(2026, 2, 1, 8, 0, 0, 0, time.FixedZone("CST", 8*3600)),
	}
	q2 := Query{
		Symbol: " AAPL ",
		Asset:  AssetStock,
		Data:   DataHistoricalKline,
		Freq:   FreqDaily,
		Start:  q1.Start.UTC(),
		End:    q1.End.UTC(),
	}

	// Symbol case/whitespace and time zone must not change the key.
	assert.Equal(t, q1.Fingerprint(), q2.Fingerprint())
}

func TestQuery_Fingerprint_HintExcluded(t *testing.T) {
	q1 := Query{Symbol: "AAPL", Asset: AssetStock, Data: DataRealtimeQuote}
	q2 := q1
	q2.ProviderHint = "alpha"

	assert.Equal(t, q1.Fingerprint(), q2.Fingerprint())
}

func TestQuery_Fingerprint_DistinguishesInputs(t *testing.T) {
	base := Query{Symbol: "AAPL", Asset: AssetStock, Data: DataHistoricalKline, Freq: FreqDaily, Count: 10}

	variants := []Query{
		{Symbol: "MSFT", Asset: AssetStock, Data: DataHistoricalKline, Freq: FreqDaily, Count: 10},
		{Symbol: "AAPL", Asset: AssetFund, Data: DataHistoricalKline, Freq: FreqDaily, Count: 10},
		{Symbol: "AAPL", Asset: AssetStock, Data: DataIntradayKline, Freq: FreqDaily, Count: 10},
		{Symbol: "AAPL", Asset: AssetStock, Data: DataHistoricalKline, Freq: FreqWeekly, Count: 10},
		{Symbol: "AAPL", Asset: AssetStock, Data: DataHistoricalKline, Freq: FreqDaily, Count: 20},
	}
	seen := map[string]bool{base.Fingerprint(): true}
	for _, v := range variants {
		fp := v.Fingerprint()
		assert.False(t, seen[fp], "fingerprint collision for %+v", v)
		seen[fp] = true
	}
}

func TestFrequency_Duration(t *testing.T) {
	assert.Equal(t, time.Minute, Freq1Min.Duration())
	assert.Equal(t, 24*time.Hour, FreqDaily.Duration())
	assert.Equal(t, time.Duration(0), Frequency("2h").Duration())
}

func TestCapabilitySet_Supports(t *testing.T) {
	cs := CapabilitySet{
		{Asset: AssetStock, Data: DataHistoricalKline},
		{Asset: AssetStock, Data: DataRealtimeQuote},
	}

	assert.True(t, cs.Supports(AssetStock, DataRealtimeQuote))
	assert.False(t, cs.Supports(AssetCrypto, DataRealtimeQuote))
	assert.False(t, cs.Supports(AssetStock, DataIntradayKline))
	assert.False(t, CapabilitySet{}.Supports(AssetStock, DataRealtimeQuote))
	assert.True(t, CapabilitySet{}.Empty())
}
