package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/types"
)

func klineQuery() types.Query {
	return types.Query{
		Symbol: "AAPL",
		Asset:  types.AssetStock,
		Data:   types.DataHistoricalKline,
		Freq:   types.FreqDaily,
	}
}

func quoteQuery() types.Query {
	return types.Query{
		Symbol: "AAPL",
		Asset:  types.AssetStock,
		Data:   types.DataRealtimeQuote,
	}
}

func TestNormalize_ExactAliasMatch(t *testing.T) {
	raw := &provider.RawResult{
		Records: []map[string]any{
			{"date": "2026-08-25", "open": 100.0, "high": 102.0, "low": 99.0, "close": 101.0, "volume": 5000.0},
			{"date": "2026-08-26", "open": 101.0, "high": 103.0, "low": 100.0, "close": 102.5, "volume": 6000.0},
		},
	}

	result, report, err := Normalize(raw, klineQuery())
	require.NoError(t, err)
	require.Len(t, result.Bars, 2)
	assert.Equal(t, 2, report.RawRows)
	assert.Equal(t, 2, report.KeptRows)

	bar := result.Bars[1]
	assert.Equal(t, "102.5", bar.Close.String())
	assert.Equal(t, "2026-08-26", bar.Time.Format("2006-01-02"))
	assert.Equal(t, "6000", bar.Volume.String())
}

func TestNormalize_InsensitiveMatch(t *testing.T) {
	raw := &provider.RawResult{
		Records: []map[string]any{
			{"Trade Date": "2026-08-26", "OPEN": "101.0", "High_Price": "103.0", "LOW": "100.0", "Close Price": "102.5"},
		},
	}

	result, report, err := Normalize(raw, klineQuery())
	require.NoError(t, err)
	require.Len(t, result.Bars, 1)
	assert.Equal(t, "Close Price", report.Mapping["close"])
	assert.Equal(t, "102.5", result.Bars[0].Close.String())
}

func TestNormalize_VendorAliases(t *testing.T) {
	// Chinese vendor spellings map through the alias table.
	raw := &provider.RawResult{
		Records: []map[string]any{
			{"日期": "2026-08-26", "开盘价": 101.0, "最高价": 103.0, "最低价": 100.0, "收盘价": 102.5, "成交量": 8000.0, "成交额": 812000.0},
		},
	}

	result, _, err := Normalize(raw, klineQuery())
	require.NoError(t, err)
	require.Len(t, result.Bars, 1)
	assert.Equal(t, "102.5", result.Bars[0].Close.String())
	assert.Equal(t, "812000", result.Bars[0].Amount.String())
}

func TestNormalize_TimeHeuristic(t *testing.T) {
	// No time alias matches "ts_utc", but its values are monotonically
	// increasing timestamps.
	raw := &provider.RawResult{
		Records: []map[string]any{
			{"ts_utc": int64(1767225600), "open": 1.0, "high": 2.0, "low": 0.5, "close": 1.5},
			{"ts_utc": int64(1767312000), "open": 1.5, "high": 2.5, "low": 1.0, "close": 2.0},
		},
	}

	result, report, err := Normalize(raw, klineQuery())
	require.NoError(t, err)
	assert.Equal(t, "ts_utc", report.Mapping["time"])
	require.Len(t, result.Bars, 2)
	assert.True(t, result.Bars[1].Time.After(result.Bars[0].Time))
}

func TestNormalize_MissingRequiredFieldRejectsPayload(t *testing.T) {
	// No close column at all: hard rejection, not a null fill.
	raw := &provider.RawResult{
		Records: []map[string]any{
			{"date": "2026-08-26", "open": 101.0, "high": 103.0, "low": 100.0},
		},
	}

	_, _, err := Normalize(raw, klineQuery())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingRequiredField)
}

func TestNormalize_RowMissingRequiredValueIsDropped(t *testing.T) {
	raw := &provider.RawResult{
		Records: []map[string]any{
			{"date": "2026-08-25", "open": 100.0, "high": 102.0, "low": 99.0, "close": 101.0},
			{"date": "2026-08-26", "open": 101.0, "high": 103.0, "low": 100.0, "close": "n/a"},
		},
	}

	result, report, err := Normalize(raw, klineQuery())
	require.NoError(t, err)
	assert.Len(t, result.Bars, 1)
	assert.Equal(t, 2, report.RawRows)
	assert.Equal(t, 1, report.KeptRows)
}

func TestNormalize_EmptyPayload(t *testing.T) {
	result, report, err := Normalize(&provider.RawResult{}, klineQuery())
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Zero(t, report.RawRows)
}

func TestNormalize_NilPayload(t *testing.T) {
	_, _, err := Normalize(nil, klineQuery())
	assert.Error(t, err)
}

func TestNormalize_Quote(t *testing.T) {
	now := time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)
	raw := &provider.RawResult{
		Records: []map[string]any{
			{
				"timestamp": now.Unix(),
				"price":     123.45,
				"bid":       123.40,
				"ask":       123.50,
				"vol":       98765.0,
			},
		},
	}

	result, _, err := Normalize(raw, quoteQuery())
	require.NoError(t, err)
	require.Len(t, result.Quotes, 1)

	quote := result.Quotes[0]
	assert.Equal(t, "123.45", quote.Last.String())
	assert.Equal(t, "123.4", quote.Bid.String())
	assert.Equal(t, "123.5", quote.Ask.String())
	assert.Equal(t, "AAPL", quote.Symbol, "symbol falls back to the query symbol")
	assert.True(t, quote.Time.Equal(now))
}

func TestNormalize_QuoteSymbolFromPayload(t *testing.T) {
	raw := &provider.RawResult{
		Records: []map[string]any{
			{"timestamp": int64(1767225600), "last_price": "9.87", "code": "600519"},
		},
	}

	result, _, err := Normalize(raw, quoteQuery())
	require.NoError(t, err)
	require.Len(t, result.Quotes, 1)
	assert.Equal(t, "600519", result.Quotes[0].Symbol)
}

func TestNormalize_MillisecondTimestamps(t *testing.T) {
	raw := &provider.RawResult{
		Records: []map[string]any{
			{"timestamp": float64(1767225600000), "price": 1.0},
		},
	}

	result, _, err := Normalize(raw, quoteQuery())
	require.NoError(t, err)
	require.Len(t, result.Quotes, 1)
	assert.Equal(t, 2026, result.Quotes[0].Time.Year())
}

func TestNormalize_StringNumbersWithSeparators(t *testing.T) {
	raw := &provider.RawResult{
		Records: []map[string]any{
			{"date": "2026-08-26", "open": "1,234.5", "high": "1,240.0", "low": "1,230.0", "close": "1,238.8"},
		},
	}

	result, _, err := Normalize(raw, klineQuery())
	require.NoError(t, err)
	require.Len(t, result.Bars, 1)
	assert.Equal(t, "1238.8", result.Bars[0].Close.String())
}

func TestNormalize_DeclaredFieldOrderPreferred(t *testing.T) {
	raw := &provider.RawResult{
		Fields: []string{"date", "open", "high", "low", "close"},
		Records: []map[string]any{
			{"date": "2026-08-26", "open": 1.0, "high": 2.0, "low": 0.5, "close": 1.5},
		},
	}

	_, report, err := Normalize(raw, klineQuery())
	require.NoError(t, err)
	assert.Equal(t, "date", report.Mapping["time"])
}
