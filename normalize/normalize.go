// Package normalize maps provider-specific payloads onto the canonical
// schema per data type. For each canonical field it attempts an exact alias
// match, then a case/whitespace-insensitive match, then a type-based
// heuristic as a last resort. Unmapped optional fields are left at their
// zero value; an unmapped required field rejects the payload outright.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/types"
)

// Report describes what normalization did to a raw payload. The quality
// scorer uses it to compute the completeness sub-score.
type Report struct {
	// RawRows is the number of records in the raw payload.
	RawRows int
	// KeptRows is the number of records that normalized cleanly.
	KeptRows int
	// Mapping records which source column served each canonical field.
	Mapping map[string]string
}

// Normalize maps a raw provider payload onto the canonical schema for the
// query's data type. A required canonical field with no mappable source
// column fails with ErrMissingRequiredField; individual records missing a
// required value are dropped and counted in the report.
func Normalize(raw *provider.RawResult, query types.Query) (*types.Result, Report, error) {
	if raw == nil {
		return nil, Report{}, errors.WrapInvalid(
			errors.ErrInvalidData, "Normalizer", "Normalize", "nil raw result")
	}

	result := &types.Result{Query: query}
	report := Report{RawRows: len(raw.Records)}
	if len(raw.Records) == 0 {
		return result, report, nil
	}

	required, optional := schemaFor(query.Data)
	mapping, err := mapFields(raw, required, optional)
	if err != nil {
		return nil, report, err
	}
	report.Mapping = mapping

	if query.Data == types.DataRealtimeQuote {
		for _, record := range raw.Records {
			quote, ok := buildQuote(record, mapping, query.Symbol)
			if !ok {
				continue
			}
			result.Quotes = append(result.Quotes, quote)
		}
		report.KeptRows = len(result.Quotes)
	} else {
		for _, record := range raw.Records {
			bar, ok := buildBar(record, mapping)
			if !ok {
				continue
			}
			result.Bars = append(result.Bars, bar)
		}
		report.KeptRows = len(result.Bars)
	}

	return result, report, nil
}

// mapFields resolves every canonical field to a source column. Resolution
// order: exact alias, insensitive alias, then the timestamp heuristic for
// the time field.
func mapFields(raw *provider.RawResult, required, optional []string) (map[string]string, error) {
	keys := sourceKeys(raw)
	mapping := make(map[string]string, len(required)+len(optional))
	claimed := make(map[string]bool, len(keys))

	resolve := func(canonical string) bool {
		// (a) exact alias match
		for _, alias := range aliasTable[canonical] {
			for _, key := range keys {
				if key == alias && !claimed[key] {
					mapping[canonical] = key
					claimed[key] = true
					return true
				}
			}
		}
		// (b) case/whitespace-insensitive match
		for _, alias := range aliasTable[canonical] {
			target := foldKey(alias)
			for _, key := range keys {
				if foldKey(key) == target && !claimed[key] {
					mapping[canonical] = key
					claimed[key] = true
					return true
				}
			}
		}
		return false
	}

	// Alias passes run for every canonical field before any heuristic so a
	// numeric price column cannot be claimed as a timestamp.
	for _, canonical := range required {
		resolve(canonical)
	}
	for _, canonical := range optional {
		resolve(canonical)
	}

	// (c) type-based heuristic, last resort for the time field only: a
	// column of monotonically non-decreasing timestamps.
	if _, mapped := mapping["time"]; !mapped {
		if key, ok := timeColumnHeuristic(raw, keys, claimed); ok {
			mapping["time"] = key
			claimed[key] = true
		}
	}

	for _, canonical := range required {
		if _, mapped := mapping[canonical]; !mapped {
			return nil, errors.WrapInvalid(errors.ErrMissingRequiredField,
				"Normalizer", "mapFields", fmt.Sprintf("canonical field '%s'", canonical))
		}
	}
	return mapping, nil
}

// sourceKeys returns the vendor column names, preferring the declared field
// order and falling back to the union of record keys.
func sourceKeys(raw *provider.RawResult) []string {
	if len(raw.Fields) > 0 {
		return raw.Fields
	}
	seen := make(map[string]bool)
	var keys []string
	for _, record := range raw.Records {
		for key := range record {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// foldKey normalizes a column name for insensitive comparison.
func foldKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

// timeColumnHeuristic finds an unclaimed column whose values all parse as
// plausible timestamps and never decrease across records. Values before 1990
// are rejected so small numeric columns do not read as early-epoch times.
func timeColumnHeuristic(raw *provider.RawResult, keys []string, claimed map[string]bool) (string, bool) {
	for _, key := range keys {
		if claimed[key] {
			continue
		}
		var prev time.Time
		ok := true
		for _, record := range raw.Records {
			value, exists := record[key]
			if !exists {
				ok = false
				break
			}
			ts, parsed := toTime(value)
			if !parsed || ts.Year() < 1990 || ts.Before(prev) {
				ok = false
				break
			}
			prev = ts
		}
		if ok {
			return key, true
		}
	}
	return "", false
}

func buildBar(record map[string]any, mapping map[string]string) (types.Bar, bool) {
	var bar types.Bar

	ts, ok := timeAt(record, mapping, "time")
	if !ok {
		return bar, false
	}
	bar.Time = ts

	for _, field := range []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
	} {
		value, ok := decimalAt(record, mapping, field.name)
		if !ok {
			return bar, false
		}
		*field.dst = value
	}

	// Optional fields stay zero when absent.
	if value, ok := decimalAt(record, mapping, "volume"); ok {
		bar.Volume = value
	}
	if value, ok := decimalAt(record, mapping, "amount"); ok {
		bar.Amount = value
	}
	return bar, true
}

func buildQuote(record map[string]any, mapping map[string]string, fallbackSymbol string) (types.Quote, bool) {
	var quote types.Quote

	ts, ok := timeAt(record, mapping, "time")
	if !ok {
		return quote, false
	}
	quote.Time = ts

	last, ok := decimalAt(record, mapping, "last")
	if !ok {
		return quote, false
	}
	quote.Last = last

	quote.Symbol = fallbackSymbol
	if key, mapped := mapping["symbol"]; mapped {
		if s, ok := record[key].(string); ok && s != "" {
			quote.Symbol = s
		}
	}
	if value, ok := decimalAt(record, mapping, "bid"); ok {
		quote.Bid = value
	}
	if value, ok := decimalAt(record, mapping, "ask"); ok {
		quote.Ask = value
	}
	if value, ok := decimalAt(record, mapping, "bid_size"); ok {
		quote.BidSize = value
	}
	if value, ok := decimalAt(record, mapping, "ask_size"); ok {
		quote.AskSize = value
	}
	if value, ok := decimalAt(record, mapping, "volume"); ok {
		quote.Volume = value
	}
	return quote, true
}

func timeAt(record map[string]any, mapping map[string]string, field string) (time.Time, bool) {
	key, mapped := mapping[field]
	if !mapped {
		return time.Time{}, false
	}
	value, exists := record[key]
	if !exists {
		return time.Time{}, false
	}
	return toTime(value)
}

func decimalAt(record map[string]any, mapping map[string]string, field string) (decimal.Decimal, bool) {
	key, mapped := mapping[field]
	if !mapped {
		return decimal.Decimal{}, false
	}
	value, exists := record[key]
	if !exists {
		return decimal.Decimal{}, false
	}
	return toDecimal(value)
}

// timeLayouts are tried in order when a vendor reports timestamps as text.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"20060102",
	"2006/01/02",
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	case int64:
		return fromUnix(v), true
	case int:
		return fromUnix(int64(v)), true
	case float64:
		return fromUnix(int64(v)), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return fromUnix(n), true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// fromUnix interprets a numeric timestamp as seconds or milliseconds based
// on magnitude. Vendors disagree; anything past the year 33658 in seconds
// is surely milliseconds.
func fromUnix(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}
