// Package types defines the canonical data model shared by all quantdata
// components: asset and data classifications, the canonical query issued by
// callers, and the canonical result shape all provider payloads are
// normalized into.
package types

import (
	"time"
)

// AssetType classifies the instrument universe a query targets.
type AssetType string

// Supported asset types
const (
	AssetStock   AssetType = "stock"
	AssetCrypto  AssetType = "crypto"
	AssetForex   AssetType = "forex"
	AssetFutures AssetType = "futures"
	AssetFund    AssetType = "fund"
	AssetBond    AssetType = "bond"
)

// Valid reports whether the asset type is one of the supported values.
func (a AssetType) Valid() bool {
	switch a {
	case AssetStock, AssetCrypto, AssetForex, AssetFutures, AssetFund, AssetBond:
		return true
	default:
		return false
	}
}

// DataType classifies the kind of market data a query requests. The data
// type drives the canonical schema, per-call timeout and cache TTL tier.
type DataType string

// Supported data types
const (
	DataRealtimeQuote   DataType = "realtime_quote"
	DataIntradayKline   DataType = "intraday_kline"
	DataHistoricalKline DataType = "historical_kline"
)

// Valid reports whether the data type is one of the supported values.
func (d DataType) Valid() bool {
	switch d {
	case DataRealtimeQuote, DataIntradayKline, DataHistoricalKline:
		return true
	default:
		return false
	}
}

// Frequency is the bar interval for kline data. Quote queries leave it empty.
type Frequency string

// Supported bar frequencies
const (
	Freq1Min   Frequency = "1min"
	Freq5Min   Frequency = "5min"
	Freq15Min  Frequency = "15min"
	Freq30Min  Frequency = "30min"
	Freq60Min  Frequency = "60min"
	FreqDaily  Frequency = "daily"
	FreqWeekly Frequency = "weekly"
	FreqMonth  Frequency = "monthly"
)

// Duration returns the nominal bar interval. Used by the quality scorer to
// derive the expected freshness window for a frequency.
func (f Frequency) Duration() time.Duration {
	switch f {
	case Freq1Min:
		return time.Minute
	case Freq5Min:
		return 5 * time.Minute
	case Freq15Min:
		return 15 * time.Minute
	case Freq30Min:
		return 30 * time.Minute
	case Freq60Min:
		return time.Hour
	case FreqDaily:
		return 24 * time.Hour
	case FreqWeekly:
		return 7 * 24 * time.Hour
	case FreqMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether the frequency is one of the supported values.
func (f Frequency) Valid() bool {
	return f.Duration() > 0
}

// Capability is one (asset type, data type) pair a provider declares support
// for. Providers are only routed queries matching a declared capability.
type Capability struct {
	Asset AssetType `json:"asset_type"`
	Data  DataType  `json:"data_type"`
}

// CapabilitySet is the full declared capability surface of a provider.
type CapabilitySet []Capability

// Supports reports whether the set declares the given pair.
func (cs CapabilitySet) Supports(asset AssetType, data DataType) bool {
	for _, c := range cs {
		if c.Asset == asset && c.Data == data {
			return true
		}
	}
	return false
}

// Empty reports whether the provider declares no capabilities at all.
// Registration rejects empty capability sets.
func (cs CapabilitySet) Empty() bool {
	return len(cs) == 0
}
