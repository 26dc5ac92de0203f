package normalize

import "github.com/c360/quantdata/types"

// Canonical field names per data type. Required fields are a hard validation
// boundary: a raw payload whose columns cannot satisfy them is rejected
// outright, never padded with nulls.
var (
	klineRequired = []string{"time", "open", "high", "low", "close"}
	klineOptional = []string{"volume", "amount"}

	quoteRequired = []string{"time", "last"}
	quoteOptional = []string{"symbol", "bid", "ask", "bid_size", "ask_size", "volume"}
)

// aliasTable maps each canonical field to the vendor spellings observed
// across providers. Aliases cover multiple vendors and languages; matching
// tries exact spelling first, then a case/whitespace-insensitive pass.
var aliasTable = map[string][]string{
	"time": {
		"time", "date", "datetime", "timestamp", "trade_date", "trade_time",
		"day", "bar_time", "t", "日期", "时间",
	},
	"open": {
		"open", "open_price", "o", "开盘价", "开盘",
	},
	"high": {
		"high", "high_price", "max_price", "h", "最高价", "最高",
	},
	"low": {
		"low", "low_price", "min_price", "l", "最低价", "最低",
	},
	"close": {
		"close", "close_price", "price_close", "settlement", "c", "收盘价", "收盘",
	},
	"volume": {
		"volume", "vol", "v", "qty", "quantity", "base_volume", "成交量",
	},
	"amount": {
		"amount", "turnover", "amt", "quote_volume", "成交额",
	},
	"last": {
		"last", "last_price", "price", "current", "current_price", "trade_price",
		"最新价", "现价",
	},
	"symbol": {
		"symbol", "code", "ticker", "sym", "instrument", "代码", "证券代码",
	},
	"bid": {
		"bid", "bid_price", "buy", "buy_price", "b1", "买一价",
	},
	"ask": {
		"ask", "ask_price", "sell", "sell_price", "offer", "a1", "卖一价",
	},
	"bid_size": {
		"bid_size", "bid_volume", "bid_qty", "b1_v", "买一量",
	},
	"ask_size": {
		"ask_size", "ask_volume", "ask_qty", "a1_v", "卖一量",
	},
}

// schemaFor returns the required and optional canonical fields for a data
// type.
func schemaFor(data types.DataType) (required, optional []string) {
	switch data {
	case types.DataRealtimeQuote:
		return quoteRequired, quoteOptional
	default:
		return klineRequired, klineOptional
	}
}
