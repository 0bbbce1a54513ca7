package symbols

import (
	"fmt"
	"strings"

	"cryptorank/internal/models"
)

// aliases maps exchange-specific tickers onto the common asset id.
var aliases = map[string]map[string]string{
	"kucoin": {"XBT": "BTC"},
	"bybit":  {"1000PEPE": "PEPE", "1000BONK": "BONK", "SHIB1000": "SHIB"},
}

// NormalizeAsset converts an exchange's base-currency ticker into an AssetID.
// It upper-cases, trims and resolves known aliases. Case folding happens here
// so the core can compare ids exactly.
func NormalizeAsset(exchange, raw string) models.AssetID {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	if alias, ok := aliases[strings.ToLower(exchange)][sym]; ok {
		sym = alias
	}
	return models.AssetID(sym)
}

// Pair returns the spot trading pair for asset against quote.
// Examples:
//
//	binance BTC USDT -> BTCUSDT
//	bybit   BTC USDT -> BTCUSDT
//	kucoin  BTC USDT -> BTC-USDT
func Pair(exchange string, asset models.AssetID, quote string) string {
	base := strings.ToUpper(string(asset))
	quote = strings.ToUpper(quote)
	switch strings.ToLower(exchange) {
	case "kucoin":
		return base + "-" + quote
	default:
		// binance and bybit share the concatenated form
		return base + quote
	}
}

var intervals = map[string]map[models.Granularity]string{
	"binance": {
		models.Minute1:  "1m",
		models.Minute3:  "3m",
		models.Minute5:  "5m",
		models.Minute30: "30m",
	},
	"kucoin": {
		models.Minute1:  "1min",
		models.Minute3:  "3min",
		models.Minute5:  "5min",
		models.Minute30: "30min",
	},
	"bybit": {
		models.Minute1:  "1",
		models.Minute3:  "3",
		models.Minute5:  "5",
		models.Minute30: "30",
	},
}

// Interval returns the exchange's kline interval token for g.
func Interval(exchange string, g models.Granularity) (string, error) {
	table, ok := intervals[strings.ToLower(exchange)]
	if !ok {
		return "", fmt.Errorf("unknown exchange %q", exchange)
	}
	token, ok := table[g]
	if !ok {
		return "", fmt.Errorf("granularity %s not supported by %s", g, exchange)
	}
	return token, nil
}
