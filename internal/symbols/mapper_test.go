package symbols

import (
	"testing"

	"cryptorank/internal/models"
)

func TestNormalizeAsset(t *testing.T) {
	tests := []struct {
		exchange string
		in       string
		want     models.AssetID
	}{
		{"kucoin", "XBT", "BTC"},
		{"kucoin", " eth ", "ETH"},
		{"binance", "XBT", "XBT"},
		{"bybit", "1000PEPE", "PEPE"},
		{"bybit", "SHIB1000", "SHIB"},
		{"BINANCE", "btc", "BTC"},
	}
	for _, tt := range tests {
		if got := NormalizeAsset(tt.exchange, tt.in); got != tt.want {
			t.Errorf("NormalizeAsset(%s,%s)=%s want %s", tt.exchange, tt.in, got, tt.want)
		}
	}
}

func TestPair(t *testing.T) {
	tests := []struct {
		exchange string
		asset    models.AssetID
		quote    string
		want     string
	}{
		{"binance", "BTC", "USDT", "BTCUSDT"},
		{"bybit", "ETH", "usdt", "ETHUSDT"},
		{"kucoin", "ADA", "USDT", "ADA-USDT"},
	}
	for _, tt := range tests {
		if got := Pair(tt.exchange, tt.asset, tt.quote); got != tt.want {
			t.Errorf("Pair(%s,%s,%s)=%s want %s", tt.exchange, tt.asset, tt.quote, got, tt.want)
		}
	}
}

func TestInterval(t *testing.T) {
	tests := []struct {
		exchange string
		g        models.Granularity
		want     string
		wantErr  bool
	}{
		{"binance", models.Minute1, "1m", false},
		{"binance", models.Minute30, "30m", false},
		{"kucoin", models.Minute3, "3min", false},
		{"bybit", models.Minute5, "5", false},
		{"bybit", models.Granularity(15), "", true},
		{"kraken", models.Minute1, "", true},
	}
	for _, tt := range tests {
		got, err := Interval(tt.exchange, tt.g)
		if (err != nil) != tt.wantErr {
			t.Errorf("Interval(%s,%s) err=%v wantErr=%v", tt.exchange, tt.g, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Interval(%s,%s)=%s want %s", tt.exchange, tt.g, got, tt.want)
		}
	}
}
