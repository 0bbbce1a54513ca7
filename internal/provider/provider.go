// Package provider defines the market data boundary and the guard every
// exchange adapter runs behind.
package provider

import (
	"context"
	"errors"

	"cryptorank/internal/models"
)

// ErrNotFound marks a lookup the exchange answered definitively, such as an
// unknown symbol. It is never retried.
var ErrNotFound = errors.New("not found")

// MarketDataProvider is one exchange's public market data.
type MarketDataProvider interface {
	Name() string
	ListAssets(ctx context.Context) (models.AssetSet, error)
	// FetchCandles returns at most limit candles ordered by open time ascending.
	FetchCandles(ctx context.Context, asset models.AssetID, g models.Granularity, limit int) ([]models.RawCandle, error)
	FetchSpotPrice(ctx context.Context, asset models.AssetID) (float64, error)
}
