// Package prices captures a point-in-time spot price per asset.
package prices

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"cryptorank/internal/audit"
	"cryptorank/internal/fanout"
	"cryptorank/internal/metrics"
	"cryptorank/internal/models"
	"cryptorank/logger"
)

// ErrEmptySnapshot means no asset could be priced.
var ErrEmptySnapshot = errors.New("empty price snapshot")

// PriceFetchError wraps a failed or unusable spot price lookup.
type PriceFetchError struct {
	Asset models.AssetID
	Err   error
}

func (e *PriceFetchError) Error() string {
	return fmt.Sprintf("price %s: %v", e.Asset, e.Err)
}

func (e *PriceFetchError) Unwrap() error { return e.Err }

// PriceSource returns the current spot price of one asset.
type PriceSource interface {
	FetchSpotPrice(ctx context.Context, asset models.AssetID) (float64, error)
}

// Snapshotter prices a set of assets concurrently.
type Snapshotter struct {
	source     PriceSource
	sink       audit.Sink
	maxWorkers int
	log        *logger.Log
}

func NewSnapshotter(source PriceSource, sink audit.Sink, maxWorkers int) *Snapshotter {
	if sink == nil {
		sink = audit.Discard
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Snapshotter{source: source, sink: sink, maxWorkers: maxWorkers, log: logger.GetLogger()}
}

// Snapshot prices every asset. Failed assets are left out; ErrEmptySnapshot
// is returned when none succeeded.
func (s *Snapshotter) Snapshot(ctx context.Context, assets models.AssetSet) (models.PriceSnapshot, error) {
	log := s.log.WithComponent("price_snapshotter").WithFields(logger.Fields{"assets": assets.Len()})
	start := time.Now()

	snap := make(models.PriceSnapshot, assets.Len())
	var mu sync.Mutex

	err := fanout.Each(ctx, assets.Sorted(), s.maxWorkers, func(ctx context.Context, asset models.AssetID) {
		price, err := s.fetch(ctx, asset)
		if err != nil {
			log.WithError(&PriceFetchError{Asset: asset, Err: err}).Warn("dropping asset: price unavailable")
			metrics.EmitDropMetric(s.log, "prices", metrics.DropReasonPrice, string(asset), "")
			audit.Printf(s.sink, "price %s Error %v\n", asset, err)
			return
		}
		mu.Lock()
		snap[asset] = price
		mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot prices: %w", err)
	}

	audit.Printf(s.sink, "%s\n%d Prices\n\n", snap, len(snap))
	metrics.EmitMetric(s.log, "price_snapshotter", metrics.MetricPricesCaptured, len(snap), "gauge", nil)
	logger.LogPerformanceEntry(log, "price_snapshotter", "snapshot", time.Since(start), logger.Fields{
		"priced": len(snap),
	})

	if len(snap) == 0 {
		return nil, fmt.Errorf("%w: 0 of %d assets priced", ErrEmptySnapshot, assets.Len())
	}
	return snap, nil
}

func (s *Snapshotter) fetch(ctx context.Context, asset models.AssetID) (float64, error) {
	price, err := s.source.FetchSpotPrice(ctx, asset)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, fmt.Errorf("unusable price %v", price)
	}
	return price, nil
}
