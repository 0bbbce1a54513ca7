package series

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"cryptorank/internal/audit"
	"cryptorank/internal/fanout"
	"cryptorank/internal/metrics"
	"cryptorank/internal/models"
	"cryptorank/logger"
)

// CandleSource delivers raw klines for one asset.
type CandleSource interface {
	FetchCandles(ctx context.Context, asset models.AssetID, g models.Granularity, limit int) ([]models.RawCandle, error)
}

// Fetcher adapts a CandleSource into a typed series source for ranking.
type Fetcher struct {
	Source CandleSource
}

// FetchSeries fetches and normalizes one series.
func (f Fetcher) FetchSeries(ctx context.Context, asset models.AssetID, g models.Granularity, limit int) (models.CandleSeries, error) {
	raw, err := f.Source.FetchCandles(ctx, asset, g, limit)
	if err != nil {
		return models.CandleSeries{}, err
	}
	return Normalize(asset, g, raw)
}

// Builder builds feature series for many assets.
type Builder struct {
	source     CandleSource
	sink       audit.Sink
	maxWorkers int
	log        *logger.Log
}

func NewBuilder(source CandleSource, sink audit.Sink, maxWorkers int) *Builder {
	if sink == nil {
		sink = audit.Discard
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Builder{source: source, sink: sink, maxWorkers: maxWorkers, log: logger.GetLogger()}
}

// BuildAll fetches limit candles at g for every asset and builds its feature
// series. Fetch failures and malformed candles drop only the affected asset.
// The error is non-nil only when ctx ended.
func (b *Builder) BuildAll(ctx context.Context, assets models.AssetSet, g models.Granularity, limit int) (map[models.AssetID]models.FeatureSeries, error) {
	log := b.log.WithComponent("series_builder").WithFields(logger.Fields{
		"granularity": g.String(),
		"assets":      assets.Len(),
		"limit":       limit,
	})
	start := time.Now()

	out := make(map[models.AssetID]models.FeatureSeries, assets.Len())
	var mu sync.Mutex

	err := fanout.Each(ctx, assets.Sorted(), b.maxWorkers, func(ctx context.Context, asset models.AssetID) {
		raw, err := b.source.FetchCandles(ctx, asset, g, limit)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"asset": asset}).Warn("dropping asset: fetch failed")
			metrics.EmitDropMetric(b.log, "series", metrics.DropReasonFetch, string(asset), g.String())
			audit.Printf(b.sink, "series %s Error %v\n\n", asset, err)
			return
		}
		fs, err := Build(asset, g, raw)
		if err != nil {
			reason := metrics.DropReasonFetch
			if errors.Is(err, ErrMalformedCandle) {
				reason = metrics.DropReasonMalformed
			}
			log.WithError(err).WithFields(logger.Fields{"asset": asset}).Warn("dropping asset: build failed")
			metrics.EmitDropMetric(b.log, "series", reason, string(asset), g.String())
			audit.Printf(b.sink, "series %s Error %v\n\n", asset, err)
			return
		}
		b.sink.Append(Table(fs))

		mu.Lock()
		out[asset] = fs
		mu.Unlock()
	})
	if err != nil {
		return out, fmt.Errorf("build series: %w", err)
	}

	metrics.EmitMetric(b.log, "series_builder", metrics.MetricSeriesBuilt, len(out), "gauge", logger.Fields{"granularity": g.String()})
	logger.LogDataFlowEntry(log, "candles", "feature_series", len(out), "feature_series")
	logger.LogPerformanceEntry(log, "series_builder", "build_all", time.Since(start), logger.Fields{
		"built":   len(out),
		"dropped": assets.Len() - len(out),
	})
	return out, nil
}

// Table renders a feature series as an aligned text table followed by its
// column types, for the audit trail.
func Table(fs models.FeatureSeries) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", fs.Asset)

	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tds\ty\topen\thigh\tlow\tclose\tvolume\ttrades\t")
	for i, r := range fs.Records {
		fmt.Fprintf(tw, "%d\t%s\t%.6f\t%g\t%g\t%g\t%g\t%g\t%d\t\n",
			i, r.Timestamp.UTC().Format("2006-01-02 15:04:05.000"), r.Y,
			r.Open, r.High, r.Low, r.Close, r.Volume, r.TradeCount)
	}
	_ = tw.Flush()

	fmt.Fprintf(&sb, "[%d rows x 8 columns]\n", fs.Len())
	sb.WriteString("ds datetime\ny float64\nopen float64\nhigh float64\nlow float64\nclose float64\nvolume float64\ntrades int64\n\n")
	return sb.String()
}
