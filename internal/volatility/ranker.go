// Package volatility ranks assets by mean relative ATR and selects a
// disjoint modeling set across several granularities.
package volatility

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cryptorank/internal/audit"
	"cryptorank/internal/fanout"
	"cryptorank/internal/metrics"
	"cryptorank/internal/models"
	"cryptorank/logger"
)

var (
	// ErrRankingFailure means no candidate of a granularity produced a score.
	ErrRankingFailure = errors.New("ranking failure")
	// ErrAllGranularitiesFailed halts the run.
	ErrAllGranularitiesFailed = errors.New("all granularities failed")
)

// SeriesFetcher loads a typed candle series for one asset.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, asset models.AssetID, g models.Granularity, limit int) (models.CandleSeries, error)
}

// Options tune a Ranker. Zero values fall back to defaults.
type Options struct {
	ATRPeriod   int
	CandleLimit int
	MaxWorkers  int
}

// Ranker scores candidate assets and keeps the most volatile.
type Ranker struct {
	fetcher SeriesFetcher
	sink    audit.Sink
	opts    Options
	log     *logger.Log
}

// NewRanker wires a ranker to its series source and audit sink.
func NewRanker(fetcher SeriesFetcher, sink audit.Sink, opts Options) *Ranker {
	if opts.ATRPeriod < 1 {
		opts.ATRPeriod = DefaultATRPeriod
	}
	if opts.CandleLimit <= opts.ATRPeriod {
		opts.CandleLimit = max(100, opts.ATRPeriod+1)
	}
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if sink == nil {
		sink = audit.Discard
	}
	return &Ranker{fetcher: fetcher, sink: sink, opts: opts, log: logger.GetLogger()}
}

// TopK scores every asset at granularity g and returns at most k of them,
// highest score first. Assets whose fetch fails or that yield no score are
// dropped. Ties keep lexicographic asset order. ErrRankingFailure is
// returned when nothing could be scored, including an empty pool.
func (r *Ranker) TopK(ctx context.Context, assets models.AssetSet, g models.Granularity, k int) (models.RankedSelection, error) {
	if k <= 0 {
		return models.RankedSelection{}, fmt.Errorf("top-k must be positive, got %d", k)
	}

	log := r.log.WithComponent("ranker").WithFields(logger.Fields{
		"granularity": g.String(),
		"candidates":  assets.Len(),
		"k":           k,
	})
	start := time.Now()

	candidates := assets.Sorted()
	scores := make(map[models.AssetID]float64, len(candidates))
	var mu sync.Mutex

	err := fanout.Each(ctx, candidates, r.opts.MaxWorkers, func(ctx context.Context, asset models.AssetID) {
		series, err := r.fetcher.FetchSeries(ctx, asset, g, r.opts.CandleLimit)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"asset": asset}).Warn("dropping asset: fetch failed")
			metrics.EmitDropMetric(r.log, "ranking", metrics.DropReasonFetch, string(asset), g.String())
			audit.Printf(r.sink, "rank %s %s Error %v\n\n", g, asset, err)
			return
		}
		score, ok := ScoreAssetPeriod(series, r.opts.ATRPeriod)
		if !ok {
			log.WithFields(logger.Fields{"asset": asset, "candles": series.Len()}).Warn("dropping asset: no score")
			metrics.EmitDropMetric(r.log, "ranking", metrics.DropReasonNoScore, string(asset), g.String())
			return
		}
		mu.Lock()
		scores[asset] = score
		mu.Unlock()
	})
	if err != nil {
		return models.RankedSelection{}, fmt.Errorf("rank %s: %w", g, err)
	}

	metrics.EmitMetric(r.log, "ranker", metrics.MetricAssetsScored, len(scores), "gauge", logger.Fields{"granularity": g.String()})

	if len(scores) == 0 {
		return models.RankedSelection{}, fmt.Errorf("%w: no scorable assets at %s out of %d", ErrRankingFailure, g, len(candidates))
	}

	entries := make([]models.ScoredAsset, 0, len(scores))
	for _, asset := range candidates {
		if s, ok := scores[asset]; ok {
			entries = append(entries, models.ScoredAsset{Asset: asset, Score: s})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > k {
		entries = entries[:k]
	}

	selection := models.RankedSelection{Granularity: g, Entries: entries}
	r.writeSelection(selection, len(scores))

	logger.LogPerformanceEntry(log, "ranker", "top_k", time.Since(start), logger.Fields{
		"scored":   len(scores),
		"selected": len(entries),
	})
	return selection, nil
}

func (r *Ranker) writeSelection(sel models.RankedSelection, scored int) {
	var sb strings.Builder
	for _, e := range sel.Entries {
		fmt.Fprintf(&sb, "%s %.6f\n", e.Asset, e.Score)
	}
	audit.Printf(r.sink, "%s%d of %d Top %s\n\n", sb.String(), sel.Len(), scored, sel.Granularity)
}

// Selection is the outcome of SelectDisjoint.
type Selection struct {
	Rounds      []models.RankedSelection
	ModelingSet models.AssetSet
}

// SelectDisjoint runs TopK once per granularity in ascending order, removing
// every earlier pick from the next pool, so rounds never share an asset.
// A granularity that fails ranking is skipped; if every one fails the
// result is ErrAllGranularitiesFailed.
func (r *Ranker) SelectDisjoint(ctx context.Context, universe models.AssetSet, granularities []models.Granularity, k int) (Selection, error) {
	ordered := append([]models.Granularity(nil), granularities...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	log := r.log.WithComponent("ranker")
	pool := universe
	sel := Selection{ModelingSet: models.NewAssetSet()}
	var failures []string

	for _, g := range ordered {
		round, err := r.TopK(ctx, pool, g, k)
		if err != nil {
			if !errors.Is(err, ErrRankingFailure) {
				return Selection{}, err
			}
			log.WithError(err).WithFields(logger.Fields{"granularity": g.String()}).Warn("granularity skipped")
			audit.Printf(r.sink, "Skip %s: %v\n\n", g, err)
			failures = append(failures, g.String())
			continue
		}
		picked := round.Assets()
		sel.Rounds = append(sel.Rounds, round)
		sel.ModelingSet = sel.ModelingSet.Union(picked)
		pool = pool.Difference(picked)
	}

	if len(sel.Rounds) == 0 {
		return Selection{}, fmt.Errorf("%w: %s", ErrAllGranularitiesFailed, strings.Join(failures, ", "))
	}

	audit.Printf(r.sink, "%s\n%d Selected\n\n", sel.ModelingSet, sel.ModelingSet.Len())
	metrics.EmitMetric(r.log, "ranker", metrics.MetricSelectionSize, sel.ModelingSet.Len(), "gauge", nil)
	log.WithFields(logger.Fields{
		"rounds":   len(sel.Rounds),
		"skipped":  failures,
		"selected": sel.ModelingSet.Len(),
	}).Info("modeling set selected")

	return sel, nil
}
