// Package pipeline runs one end-to-end pass: reconcile the two inventories,
// select the most volatile assets, build their feature series and capture a
// price snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	appconfig "cryptorank/config"
	"cryptorank/internal/audit"
	"cryptorank/internal/metrics"
	"cryptorank/internal/models"
	"cryptorank/internal/prices"
	"cryptorank/internal/provider"
	"cryptorank/internal/provider/registry"
	"cryptorank/internal/series"
	"cryptorank/internal/universe"
	"cryptorank/internal/volatility"
	"cryptorank/logger"
)

// Stage names a pipeline step. It appears in the halt message.
type Stage string

const (
	StageUniverse Stage = "universe"
	StageRanking  Stage = "ranking"
	StageSeries   Stage = "series"
	StagePrices   Stage = "prices"
)

// ErrNoSeries means no asset produced a feature series.
var ErrNoSeries = errors.New("no feature series built")

// HaltError reports the stage that stopped the run.
type HaltError struct {
	Stage Stage
	Err   error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("halted at %s: %v", e.Stage, e.Err)
}

func (e *HaltError) Unwrap() error { return e.Err }

// Run carries everything one pass needs. Build it once and call Execute.
type Run struct {
	ID string

	InventoryA provider.MarketDataProvider
	InventoryB provider.MarketDataProvider
	Candles    provider.MarketDataProvider
	Prices     provider.MarketDataProvider

	Sink     audit.Sink
	Denylist models.AssetSet

	Granularities   []models.Granularity
	TopK            int
	RankCandleLimit int
	ATRPeriod       int

	SeriesGranularity models.Granularity
	SeriesCandleLimit int

	// Scope is appconfig.ScopeSelection or appconfig.ScopeUniverse and picks
	// the assets the series and price stages work on.
	Scope      string
	MaxWorkers int

	log *logger.Log
	now func() time.Time
}

// NewRun builds a run from validated configuration.
func NewRun(cfg *appconfig.Config, ps *registry.Providers, sink audit.Sink, runID string) (*Run, error) {
	grans := make([]models.Granularity, 0, len(cfg.Ranking.Granularities))
	for _, m := range cfg.Ranking.Granularities {
		g, err := models.ParseGranularity(m)
		if err != nil {
			return nil, fmt.Errorf("ranking granularities: %w", err)
		}
		grans = append(grans, g)
	}
	sg, err := models.ParseGranularity(cfg.Series.Granularity)
	if err != nil {
		return nil, fmt.Errorf("series granularity: %w", err)
	}
	if sink == nil {
		sink = audit.Discard
	}

	return &Run{
		ID:                runID,
		InventoryA:        ps.InventoryA,
		InventoryB:        ps.InventoryB,
		Candles:           ps.Candles,
		Prices:            ps.Prices,
		Sink:              sink,
		Denylist:          models.AssetSetFromStrings(cfg.Universe.Denylist),
		Granularities:     grans,
		TopK:              cfg.Ranking.TopK,
		RankCandleLimit:   cfg.Ranking.CandleLimit,
		ATRPeriod:         cfg.Ranking.ATRPeriod,
		SeriesGranularity: sg,
		SeriesCandleLimit: cfg.Series.CandleLimit,
		Scope:             cfg.Pipeline.Scope,
		MaxWorkers:        cfg.Reader.MaxWorkers,
	}, nil
}

// Result is everything a completed run produced.
type Result struct {
	Universe  models.AssetSet
	Selection volatility.Selection
	Series    map[models.AssetID]models.FeatureSeries
	Prices    models.PriceSnapshot
	Elapsed   time.Duration
	Metrics   metrics.Summary
}

// Execute runs the stages in order. A fatal condition stops the run with a
// *HaltError after "Stop at <stage>" is written to the audit sink.
func (r *Run) Execute(ctx context.Context) (*Result, error) {
	if r.log == nil {
		r.log = logger.GetLogger()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.Sink == nil {
		r.Sink = audit.Discard
	}

	started := r.now()
	runLog := r.log.WithRun(r.ID)
	log := runLog.WithComponent("pipeline")

	tally := metrics.OpenTally(r.ID)
	defer tally.Close()

	audit.Printf(r.Sink, "Run %s\n%s\n\n", r.ID, started.UTC().Format(time.RFC3339))
	log.WithFields(logger.Fields{
		"inventory_a":   providerName(r.InventoryA),
		"inventory_b":   providerName(r.InventoryB),
		"candles":       providerName(r.Candles),
		"prices":        providerName(r.Prices),
		"granularities": r.Granularities,
		"top_k":         r.TopK,
		"scope":         r.Scope,
	}).Info("run started")

	res := &Result{}

	valid, err := r.reconcile(ctx)
	if err != nil {
		return nil, r.halt(runLog, StageUniverse, err, started, tally)
	}
	res.Universe = valid

	ranker := volatility.NewRanker(series.Fetcher{Source: r.Candles}, r.Sink, volatility.Options{
		ATRPeriod:   r.ATRPeriod,
		CandleLimit: r.RankCandleLimit,
		MaxWorkers:  r.MaxWorkers,
	})
	sel, err := ranker.SelectDisjoint(ctx, valid, r.Granularities, r.TopK)
	if err != nil {
		return nil, r.halt(runLog, StageRanking, err, started, tally)
	}
	res.Selection = sel

	target := sel.ModelingSet
	if r.Scope == appconfig.ScopeUniverse {
		target = valid
	}

	builder := series.NewBuilder(r.Candles, r.Sink, r.MaxWorkers)
	built, err := builder.BuildAll(ctx, target, r.SeriesGranularity, r.SeriesCandleLimit)
	if err == nil && len(built) == 0 {
		err = fmt.Errorf("%w: 0 of %d assets", ErrNoSeries, target.Len())
	}
	if err != nil {
		return nil, r.halt(runLog, StageSeries, err, started, tally)
	}
	res.Series = built

	snap, err := prices.NewSnapshotter(r.Prices, r.Sink, r.MaxWorkers).Snapshot(ctx, target)
	if err != nil {
		return nil, r.halt(runLog, StagePrices, err, started, tally)
	}
	res.Prices = snap

	res.Elapsed = r.now().Sub(started)
	r.writeRuntime(res.Elapsed)
	res.Metrics = r.finish(runLog, res.Elapsed, tally)
	log.WithFields(logger.Fields{
		"universe": res.Universe.Len(),
		"selected": res.Selection.ModelingSet.Len(),
		"series":   len(res.Series),
		"prices":   len(res.Prices),
	}).Info("run completed")
	return res, nil
}

func (r *Run) reconcile(ctx context.Context) (models.AssetSet, error) {
	a, err := r.InventoryA.ListAssets(ctx)
	if err != nil {
		audit.Printf(r.Sink, "inventory %s Error %v\n\n", r.InventoryA.Name(), err)
		return nil, fmt.Errorf("list %s assets: %w", r.InventoryA.Name(), err)
	}
	b, err := r.InventoryB.ListAssets(ctx)
	if err != nil {
		audit.Printf(r.Sink, "inventory %s Error %v\n\n", r.InventoryB.Name(), err)
		return nil, fmt.Errorf("list %s assets: %w", r.InventoryB.Name(), err)
	}

	valid, err := universe.Reconcile(
		universe.Inventory{Provider: r.InventoryA.Name(), Assets: a},
		universe.Inventory{Provider: r.InventoryB.Name(), Assets: b},
		r.Denylist, r.Sink,
	)
	if err != nil {
		return nil, err
	}
	metrics.EmitMetric(r.log, "pipeline", metrics.MetricUniverseSize, valid.Len(), "gauge", logger.Fields{"run_id": r.ID})
	return valid, nil
}

func (r *Run) halt(runLog *logger.Entry, stage Stage, err error, started time.Time, tally *metrics.Tally) error {
	audit.Printf(r.Sink, "Stop at %s\n\n", stage)
	metrics.EmitMetric(r.log, "pipeline", metrics.MetricRunHalted, 1, "counter", logger.Fields{"stage": string(stage), "run_id": r.ID})
	runLog.WithComponent("pipeline").WithError(err).WithFields(logger.Fields{"stage": string(stage)}).Error("run halted")

	r.finish(runLog, r.now().Sub(started), tally)
	return &HaltError{Stage: stage, Err: err}
}

func (r *Run) writeRuntime(elapsed time.Duration) {
	audit.Printf(r.Sink, "Runtime\n%v seconds\n%v minutes\n\n",
		round2(elapsed.Seconds()), round2(elapsed.Minutes()))
}

func (r *Run) finish(runLog *logger.Entry, elapsed time.Duration, tally *metrics.Tally) metrics.Summary {
	metrics.EmitMetric(r.log, "pipeline", metrics.MetricRunDuration, elapsed.Milliseconds(), "gauge", logger.Fields{"unit": "ms", "run_id": r.ID})

	summary := tally.Close()
	runLog.WithComponent("pipeline").WithFields(logger.Fields{"metrics": summary.Fields()}).Info("run metrics")
	logger.LogRunReport(runLog, elapsed)
	return summary
}

func providerName(p provider.MarketDataProvider) string {
	if p == nil {
		return ""
	}
	return p.Name()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
