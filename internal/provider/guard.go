package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	appconfig "cryptorank/config"
	ratemetrics "cryptorank/internal/metrics/rate"
	"cryptorank/internal/models"
	"cryptorank/logger"
)

// Guarded wraps a provider with a request rate limit, a per-attempt timeout
// and bounded retry with exponential backoff.
type Guarded struct {
	inner   MarketDataProvider
	limiter *rate.Limiter
	timeout time.Duration
	retry   appconfig.RetryConfig
	log     *logger.Log
	sleep   func(ctx context.Context, d time.Duration) error
}

// Guard wraps p using the reader settings.
func Guard(p MarketDataProvider, cfg appconfig.ReaderConfig) *Guarded {
	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	retry := cfg.Retry
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffMultiplier < 1 {
		retry.BackoffMultiplier = 2
	}

	return &Guarded{
		inner:   p,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		timeout: cfg.Timeout,
		retry:   retry,
		log:     logger.GetLogger(),
		sleep:   sleepCtx,
	}
}

func (g *Guarded) Name() string { return g.inner.Name() }

// Unwrap returns the guarded provider.
func (g *Guarded) Unwrap() MarketDataProvider { return g.inner }

func (g *Guarded) ListAssets(ctx context.Context) (models.AssetSet, error) {
	var out models.AssetSet
	err := g.do(ctx, "", "list_assets", func(ctx context.Context) error {
		var err error
		out, err = g.inner.ListAssets(ctx)
		return err
	})
	return out, err
}

func (g *Guarded) FetchCandles(ctx context.Context, asset models.AssetID, gr models.Granularity, limit int) ([]models.RawCandle, error) {
	var out []models.RawCandle
	err := g.do(ctx, asset, "fetch_candles", func(ctx context.Context) error {
		var err error
		out, err = g.inner.FetchCandles(ctx, asset, gr, limit)
		return err
	})
	return out, err
}

func (g *Guarded) FetchSpotPrice(ctx context.Context, asset models.AssetID) (float64, error) {
	var out float64
	err := g.do(ctx, asset, "fetch_spot_price", func(ctx context.Context) error {
		var err error
		out, err = g.inner.FetchSpotPrice(ctx, asset)
		return err
	})
	return out, err
}

func (g *Guarded) do(ctx context.Context, asset models.AssetID, operation string, call func(ctx context.Context) error) error {
	exchange := g.inner.Name()
	log := g.log.WithComponent(exchange + "_provider").WithFields(logger.Fields{
		"asset":     asset,
		"operation": operation,
	})

	delay := g.retry.BaseDelay
	var err error
	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		if werr := g.limiter.Wait(ctx); werr != nil {
			return fmt.Errorf("%s %s: %w", exchange, operation, werr)
		}

		start := time.Now()
		err = g.attempt(ctx, call)
		if err == nil {
			logger.LogPerformanceEntry(log, exchange+"_provider", operation, time.Since(start), logger.Fields{"attempt": attempt})
			return nil
		}

		limit := ratemetrics.ReportLimitFromMessage(g.log, exchange, string(asset), operation, err.Error())
		if ctx.Err() != nil || limit.IPBanned || errors.Is(err, ErrNotFound) || attempt == g.retry.MaxAttempts {
			break
		}

		log.WithError(err).WithFields(logger.Fields{
			"attempt": attempt,
			"backoff": delay.String(),
		}).Debug("request failed, retrying")

		if serr := g.sleep(ctx, delay); serr != nil {
			break
		}
		delay = g.nextDelay(delay)
	}

	if asset == "" {
		return fmt.Errorf("%s %s: %w", exchange, operation, err)
	}
	return fmt.Errorf("%s %s %s: %w", exchange, operation, asset, err)
}

func (g *Guarded) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	if g.timeout <= 0 {
		return call(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return call(ctx)
}

func (g *Guarded) nextDelay(d time.Duration) time.Duration {
	next := d * time.Duration(g.retry.BackoffMultiplier)
	if g.retry.MaxDelay > 0 && next > g.retry.MaxDelay {
		next = g.retry.MaxDelay
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
