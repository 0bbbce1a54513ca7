// Package fanout runs independent per-asset tasks with bounded concurrency.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"

	"cryptorank/internal/models"
)

// Each calls fn once per asset with at most limit calls in flight. Tasks
// report their own failures; one task can never cancel another. Once ctx is
// done no further tasks start and ctx.Err() is returned after in-flight
// tasks finish.
func Each(ctx context.Context, assets []models.AssetID, limit int, fn func(ctx context.Context, asset models.AssetID)) error {
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for _, asset := range assets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(ctx, asset)
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}
