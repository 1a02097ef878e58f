package preload

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tilecache/internal/resource"
	"tilecache/internal/tileset"
)

type Result struct {
	Loaded int
	Failed int
}

// Loader produces the construct-on-miss routine for a cache key.
type Loader interface {
	Constructor(path string) func() (tileset.Tileset, error)
}

// Run loads every path into c using at most workers goroutines. c must be
// safe for concurrent use. A failed load is logged and counted, it does not
// stop the run; only context cancellation does.
func Run(ctx context.Context, workers int, paths []string, c resource.Cache, loader Loader, log *zap.Logger) (Result, error) {
	if len(paths) == 0 {
		return Result{}, nil
	}

	if workers <= 0 {
		workers = 1
	}

	log.Info("Starting tileset preload", zap.Int("tilesets", len(paths)), zap.Int("workers", workers))

	var loaded, failed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			if _, err := c.GetOrTryInsertTileset(path, loader.Constructor(path)); err != nil {
				atomic.AddInt64(&failed, 1)
				log.Debug("Preload tileset failed", zap.String("path", path), zap.Error(err))
				return nil
			}
			atomic.AddInt64(&loaded, 1)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	result := Result{Loaded: int(loaded), Failed: int(failed)}
	log.Info("Tileset preload completed", zap.Int("loaded", result.Loaded), zap.Int("failed", result.Failed))
	return result, err
}
