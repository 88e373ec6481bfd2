package nrblib

import (
	"context"
	"fmt"

	"github.com/eoproc/nrblib/log"
	"github.com/eoproc/nrblib/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProcessTiles runs fn for every tile, up to workers tiles in parallel. Tiles
// share no mutable state, so per-tile isolation is the only coordination
// needed. A started tile always runs to completion; the context only gates
// starting further tiles.
func ProcessTiles(ctx context.Context, tiles []Tile, workers int, fn func(Tile) error) error {
	if workers < 1 {
		workers = 1
	}
	eg := &errgroup.Group{}
	eg.SetLimit(workers)
	for _, tile := range tiles {
		tile := tile
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := fn(tile); err != nil {
				log.Error("tile processing failed", zap.String("tile", tile.ID), zap.Error(err))
				return fmt.Errorf("tile %s: %w", tile.ID, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// CheckWaterMask verifies that the external water body mask required for the
// given DEM type is present. GETASSE30 carries no water body product, so no
// mask is expected there.
func CheckWaterMask(demType, wbm string) error {
	if demType == "GETASSE30" {
		return nil
	}
	if wbm == "" {
		return ErrMissingWaterMask
	}
	if !utils.FileExists(wbm) {
		return fmt.Errorf("%s: %w", wbm, ErrMissingWaterMask)
	}
	return nil
}
