package nrblib

import (
	"fmt"
	"os"
	"strings"

	"github.com/eoproc/nrblib/log"
	"github.com/eoproc/nrblib/utils"

	"go.uber.org/zap"
)

// AcqIDOptions parameterizes the per-tile acquisition id composition.
type AcqIDOptions struct {
	Outname            string
	TileID             string
	Extent             Extent
	EPSG               int
	Scenes             []SourceScene
	ValidityMasks      []string
	Driver             string
	CreationOpts       []string
	Overviews          []int
	OverviewResampling string
}

// pairMasksToScenes re-pairs the validity mask files with the
// chronologically sorted scenes using the start timestamp token embedded in
// each mask filename. The scenes themselves are never reordered here.
func pairMasksToScenes(scenes []SourceScene, masks []string) (paired []string, err error) {
	if len(masks) != len(scenes) {
		err = fmt.Errorf("%d scenes vs %d masks: %w", len(scenes), len(masks), ErrMaskPairing)
		return
	}
	paired = make([]string, len(scenes))
	used := make([]bool, len(masks))
	for i, s := range scenes {
		found := -1
		for j, m := range masks {
			if used[j] {
				continue
			}
			start, e := ParseStartTimestamp(m)
			if e != nil {
				err = e
				return
			}
			if start.Equal(s.Start) {
				found = j
				break
			}
		}
		if found < 0 {
			err = fmt.Errorf("scene %s: %w", s.ID, ErrMaskPairing)
			return
		}
		used[found] = true
		paired[i] = masks[found]
	}
	return
}

// composeAcqID stamps each scene's valid pixels with its 1-based index,
// ascending in acquisition time, so the later-acquired scene wins wherever
// two scenes overlap. Pixels no scene covers stay at nodata.
func composeAcqID(masks [][]float32) []uint8 {
	if len(masks) == 0 {
		return nil
	}
	out := make([]uint8, len(masks[0]))
	for i := range out {
		out[i] = MASK_NODATA
	}
	for idx, m := range masks {
		for i, v := range m {
			if v == 1 {
				out[i] = uint8(idx + 1)
			}
		}
	}
	return out
}

// provenanceTag renders the ordered source-name to index mapping attached to
// the acquisition id raster, e.g. {"<source1>": 1, "<source2>": 2}.
func provenanceTag(scenes []SourceScene) AnyJson {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, s := range scenes {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q: %d", s.CleanName(), i+1)
	}
	sb.WriteByte('}')
	return AnyJson(sb.String())
}

// ComposeAcquisitionID builds the per-tile raster of small integer source
// indices from the ordered per-scene validity masks. Re-running for an
// existing output is a no-op.
func (g *NrbToolbox) ComposeAcquisitionID(opt AcqIDOptions) (err error) {
	if utils.FileExists(opt.Outname) {
		log.Info(g.logTag+"acq id image exists, skip", zap.String("tile", opt.TileID), zap.String("out", opt.Outname))
		return
	}
	if len(opt.Scenes) == 0 || len(opt.ValidityMasks) == 0 {
		return fmt.Errorf("tile %s: %w", opt.TileID, ErrEmptyTile)
	}
	scenes := SortScenesByStart(opt.Scenes)
	masks, err := pairMasksToScenes(scenes, opt.ValidityMasks)
	if err != nil {
		return fmt.Errorf("tile %s: %w", opt.TileID, err)
	}
	log.Info(g.logTag+"start acq id composition", zap.String("tile", opt.TileID), zap.Int("scenes", len(scenes)))

	var (
		grid rasterGrid
		arrs = make([][]float32, len(masks))
		vrt  string
		tmps []string
	)
	defer func() {
		for _, t := range tmps {
			os.Remove(t)
		}
	}()
	for i, m := range masks {
		if vrt, err = g.clippedVRT([]string{m}, opt.Extent); err != nil {
			return fmt.Errorf("tile %s: %w", opt.TileID, err)
		}
		tmps = append(tmps, vrt)
		var gd rasterGrid
		if gd, arrs[i], err = g.readBandF32(vrt); err != nil {
			return fmt.Errorf("tile %s, mask %s: %w", opt.TileID, m, err)
		}
		if i == 0 {
			grid = gd
		} else if gd.nx != grid.nx || gd.ny != grid.ny {
			return fmt.Errorf("tile %s: mask grids disagree: %w", opt.TileID, ErrInvalidTif)
		}
	}

	out := composeAcqID(arrs)
	tag := provenanceTag(scenes)

	driver := opt.Driver
	if driver == "" {
		driver = GTIFF_DRIVER_NAME
	}
	meta := map[string]string{"TIFFTAG_IMAGEDESCRIPTION": string(tag)}
	err = g.writeCoded(opt.Outname, grid, [][]uint8{out}, []string{"acquisition id"},
		driver, opt.CreationOpts, overviewsOrDefault(opt.Overviews), opt.OverviewResampling, meta)
	if err != nil {
		return fmt.Errorf("tile %s: %w", opt.TileID, err)
	}
	log.Info(g.logTag+"wrote acq id image", zap.String("tile", opt.TileID), zap.ByteString("tag", tag))
	return
}
