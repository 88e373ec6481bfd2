package nrblib

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/eoproc/nrblib/log"
	"github.com/eoproc/nrblib/utils"

	godal "github.com/airbusgeo/godal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FuseOptions parameterizes the per-tile data mask fusion.
type FuseOptions struct {
	Outname            string
	TileID             string
	Extent             Extent
	EPSG               int
	LayoverShadowMasks []string // per-scene geometry masks
	ValidityMasks      []string // per-scene swath coverage masks
	Backscatter        []string // co-polarized backscatter of each scene
	WaterMask          string   // optional, tile-aligned water body mask
	OutFormat          string   // multi-layer (default) or single-layer
	Driver             string
	CreationOpts       []string
	Overviews          []int
	OverviewResampling string
}

type classBand struct {
	val  uint8
	name string
}

// band order of the multi-layer output; the water band is dropped when no
// water mask was supplied
var classBands = []classBand{
	{MASK_NOT_MASKED, "not layover, nor shadow"},
	{MASK_LAYOVER, "layover"},
	{MASK_SHADOW, "shadow"},
	{MASK_OCEAN_WATER, "ocean water"},
}

func isNaN32(f float32) bool {
	return f != f
}

// fuseClasses merges the per-pixel classifications into one coded raster.
// Order is fixed: water overwrites the geometry classes, the
// backscatter-nodata extension never reclassifies water, and validity nodata
// is applied last so nothing can override it.
func fuseClasses(ls, wbm []uint8, valid, gamma0 []float32) []uint8 {
	out := make([]uint8, len(ls))
	copy(out, ls)
	if wbm != nil {
		for i, w := range wbm {
			if w == 1 {
				out[i] = MASK_OCEAN_WATER
			}
		}
	}
	for i := range out {
		if valid[i] == 1 && isNaN32(gamma0[i]) && out[i] != MASK_OCEAN_WATER {
			// radiometric dropout not explained by geometry
			out[i] = MASK_SHADOW
		}
		if isNaN32(valid[i]) {
			out[i] = MASK_NODATA
		}
	}
	return out
}

// expandClassLayers converts the coded raster into one boolean band per
// retained class. Combined layover-and-shadow pixels count toward both the
// layover and the shadow band.
func expandClassLayers(fused []uint8, withWater bool) (bands [][]uint8, names []string) {
	for _, def := range classBands {
		if def.val == MASK_OCEAN_WATER && !withWater {
			continue
		}
		arr := make([]uint8, len(fused))
		for i, v := range fused {
			switch {
			case v == MASK_NODATA:
				arr[i] = MASK_NODATA
			case v == def.val:
				arr[i] = 1
			case v == MASK_LAYOVER_SHADOW && (def.val == MASK_LAYOVER || def.val == MASK_SHADOW):
				arr[i] = 1
			}
		}
		bands = append(bands, arr)
		names = append(names, def.name)
	}
	return
}

func (g *NrbToolbox) tmpVRT() string {
	return filepath.Join(g.tmpDir, fmt.Sprintf(TMP_VRT, uuid.NewString()))
}

// clippedVRT mosaics the given rasters into a temp VRT clipped to the tile
// extent. The caller removes the returned path.
func (g *NrbToolbox) clippedVRT(srcs []string, ext Extent) (vrt string, err error) {
	vrt = g.tmpVRT()
	b := ext.Bounds()
	ods, err := godal.BuildVRT(vrt, srcs, []string{
		"-overwrite", "-te", utils.FtoA(b[0]), utils.FtoA(b[1]), utils.FtoA(b[2]), utils.FtoA(b[3]),
	})
	if err != nil {
		log.Error(g.logTag+"failed to build clipped vrt", zap.Error(err))
		return
	}
	err = ods.Close()
	return
}

type rasterGrid struct {
	nx, ny int
	gt     [6]float64
	proj   string
}

func (g *NrbToolbox) readBandU8(path string) (grid rasterGrid, buf []uint8, err error) {
	sds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open raster failed", zap.String("path", path), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	defer sds.Close()
	bands := sds.Bands()
	if len(bands) == 0 {
		err = ErrInvalidTif
		return
	}
	st := bands[0].Structure()
	grid.nx, grid.ny = st.SizeX, st.SizeY
	grid.gt, _ = sds.GeoTransform()
	grid.proj = sds.Projection()
	buf = make([]uint8, grid.nx*grid.ny)
	if err = bands[0].IO(godal.IORead, 0, 0, buf, grid.nx, grid.ny); err != nil {
		log.Error(g.logTag+"read raster failed", zap.String("path", path), zap.Error(err))
		err = ErrTifReadFailed
	}
	return
}

func (g *NrbToolbox) readBandF32(path string) (grid rasterGrid, buf []float32, err error) {
	sds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open raster failed", zap.String("path", path), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	defer sds.Close()
	bands := sds.Bands()
	if len(bands) == 0 {
		err = ErrInvalidTif
		return
	}
	st := bands[0].Structure()
	grid.nx, grid.ny = st.SizeX, st.SizeY
	grid.gt, _ = sds.GeoTransform()
	grid.proj = sds.Projection()
	buf = make([]float32, grid.nx*grid.ny)
	if err = bands[0].IO(godal.IORead, 0, 0, buf, grid.nx, grid.ny); err != nil {
		log.Error(g.logTag+"read raster failed", zap.String("path", path), zap.Error(err))
		err = ErrTifReadFailed
	}
	// the nodata of validity/backscatter rasters is NaN already; normalize an
	// explicit nodata value if the producer set one instead
	if nd, ok := bands[0].NoData(); ok && !math.IsNaN(nd) {
		ndf := float32(nd)
		nan := float32(math.NaN())
		for i, v := range buf {
			if v == ndf {
				buf[i] = nan
			}
		}
	}
	return
}

func resamplingAlg(name string) godal.ResamplingAlg {
	switch name {
	case "", "AVERAGE", "average":
		return godal.Average
	case "NEAREST", "nearest":
		return godal.Nearest
	case "BILINEAR", "bilinear":
		return godal.Bilinear
	case "CUBIC", "cubic":
		return godal.Cubic
	case "MODE", "mode":
		return godal.Mode
	default:
		return godal.Average
	}
}

// writeCoded writes byte bands onto the tile grid, then translates the result
// to the requested driver with the configured creation options.
func (g *NrbToolbox) writeCoded(outname string, grid rasterGrid, bands [][]uint8, names []string,
	driver string, creationOpts []string, overviews []int, ovrResampling string, metadata map[string]string) (err error) {
	tmp := outname + "_tmp.tif"
	defer os.Remove(tmp)
	tmpOpts := []string{"BIGTIFF=YES"}
	if len(bands) == 1 {
		// MINISWHITE is only valid for single-band GTiffs
		tmpOpts = append(tmpOpts, "ALPHA=UNSPECIFIED", "PHOTOMETRIC=MINISWHITE")
	}
	ds, err := godal.Create(godal.GTiff, tmp, len(bands), godal.Byte, grid.nx, grid.ny,
		godal.CreationOption(tmpOpts...))
	if err != nil {
		log.Error(g.logTag+"create tmp tif failed", zap.Error(err))
		return
	}
	if err = ds.SetGeoTransform(grid.gt); err != nil {
		ds.Close()
		return
	}
	if err = ds.SetProjection(grid.proj); err != nil {
		ds.Close()
		return
	}
	for i, band := range ds.Bands() {
		if err = band.IO(godal.IOWrite, 0, 0, bands[i], grid.nx, grid.ny); err != nil {
			log.Error(g.logTag+"write band failed", zap.Int("band", i+1), zap.Error(err))
			ds.Close()
			return ErrTifReadFailed
		}
		if err = band.SetNoData(MASK_NODATA); err != nil {
			ds.Close()
			return
		}
		if names != nil {
			if err = band.SetDescription(names[i]); err != nil {
				ds.Close()
				return
			}
		}
	}
	for k, v := range metadata {
		if err = ds.SetMetadata(k, v); err != nil {
			ds.Close()
			return
		}
	}
	if err = ds.BuildOverviews(godal.Levels(overviews...), godal.Resampling(resamplingAlg(ovrResampling))); err != nil {
		log.Error(g.logTag+"build overviews failed", zap.Error(err))
		ds.Close()
		return
	}
	if err = ds.Close(); err != nil {
		return
	}
	sds, err := godal.Open(tmp, godal.RasterOnly())
	if err != nil {
		return
	}
	defer sds.Close()
	switches := []string{"-of", driver}
	for _, co := range creationOpts {
		switches = append(switches, "-co", co)
	}
	fds, err := sds.Translate(outname, switches)
	if err != nil {
		log.Error(g.logTag+"failed to translate coded raster", zap.String("out", outname), zap.Error(err))
		return
	}
	return fds.Close()
}

// FuseDataMask merges the per-scene layover/shadow and validity masks of one
// tile with the optional water body mask and the backscatter nodata pattern
// into the authoritative data mask raster. Re-running for an existing output
// is a no-op.
func (g *NrbToolbox) FuseDataMask(opt FuseOptions) (err error) {
	if utils.FileExists(opt.Outname) {
		log.Info(g.logTag+"data mask exists, skip", zap.String("tile", opt.TileID), zap.String("out", opt.Outname))
		return
	}
	switch opt.OutFormat {
	case "", OUT_FORMAT_MULTI_LAYER, OUT_FORMAT_SINGLE_LAYER:
	default:
		return fmt.Errorf("tile %s, format %q: %w", opt.TileID, opt.OutFormat, ErrBadOutFormat)
	}
	if len(opt.LayoverShadowMasks) == 0 || len(opt.ValidityMasks) == 0 || len(opt.Backscatter) == 0 {
		return fmt.Errorf("tile %s: %w", opt.TileID, ErrEmptyTile)
	}
	log.Info(g.logTag+"start data mask fusion", zap.String("tile", opt.TileID),
		zap.Int("scenes", len(opt.ValidityMasks)), zap.Bool("water", opt.WaterMask != ""))

	var (
		vrtLS, vrtValid, vrtGamma string
		tmps                      []string
	)
	defer func() {
		for _, t := range tmps {
			os.Remove(t)
		}
	}()
	if vrtLS, err = g.clippedVRT(opt.LayoverShadowMasks, opt.Extent); err != nil {
		return
	}
	tmps = append(tmps, vrtLS)
	if vrtValid, err = g.clippedVRT(opt.ValidityMasks, opt.Extent); err != nil {
		return
	}
	tmps = append(tmps, vrtValid)
	if vrtGamma, err = g.clippedVRT(opt.Backscatter, opt.Extent); err != nil {
		return
	}
	tmps = append(tmps, vrtGamma)

	grid, ls, err := g.readBandU8(vrtLS)
	if err != nil {
		return fmt.Errorf("tile %s: %w", opt.TileID, err)
	}
	_, valid, err := g.readBandF32(vrtValid)
	if err != nil {
		return fmt.Errorf("tile %s: %w", opt.TileID, err)
	}
	_, gamma0, err := g.readBandF32(vrtGamma)
	if err != nil {
		return fmt.Errorf("tile %s: %w", opt.TileID, err)
	}
	var wbm []uint8
	if opt.WaterMask != "" {
		if _, wbm, err = g.readBandU8(opt.WaterMask); err != nil {
			return fmt.Errorf("tile %s, water mask %s: %w", opt.TileID, opt.WaterMask, err)
		}
	}
	if len(valid) != len(ls) || len(gamma0) != len(ls) || (wbm != nil && len(wbm) != len(ls)) {
		return fmt.Errorf("tile %s: mask grids disagree: %w", opt.TileID, ErrInvalidTif)
	}

	fused := fuseClasses(ls, wbm, valid, gamma0)

	driver := opt.Driver
	if driver == "" {
		driver = GTIFF_DRIVER_NAME
	}
	meta := map[string]string{"TIFFTAG_DATETIME": utils.TiffTimeTag()}
	if opt.OutFormat == OUT_FORMAT_SINGLE_LAYER {
		err = g.writeCoded(opt.Outname, grid, [][]uint8{fused}, []string{"data mask"},
			driver, opt.CreationOpts, overviewsOrDefault(opt.Overviews), opt.OverviewResampling, meta)
	} else {
		bands, names := expandClassLayers(fused, wbm != nil)
		err = g.writeCoded(opt.Outname, grid, bands, names,
			driver, opt.CreationOpts, overviewsOrDefault(opt.Overviews), opt.OverviewResampling, meta)
	}
	if err != nil {
		return fmt.Errorf("tile %s: %w", opt.TileID, err)
	}
	log.Info(g.logTag+"wrote data mask", zap.String("tile", opt.TileID), zap.String("out", opt.Outname))
	return
}

func overviewsOrDefault(levels []int) []int {
	if len(levels) == 0 {
		return DefaultOverviews
	}
	return levels
}
