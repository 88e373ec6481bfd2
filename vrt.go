package nrblib

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eoproc/nrblib/log"
	"github.com/eoproc/nrblib/utils"

	godal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// RasterOptions are baked into every written raster artifact so later readers
// render consistent overview pyramids.
type RasterOptions struct {
	Overviews          []int
	OverviewResampling string
	OutputBounds       *Extent
	DataType           string // overrides the band data type, e.g. "Float32"
}

func (o RasterOptions) overviews() []int {
	if len(o.Overviews) == 0 {
		return DefaultOverviews
	}
	return o.Overviews
}

func (o RasterOptions) resampling() string {
	if o.OverviewResampling == "" {
		return DefaultOvrResampling
	}
	return o.OverviewResampling
}

// XML model of the GDAL VRT format, restricted to the elements this library
// writes. This is the versioned serialization of a DerivedBandSpec; any
// conformant VRT reader can open the artifact as a standard raster.
type vrtDataset struct {
	XMLName      xml.Name         `xml:"VRTDataset"`
	RasterXSize  int              `xml:"rasterXSize,attr,omitempty"`
	RasterYSize  int              `xml:"rasterYSize,attr,omitempty"`
	SRS          *vrtSRS          `xml:"SRS"`
	GeoTransform string           `xml:"GeoTransform,omitempty"`
	Bands        []*vrtRasterBand `xml:"VRTRasterBand"`
	OverviewList *vrtOverviewList `xml:"OverviewList"`
}

type vrtSRS struct {
	AxisMapping string `xml:"dataAxisToSRSAxisMapping,attr,omitempty"`
	Value       string `xml:",chardata"`
}

type vrtOverviewList struct {
	Resampling string `xml:"resampling,attr,omitempty"`
	Levels     string `xml:",chardata"`
}

type vrtRasterBand struct {
	DataType              string              `xml:"dataType,attr,omitempty"`
	Band                  int                 `xml:"band,attr,omitempty"`
	SubClass              string              `xml:"subClass,attr,omitempty"`
	Description           string              `xml:"Description,omitempty"`
	NoDataValue           string              `xml:"NoDataValue,omitempty"`
	ColorInterp           string              `xml:"ColorInterp,omitempty"`
	Scale                 *float64            `xml:"Scale"`
	Offset                *float64            `xml:"Offset"`
	PixelFunctionType     string              `xml:"PixelFunctionType,omitempty"`
	PixelFunctionLanguage string              `xml:"PixelFunctionLanguage,omitempty"`
	PixelFunctionCode     *vrtCDATA           `xml:"PixelFunctionCode"`
	Sources               []*vrtComplexSource `xml:"ComplexSource"`
}

type vrtCDATA struct {
	Text string `xml:",cdata"`
}

type vrtComplexSource struct {
	SourceFilename   vrtSourceFilename `xml:"SourceFilename"`
	SourceBand       int               `xml:"SourceBand,omitempty"`
	ScaleRatio       *float64          `xml:"ScaleRatio"`
	ScaleOffset      *float64          `xml:"ScaleOffset"`
	NODATA           string            `xml:"NODATA,omitempty"`
	SourceProperties *vrtSourceProps   `xml:"SourceProperties"`
	SrcRect          *vrtRect          `xml:"SrcRect"`
	DstRect          *vrtRect          `xml:"DstRect"`
}

type vrtSourceFilename struct {
	RelativeToVRT int    `xml:"relativeToVRT,attr"`
	Value         string `xml:",chardata"`
}

type vrtSourceProps struct {
	RasterXSize int    `xml:"RasterXSize,attr"`
	RasterYSize int    `xml:"RasterYSize,attr"`
	DataType    string `xml:"DataType,attr,omitempty"`
	BlockXSize  int    `xml:"BlockXSize,attr,omitempty"`
	BlockYSize  int    `xml:"BlockYSize,attr,omitempty"`
}

type vrtRect struct {
	XOff  float64 `xml:"xOff,attr"`
	YOff  float64 `xml:"yOff,attr"`
	XSize float64 `xml:"xSize,attr"`
	YSize float64 `xml:"ySize,attr"`
}

// Pixel function bodies embedded into the artifact, so every reader computes
// the exact same result. Non-positive log input and zero denominators are
// left untouched in the NaN-initialized output buffer.
const (
	pixfunDecibelCode = `
import numpy as np
def decibel(in_ar, out_ar, xoff, yoff, xsize, ysize, raster_xsize, raster_ysize, buf_radius, gt, **kwargs):
    np.multiply(np.log10(in_ar[0], where=in_ar[0]>0.0, out=out_ar, dtype='float32'), 10.0, out=out_ar, dtype='float32')
`
	pixfunDivCode = `
import numpy as np
def div(in_ar, out_ar, xoff, yoff, xsize, ysize, raster_xsize, raster_ysize, buf_radius, gt, **kwargs):
    np.divide(in_ar[0], in_ar[1], out=out_ar, where=in_ar[1]!=0, dtype='float32')
`
)

func parseVRTFile(path string) (ds *vrtDataset, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	ds = &vrtDataset{}
	err = xml.Unmarshal(raw, ds)
	return
}

func writeVRTFile(path string, ds *vrtDataset) (err error) {
	raw, err := xml.MarshalIndent(ds, "", "  ")
	if err != nil {
		return
	}
	return os.WriteFile(path, append(raw, '\n'), os.ModePerm)
}

func (o RasterOptions) overviewList() *vrtOverviewList {
	return &vrtOverviewList{
		Resampling: strings.ToLower(o.resampling()),
		Levels:     utils.IntsToStr(o.overviews(), ' '),
	}
}

// composeDerived turns the first band of a freshly built VRT into a
// VRTDerivedRasterBand carrying the node's pixel function.
func composeDerived(ds *vrtDataset, spec *DerivedBandSpec, opt RasterOptions) {
	band := ds.Bands[0]
	band.SubClass = "VRTDerivedRasterBand"
	if opt.DataType != "" {
		band.DataType = opt.DataType
	}
	switch spec.Fun {
	case FunDecibel:
		band.PixelFunctionLanguage = "Python"
		band.PixelFunctionType = string(FunDecibel)
		band.PixelFunctionCode = &vrtCDATA{Text: pixfunDecibelCode}
	case FunDiv:
		band.PixelFunctionLanguage = "Python"
		band.PixelFunctionType = string(FunDiv)
		band.PixelFunctionCode = &vrtCDATA{Text: pixfunDivCode}
	default:
		band.PixelFunctionType = string(spec.Fun)
		band.Scale = spec.Scale
		band.Offset = spec.Offset
	}
	for _, src := range band.Sources {
		// nodata of floating outputs is normalized to NaN
		src.NODATA = "nan"
	}
	ds.OverviewList = opt.overviewList()
}

// composeRGB rewrites a 2-band separate VRT into the 3-band color composite:
// co-pol as red, cross-pol as green and their ratio as a derived blue band.
func composeRGB(ds *vrtDataset, opt RasterOptions) {
	ratio := &vrtRasterBand{
		DataType:              "Float32",
		Band:                  len(ds.Bands) + 1,
		SubClass:              "VRTDerivedRasterBand",
		NoDataValue:           "nan",
		PixelFunctionLanguage: "Python",
		PixelFunctionType:     string(FunDiv),
		PixelFunctionCode:     &vrtCDATA{Text: pixfunDivCode},
	}
	for _, band := range ds.Bands {
		for _, src := range band.Sources {
			cp := *src
			ratio.Sources = append(ratio.Sources, &cp)
		}
	}
	ds.Bands = append(ds.Bands, ratio)
	for i, col := range []string{"Red", "Green", "Blue"} {
		if i >= len(ds.Bands) {
			break
		}
		ds.Bands[i].ColorInterp = col
		if i < 2 {
			ds.Bands[i].NoDataValue = ""
		}
	}
	ds.OverviewList = opt.overviewList()
}

// stampOverviews adds the overview pyramid definition to an already written
// VRT so readers render it consistently with the derived artifacts.
func (g *NrbToolbox) stampOverviews(dst string, opt RasterOptions) (err error) {
	ds, err := parseVRTFile(dst)
	if err != nil {
		return
	}
	ds.OverviewList = opt.overviewList()
	return writeVRTFile(dst, ds)
}

func (g *NrbToolbox) buildBaseVRT(dst string, srcs []string, separate bool, opt RasterOptions) (err error) {
	switches := []string{"-overwrite"}
	if separate {
		switches = append(switches, "-separate")
	}
	if opt.OutputBounds != nil {
		b := opt.OutputBounds.Bounds()
		switches = append(switches, "-te",
			utils.FtoA(b[0]), utils.FtoA(b[1]), utils.FtoA(b[2]), utils.FtoA(b[3]))
	}
	ods, err := godal.BuildVRT(dst, srcs, switches)
	if err != nil {
		log.Error(g.logTag+"failed to build vrt", zap.String("dst", dst), zap.Error(err))
		return
	}
	return ods.Close()
}

// WriteDerivedVRT materializes a derivation tree as a VRT artifact at dst.
// Nested operator nodes are written as chained VRT files next to dst. The
// call is idempotent: an existing artifact is left untouched.
func (g *NrbToolbox) WriteDerivedVRT(dst string, spec *DerivedBandSpec, opt RasterOptions) (err error) {
	if utils.FileExists(dst) {
		log.Info(g.logTag+"derived vrt exists, skip", zap.String("dst", dst))
		return
	}
	if err = spec.Validate(); err != nil {
		return
	}
	if spec.IsLeaf() {
		if err = g.buildBaseVRT(dst, []string{spec.Source.Path}, false, opt); err != nil {
			return
		}
		return g.stampOverviews(dst, opt)
	}
	srcs := make([]string, len(spec.Args))
	stem := strings.TrimSuffix(dst, FILE_EXT_VRT)
	for i, a := range spec.Args {
		if a.IsLeaf() {
			srcs[i] = a.Source.Path
			continue
		}
		child := fmt.Sprintf("%s_arg%d%s", stem, i, FILE_EXT_VRT)
		if err = g.WriteDerivedVRT(child, a, opt); err != nil {
			return
		}
		srcs[i] = child
	}
	// a composite node stacks its operands as plain bands, no pixel function
	composite := spec.Fun == FunComposite
	if err = g.buildBaseVRT(dst, srcs, composite, opt); err != nil {
		return
	}
	ds, err := parseVRTFile(dst)
	if err != nil {
		return
	}
	if composite {
		ds.OverviewList = opt.overviewList()
	} else {
		composeDerived(ds, spec, opt)
	}
	if err = writeVRTFile(dst, ds); err != nil {
		return
	}
	log.Info(g.logTag+"wrote derived vrt", zap.String("dst", dst), zap.String("fun", string(spec.Fun)))
	return
}

// WriteRGBVRT builds the 3-band color composite artifact from a pair of
// polarization rasters. Input order is corrected so the co-polarized channel
// is always the red band.
func (g *NrbToolbox) WriteRGBVRT(dst string, infiles []string, opt RasterOptions) (err error) {
	if utils.FileExists(dst) {
		log.Info(g.logTag+"rgb vrt exists, skip", zap.String("dst", dst))
		return
	}
	ordered, err := orderCoPolFirst(infiles)
	if err != nil {
		return
	}
	if err = g.buildBaseVRT(dst, ordered, true, opt); err != nil {
		return
	}
	ds, err := parseVRTFile(dst)
	if err != nil {
		return
	}
	composeRGB(ds, opt)
	if err = writeVRTFile(dst, ds); err != nil {
		return
	}
	log.Info(g.logTag+"wrote rgb vrt", zap.String("dst", dst), zap.Strings("src", ordered))
	return
}

// ReadDerivedVRT parses a VRT artifact back into its derivation tree.
func ReadDerivedVRT(path string) (spec *DerivedBandSpec, err error) {
	ds, err := parseVRTFile(path)
	if err != nil {
		return
	}
	if len(ds.Bands) == 0 {
		err = ErrInvalidTif
		return
	}
	return specFromBand(ds.Bands[0]), nil
}

func specFromBand(band *vrtRasterBand) *DerivedBandSpec {
	args := make([]*DerivedBandSpec, 0, len(band.Sources))
	for _, src := range band.Sources {
		leaf := &DerivedBandSpec{Source: &SourceRef{
			Path:        src.SourceFilename.Value,
			Band:        src.SourceBand,
			ScaleRatio:  src.ScaleRatio,
			ScaleOffset: src.ScaleOffset,
		}}
		if src.NODATA != "" {
			if nd, e := strconv.ParseFloat(src.NODATA, 64); e == nil {
				leaf.Source.NoData = &nd
			}
		}
		args = append(args, leaf)
	}
	if band.SubClass != "VRTDerivedRasterBand" || band.PixelFunctionType == "" {
		if len(args) == 1 {
			return args[0]
		}
		return &DerivedBandSpec{Fun: FunComposite, Args: args, ColorInterp: band.ColorInterp}
	}
	return &DerivedBandSpec{
		Fun:         FunctionTag(band.PixelFunctionType),
		Args:        args,
		Scale:       band.Scale,
		Offset:      band.Offset,
		ColorInterp: band.ColorInterp,
	}
}

// RelativizeSources rewrites absolute source paths of a VRT artifact to paths
// relative to the VRT location, using relBase as the relative directory
// prefix (e.g. "../annotation").
func RelativizeSources(vrt, relBase string) (err error) {
	ds, err := parseVRTFile(vrt)
	if err != nil {
		return
	}
	for _, band := range ds.Bands {
		for _, src := range band.Sources {
			if src.SourceFilename.RelativeToVRT == 1 {
				continue
			}
			src.SourceFilename.Value = filepath.ToSlash(
				filepath.Join(relBase, filepath.Base(src.SourceFilename.Value)))
			src.SourceFilename.RelativeToVRT = 1
		}
	}
	return writeVRTFile(vrt, ds)
}
