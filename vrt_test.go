package nrblib

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// baseVRT fabricates what gdalbuildvrt writes for the given sources, one
// mosaic band or one band per source.
func baseVRT(separate bool, srcs ...string) *vrtDataset {
	ds := &vrtDataset{
		RasterXSize:  10,
		RasterYSize:  10,
		GeoTransform: "300000.0, 10.0, 0.0, 5890200.0, 0.0, -10.0",
	}
	newSrc := func(path string) *vrtComplexSource {
		return &vrtComplexSource{
			SourceFilename:   vrtSourceFilename{Value: path},
			SourceBand:       1,
			SourceProperties: &vrtSourceProps{RasterXSize: 10, RasterYSize: 10, DataType: "Float32"},
			SrcRect:          &vrtRect{XSize: 10, YSize: 10},
			DstRect:          &vrtRect{XSize: 10, YSize: 10},
		}
	}
	if separate {
		for i, s := range srcs {
			ds.Bands = append(ds.Bands, &vrtRasterBand{
				DataType: "Float32", Band: i + 1, NoDataValue: "nan",
				Sources: []*vrtComplexSource{newSrc(s)},
			})
		}
		return ds
	}
	band := &vrtRasterBand{DataType: "Float32", Band: 1}
	for _, s := range srcs {
		band.Sources = append(band.Sources, newSrc(s))
	}
	ds.Bands = []*vrtRasterBand{band}
	return ds
}

func TestDerivedVRTRoundTrip(t *testing.T) {
	spec, err := Div(Source("num.tif"), Source("den.tif"))
	if err != nil {
		t.Fatal(err)
	}
	ds := baseVRT(false, "num.tif", "den.tif")
	composeDerived(ds, spec, RasterOptions{})

	raw, err := xml.MarshalIndent(ds, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	back := &vrtDataset{}
	if err = xml.Unmarshal(raw, back); err != nil {
		t.Fatal(err)
	}
	got := specFromBand(back.Bands[0])
	if got.Fun != FunDiv {
		t.Fatal(got.Fun)
	}
	if got.Args[0].Source.Path != "num.tif" || got.Args[1].Source.Path != "den.tif" {
		t.Fatal("operand order lost in round trip")
	}
	for _, src := range back.Bands[0].Sources {
		if src.NODATA != "nan" {
			t.Fatal("nodata not normalized to nan")
		}
	}
	if !strings.Contains(string(raw), "where=in_ar[1]!=0") {
		t.Fatal("div must guard division by zero")
	}
}

func TestComposeDerivedDecibel(t *testing.T) {
	spec, err := Decibel(Source("vv-g-lin.tif"))
	if err != nil {
		t.Fatal(err)
	}
	ds := baseVRT(false, "vv-g-lin.tif")
	composeDerived(ds, spec, RasterOptions{Overviews: []int{2, 4}, OverviewResampling: "AVERAGE"})
	band := ds.Bands[0]
	if band.SubClass != "VRTDerivedRasterBand" {
		t.Fatal(band.SubClass)
	}
	if band.PixelFunctionType != "decibel" || band.PixelFunctionLanguage != "Python" {
		t.Fatal(band.PixelFunctionType)
	}
	if band.PixelFunctionCode == nil || !strings.Contains(band.PixelFunctionCode.Text, "where=in_ar[0]>0.0") {
		t.Fatal("decibel must guard non-positive input")
	}
	if ds.OverviewList == nil || ds.OverviewList.Levels != "2 4" || ds.OverviewList.Resampling != "average" {
		t.Fatal(ds.OverviewList)
	}
}

func TestComposeDerivedLog10Scale(t *testing.T) {
	spec, err := Log10(Source("vv-g-lin.tif"), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	ds := baseVRT(false, "vv-g-lin.tif")
	composeDerived(ds, spec, RasterOptions{})
	band := ds.Bands[0]
	if band.PixelFunctionType != "log10" {
		t.Fatal(band.PixelFunctionType)
	}
	if band.Scale == nil || *band.Scale != 10 {
		t.Fatal("scale element missing")
	}
	got := specFromBand(band)
	if got.Fun != FunLog10 || got.Scale == nil || *got.Scale != 10 {
		t.Fatal(got)
	}
}

func TestComposeRGB(t *testing.T) {
	ds := baseVRT(true, "vv-g-log.vrt", "vh-g-log.vrt")
	composeRGB(ds, RasterOptions{})
	if len(ds.Bands) != 3 {
		t.Fatal(len(ds.Bands))
	}
	for i, col := range []string{"Red", "Green", "Blue"} {
		if ds.Bands[i].ColorInterp != col {
			t.Fatalf("band %d: %s", i+1, ds.Bands[i].ColorInterp)
		}
	}
	if ds.Bands[0].NoDataValue != "" || ds.Bands[1].NoDataValue != "" {
		t.Fatal("source band nodata should be dropped")
	}
	ratio := ds.Bands[2]
	if ratio.SubClass != "VRTDerivedRasterBand" || ratio.PixelFunctionType != "div" {
		t.Fatal(ratio)
	}
	if len(ratio.Sources) != 2 {
		t.Fatal(len(ratio.Sources))
	}
	if ratio.Sources[0].SourceFilename.Value != "vv-g-log.vrt" {
		t.Fatal("co-pol must be the ratio numerator")
	}
	if ratio.NoDataValue != "nan" {
		t.Fatal(ratio.NoDataValue)
	}
}

func TestRelativizeSources(t *testing.T) {
	dir := t.TempDir()
	vrt := filepath.Join(dir, "vv-s-lin.vrt")
	ds := baseVRT(false, "/data/annotation/vv-gs.tif")
	if err := writeVRTFile(vrt, ds); err != nil {
		t.Fatal(err)
	}
	if err := RelativizeSources(vrt, "../annotation"); err != nil {
		t.Fatal(err)
	}
	back, err := parseVRTFile(vrt)
	if err != nil {
		t.Fatal(err)
	}
	src := back.Bands[0].Sources[0]
	if src.SourceFilename.RelativeToVRT != 1 {
		t.Fatal("source not marked relative")
	}
	if src.SourceFilename.Value != "../annotation/vv-gs.tif" {
		t.Fatal(src.SourceFilename.Value)
	}
	os.Remove(vrt)
}
