package nrblib

import (
	"errors"
	"math"
	"testing"
)

var nan32 = float32(math.NaN())

func TestFuseClassesOrdering(t *testing.T) {
	// px0: shadow by geometry but flagged water -> water wins
	// px1: valid, backscatter nodata, not water -> extended shadow
	// px2: water and backscatter nodata -> stays water
	// px3: invalid per swath mask -> nodata regardless of geometry flags
	// px4: untouched layover
	ls := []uint8{MASK_SHADOW, MASK_NOT_MASKED, MASK_NOT_MASKED, MASK_LAYOVER_SHADOW, MASK_LAYOVER}
	wbm := []uint8{1, 0, 1, 0, 0}
	valid := []float32{1, 1, 1, nan32, 1}
	gamma := []float32{0.1, nan32, nan32, 0.2, 0.3}
	out := fuseClasses(ls, wbm, valid, gamma)
	want := []uint8{MASK_OCEAN_WATER, MASK_SHADOW, MASK_OCEAN_WATER, MASK_NODATA, MASK_LAYOVER}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("px%d = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestFuseClassesWithoutWater(t *testing.T) {
	ls := []uint8{MASK_NOT_MASKED, MASK_SHADOW}
	valid := []float32{1, 1}
	gamma := []float32{nan32, 0.5}
	out := fuseClasses(ls, nil, valid, gamma)
	if out[0] != MASK_SHADOW || out[1] != MASK_SHADOW {
		t.Fatal(out)
	}
}

func TestExpandClassLayers(t *testing.T) {
	fused := []uint8{
		MASK_NOT_MASKED, MASK_LAYOVER, MASK_SHADOW, MASK_LAYOVER_SHADOW, MASK_OCEAN_WATER, MASK_NODATA,
	}
	bands, names := expandClassLayers(fused, true)
	if len(bands) != 4 || len(names) != 4 {
		t.Fatal(names)
	}
	if names[0] != "not layover, nor shadow" || names[3] != "ocean water" {
		t.Fatal(names)
	}
	// combined layover-and-shadow pixels count toward both bands
	layover, shadow := bands[1], bands[2]
	if layover[3] != 1 || shadow[3] != 1 {
		t.Fatal("combined code must set layover and shadow bands")
	}
	if layover[1] != 1 || layover[2] != 0 {
		t.Fatal(layover)
	}
	if shadow[2] != 1 || shadow[1] != 0 {
		t.Fatal(shadow)
	}
	for b := range bands {
		if bands[b][5] != MASK_NODATA {
			t.Fatalf("band %d lost nodata", b)
		}
	}
	if bands[0][0] != 1 || bands[0][4] != 0 {
		t.Fatal(bands[0])
	}

	bands, names = expandClassLayers(fused, false)
	if len(bands) != 3 {
		t.Fatal(names)
	}
	for _, n := range names {
		if n == "ocean water" {
			t.Fatal("water band emitted without water mask")
		}
	}
}

func TestFuseDataMaskBadFormat(t *testing.T) {
	g := NewNrbToolbox(t.TempDir())
	err := g.FuseDataMask(FuseOptions{
		Outname:            "out.tif",
		TileID:             "33UUU",
		OutFormat:          "triple-layer",
		LayoverShadowMasks: []string{"dm.tif"},
		ValidityMasks:      []string{"valid.tif"},
		Backscatter:        []string{"vv.tif"},
	})
	if !errors.Is(err, ErrBadOutFormat) {
		t.Fatal(err)
	}
}

func TestFuseDataMaskNoScenes(t *testing.T) {
	g := NewNrbToolbox(t.TempDir())
	err := g.FuseDataMask(FuseOptions{Outname: "out.tif", TileID: "33UUU"})
	if !errors.Is(err, ErrEmptyTile) {
		t.Fatal(err)
	}
}
