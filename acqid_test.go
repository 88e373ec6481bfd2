package nrblib

import (
	"errors"
	"testing"
	"time"
)

func TestComposeAcqIDOverlap(t *testing.T) {
	// 10x10 tile; scene A covers columns 0..4, scene B (later start) covers
	// rows 7..9 columns 2..7, overlapping A in a 3x3 corner region
	const n = 10
	maskA := make([]float32, n*n)
	maskB := make([]float32, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < 5; col++ {
			maskA[row*n+col] = 1
		}
	}
	for row := 7; row < 10; row++ {
		for col := 2; col < 8; col++ {
			maskB[row*n+col] = 1
		}
	}
	out := composeAcqID([][]float32{maskA, maskB})
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			got := out[row*n+col]
			inA := col < 5
			inB := row >= 7 && col >= 2 && col < 8
			var want uint8 = MASK_NODATA
			switch {
			case inB:
				// the later-acquired scene wins in the overlap
				want = 2
			case inA:
				want = 1
			}
			if got != want {
				t.Fatalf("(%d,%d) = %d, want %d", row, col, got, want)
			}
		}
	}
}

func TestPairMasksToScenes(t *testing.T) {
	t0 := time.Date(2021, 3, 14, 9, 26, 53, 0, time.UTC)
	scenes := []SourceScene{
		{ID: "a", Start: t0},
		{ID: "b", Start: t0.Add(2 * time.Second)},
	}
	masks := []string{
		"/tmp/S1A_20210314T092655_datamask.tif", // scene b
		"/tmp/S1A_20210314T092653_datamask.tif", // scene a
	}
	paired, err := pairMasksToScenes(scenes, masks)
	if err != nil {
		t.Fatal(err)
	}
	if paired[0] != masks[1] || paired[1] != masks[0] {
		t.Fatal(paired)
	}
}

func TestPairMasksToScenesMismatch(t *testing.T) {
	scenes := []SourceScene{{ID: "a", Start: time.Now()}}
	if _, err := pairMasksToScenes(scenes, nil); !errors.Is(err, ErrMaskPairing) {
		t.Fatal(err)
	}
	_, err := pairMasksToScenes(scenes, []string{"/tmp/S1A_19990101T000000_datamask.tif"})
	if !errors.Is(err, ErrMaskPairing) {
		t.Fatal(err)
	}
}

func TestProvenanceTag(t *testing.T) {
	scenes := []SourceScene{
		{ID: "a", Scene: "/archive/S1A_IW_GRDH_20210314T092653.SAFE.zip"},
		{ID: "b", Scene: "/archive/S1A_IW_GRDH_20210314T092655.SAFE.zip"},
	}
	tag := string(provenanceTag(scenes))
	want := `{"S1A_IW_GRDH_20210314T092653": 1, "S1A_IW_GRDH_20210314T092655": 2}`
	if tag != want {
		t.Fatalf("tag = %s", tag)
	}
}

func TestComposeAcquisitionIDEmpty(t *testing.T) {
	g := NewNrbToolbox(t.TempDir())
	err := g.ComposeAcquisitionID(AcqIDOptions{Outname: "out.tif", TileID: "33UUU"})
	if !errors.Is(err, ErrEmptyTile) {
		t.Fatal(err)
	}
}
