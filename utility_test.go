package nrblib

import (
	"context"
	"strings"
	"sync"
	"testing"
)

func TestMaxExtent(t *testing.T) {
	boxes := []Extent{
		{XMin: 0, YMin: 10, XMax: 100, YMax: 110},
		{XMin: -5, YMin: 20, XMax: 90, YMax: 130},
	}
	ext := MaxExtent(boxes, 0)
	if ext.XMin != -5 || ext.YMin != 10 || ext.XMax != 100 || ext.YMax != 130 {
		t.Fatal(ext)
	}
	ext = MaxExtent(boxes, 1.5)
	if ext.XMin != -6.5 || ext.YMax != 131.5 {
		t.Fatal(ext)
	}
}

func TestExtentIntersects(t *testing.T) {
	a := Extent{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	b := Extent{XMin: 9, YMin: 9, XMax: 20, YMax: 20}
	c := Extent{XMin: 11, YMin: 11, XMax: 20, YMax: 20}
	if !a.Intersects(b) {
		t.Fatal("a/b should intersect")
	}
	if a.Intersects(c) {
		t.Fatal("a/c should not intersect")
	}
}

func TestExtentToWkt(t *testing.T) {
	wkt := Extent{XMin: 1, YMin: 2, XMax: 3, YMax: 4}.ToWkt()
	if !strings.HasPrefix(wkt, "POLYGON((") || !strings.Contains(wkt, "1.000000 2.000000") {
		t.Fatal(wkt)
	}
}

func TestProcessTiles(t *testing.T) {
	tiles := []Tile{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	var (
		mu   sync.Mutex
		done []string
	)
	err := ProcessTiles(context.Background(), tiles, 2, func(tile Tile) error {
		mu.Lock()
		done = append(done, tile.ID)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 3 {
		t.Fatal(done)
	}
}

func TestProcessTilesErrorCarriesTileID(t *testing.T) {
	tiles := []Tile{{ID: "33UUU"}}
	err := ProcessTiles(context.Background(), tiles, 1, func(tile Tile) error {
		return ErrEmptyTile
	})
	if err == nil || !strings.Contains(err.Error(), "33UUU") {
		t.Fatal(err)
	}
}
