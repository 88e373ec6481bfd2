package nrblib

import (
	"fmt"

	"github.com/paulmach/orb"
)

func PointsToWkt(x1, x2, y1, y2 float64) string {
	return fmt.Sprintf("POLYGON((%[1]f %[3]f, %[1]f %[4]f, %[2]f %[4]f, %[2]f %[3]f, %[1]f %[3]f))", x1, x2, y1, y2)
}

func (e Extent) ToWkt() string {
	return PointsToWkt(e.XMin, e.XMax, e.YMin, e.YMax)
}

// Bounds returns [xmin ymin xmax ymax], the argument order of gdalbuildvrt -te.
func (e Extent) Bounds() [4]float64 {
	return [4]float64{e.XMin, e.YMin, e.XMax, e.YMax}
}

func (e Extent) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{e.XMin, e.YMin}, Max: orb.Point{e.XMax, e.YMax}}
}

func (e Extent) Intersects(o Extent) bool {
	return e.Bound().Intersects(o.Bound())
}

func (e Extent) Buffer(dist float64) Extent {
	return Extent{
		XMin: e.XMin - dist,
		YMin: e.YMin - dist,
		XMax: e.XMax + dist,
		YMax: e.YMax + dist,
	}
}

// MaxExtent reduces a set of extents to their common envelope, optionally
// buffered.
func MaxExtent(boxes []Extent, buffer float64) (ext Extent) {
	for i, b := range boxes {
		if i == 0 {
			ext = b
			continue
		}
		if b.XMin < ext.XMin {
			ext.XMin = b.XMin
		}
		if b.YMin < ext.YMin {
			ext.YMin = b.YMin
		}
		if b.XMax > ext.XMax {
			ext.XMax = b.XMax
		}
		if b.YMax > ext.YMax {
			ext.YMax = b.YMax
		}
	}
	if buffer != 0 {
		ext = ext.Buffer(buffer)
	}
	return
}
