package nrblib

import (
	"encoding/json"
	"time"

	"github.com/eoproc/nrblib/utils"

	"github.com/paulmach/orb"
)

type AnyJson = json.RawMessage

// Extent is an axis-aligned bounding box in the coordinates of some EPSG.
type Extent struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

// Tile is one cell of the global MGRS-style tiling grid.
type Tile struct {
	ID     string
	EPSG   int
	Extent Extent
	UTMWkt string // tile footprint in its native UTM CRS
	LLWkt  string // tile footprint in lon/lat
}

// GridAlignment holds the shared pixel-grid origin for a set of tiles, so that
// independently processed tiles snap to one global grid without sub-pixel
// seams at tile boundaries.
type GridAlignment struct {
	XMax float64
	YMin float64
	EPSG int
}

type PolarizationTag string

const (
	PolVV PolarizationTag = "VV"
	PolVH PolarizationTag = "VH"
	PolHH PolarizationTag = "HH"
	PolHV PolarizationTag = "HV"
)

// IsCoPol reports whether the transmit/receive polarization is matched.
func (p PolarizationTag) IsCoPol() bool {
	return p == PolVV || p == PolHH
}

// SourceScene is the read-only record of one acquisition contributing to a
// tile product. Mask paths point at the per-scene rasters produced by the
// geocoding collaborator.
type SourceScene struct {
	ID            string
	Scene         string // path to the source archive
	Sensor        string
	Mode          string
	Product       string
	DataTakeID    string
	Start         time.Time
	Stop          time.Time
	Footprint     orb.Polygon
	Polarizations []PolarizationTag

	ValidityMask      string
	LayoverShadowMask string
}

// CleanName returns the scene filename with archive/container extensions
// stripped, as used in provenance tags.
func (s SourceScene) CleanName() string {
	return utils.StripArchiveExts(s.Scene)
}
