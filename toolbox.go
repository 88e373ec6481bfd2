package nrblib

import (
	"sync"

	"github.com/eoproc/nrblib/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// NrbToolbox bundles the spatial reference cache and workspace settings shared
// by all raster derivation and mask fusion operations. It is the explicit
// context object handed to each processing step; lifecycle is owned by the
// job orchestrator.
type NrbToolbox struct {
	refMap map[int]gdal.SpatialReference
	rLock  sync.Mutex
	tmpDir string
	logTag string
}

// memory objects created by the GDAL C library need an explicit Destroy
type destroyable interface {
	Destroy()
}

var (
	emptyGeometry = gdal.Geometry{}
)

// NewNrbToolbox initializes the toolbox. tmpDir is an optional scratch
// directory for intermediate VRT/GeoJSON artifacts (default: current dir).
func NewNrbToolbox(tmpDir ...string) *NrbToolbox {
	g := &NrbToolbox{
		refMap: map[int]gdal.SpatialReference{},
		logTag: "NrbToolbox:",
	}
	if len(tmpDir) > 0 && tmpDir[0] != "" {
		g.tmpDir = tmpDir[0]
	}
	return g
}

// spatial references are cached per srid and reused, so never destroyed here
func (g *NrbToolbox) getSridRef(srid int) (ref gdal.SpatialReference, err error) {
	g.rLock.Lock()
	defer g.rLock.Unlock()
	ref, ok := g.refMap[srid]
	if ok {
		return
	}
	ref = gdal.CreateSpatialReference("")
	if err = ref.FromEPSG(srid); err != nil {
		log.Error(g.logTag+"set ref srid failed", zap.Int("srid", srid), zap.Error(err))
		ref.Destroy()
		return
	}
	// keep the traditional (lon,lat) data axis order regardless of what the
	// CRS authority defines, otherwise transformed footprints flip axes
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	g.refMap[srid] = ref
	return
}

func (g *NrbToolbox) parseWKT(wkt string, ref gdal.SpatialReference) (ret gdal.Geometry, err error) {
	ret, err = gdal.CreateFromWKT(wkt, ref)
	if err != nil {
		log.Error(g.logTag+"parse wkt failed", zap.Error(err))
		err = ErrInvalidWKT
	}
	return
}

// TransformWkt reprojects a WKT geometry between spatial reference systems.
func (g *NrbToolbox) TransformWkt(wkt string, srid, tSrid int) (ret string, err error) {
	if tSrid == srid {
		ret = wkt
		return
	}
	ref, err := g.getSridRef(srid)
	if err != nil {
		return
	}
	tRef, err := g.getSridRef(tSrid)
	if err != nil {
		return
	}
	geo, err := g.parseWKT(wkt, ref)
	if err != nil {
		return
	}
	defer geo.Destroy()
	if err = geo.TransformTo(tRef); err != nil {
		log.Error(g.logTag+"geo transform failed", zap.Error(err))
		return
	}
	ret, err = geo.ToWKT()
	return
}

// GetWktExtent returns the envelope of a WKT geometry.
func (g *NrbToolbox) GetWktExtent(wkt string, srid int) (ext Extent, err error) {
	ref, err := g.getSridRef(srid)
	if err != nil {
		return
	}
	geo, err := g.parseWKT(wkt, ref)
	if err != nil {
		return
	}
	defer geo.Destroy()
	envelop := geo.Envelope()
	ext = Extent{
		XMin: envelop.MinX(),
		YMin: envelop.MinY(),
		XMax: envelop.MaxX(),
		YMax: envelop.MaxY(),
	}
	return
}
