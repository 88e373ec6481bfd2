package nrblib

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/eoproc/nrblib/log"
	"github.com/eoproc/nrblib/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// AOI is an area of interest given as one or more WKT geometries in a single
// spatial reference system.
type AOI struct {
	Wkts []string
	SRID int
}

var (
	tdRe  = regexp.MustCompile(`(?s)<td[^>]*>(.*?)</td>`)
	tagRe = regexp.MustCompile(`<[^>]+>`)
)

// descriptionToDict converts the HTML description field of a tiling grid KML
// feature into a map with keys TILE_ID, EPSG, MGRS_REF, UTM_WKT and LL_WKT.
func descriptionToDict(desc string) map[string]string {
	var cells []string
	for _, m := range tdRe.FindAllStringSubmatch(desc, -1) {
		txt := strings.TrimSpace(tagRe.ReplaceAllString(m[1], ""))
		if txt != "" {
			cells = append(cells, txt)
		}
	}
	attrs := make(map[string]string, len(cells)/2)
	for i := 0; i+1 < len(cells); i += 2 {
		attrs[cells[i]] = cells[i+1]
	}
	return attrs
}

func (g *NrbToolbox) tileFromFeature(name, desc string) (tile Tile, err error) {
	attrs := descriptionToDict(desc)
	tile = Tile{
		ID:     name,
		EPSG:   utils.StrToInt(attrs["EPSG"]),
		UTMWkt: attrs["UTM_WKT"],
		LLWkt:  attrs["LL_WKT"],
	}
	if tile.EPSG == 0 || tile.UTMWkt == "" {
		err = fmt.Errorf("tile %s: %w", name, ErrInvalidWKT)
		return
	}
	tile.Extent, err = g.GetWktExtent(tile.UTMWkt, tile.EPSG)
	return
}

// TilesFromAOI returns the tiles of the global tiling grid whose footprint
// intersects any feature of the AOI, deduplicated and sorted by tile id. If
// allowedEPSG is given, tiles with a native EPSG outside the set are dropped.
func (g *NrbToolbox) TilesFromAOI(kml string, aoi AOI, allowedEPSG ...int) (tiles []Tile, err error) {
	if len(aoi.Wkts) == 0 {
		err = ErrNoAOI
		return
	}
	srid := aoi.SRID
	if srid == 0 {
		srid = UNIVERSAL_SRID
	}
	ref, err := g.getSridRef(srid)
	if err != nil {
		return
	}
	llRef, err := g.getSridRef(UNIVERSAL_SRID)
	if err != nil {
		return
	}
	driver := gdal.OGRDriverByName(KML_DRIVER_NAME)
	ds, ok := driver.Open(kml, 0)
	if !ok {
		err = ErrGdalDriverOpen
		return
	}
	defer ds.Destroy()
	var (
		layer   = ds.LayerByIndex(0)
		def     = layer.Definition()
		nameIdx = def.FieldIndex(KML_FIELD_NAME)
		descIdx = def.FieldIndex(KML_FIELD_DESC)
		seen    = map[string]Tile{}
		feature *gdal.Feature
		geo     gdal.Geometry
		tile    Tile
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	epsgOk := func(epsg int) bool {
		if len(allowedEPSG) == 0 {
			return true
		}
		for _, e := range allowedEPSG {
			if e == epsg {
				return true
			}
		}
		return false
	}
	for _, wkt := range aoi.Wkts {
		if geo, err = g.parseWKT(wkt, ref); err != nil {
			return
		}
		gc = append(gc, geo)
		if srid != UNIVERSAL_SRID {
			// the tiling grid KML is in lon/lat
			if err = geo.TransformTo(llRef); err != nil {
				log.Error(g.logTag+"aoi transform failed", zap.Error(err))
				return
			}
		}
		layer.SetSpatialFilter(geo)
		layer.ResetReading()
		for {
			if feature = layer.NextFeature(); feature == nil {
				break
			}
			gc = append(gc, *feature)
			name := feature.FieldAsString(nameIdx)
			if _, dup := seen[name]; dup {
				continue
			}
			if tile, err = g.tileFromFeature(name, feature.FieldAsString(descIdx)); err != nil {
				return
			}
			if !epsgOk(tile.EPSG) {
				continue
			}
			seen[name] = tile
		}
	}
	layer.SetSpatialFilter(emptyGeometry)
	tiles = make([]Tile, 0, len(seen))
	for _, t := range seen {
		tiles = append(tiles, t)
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].ID < tiles[j].ID })
	log.Info(g.logTag+"resolved tiles for aoi", zap.Int("aoiFeatures", len(aoi.Wkts)), zap.Int("tiles", len(tiles)))
	return
}

// ExtractTile returns a single tile of the tiling grid by id.
func (g *NrbToolbox) ExtractTile(kml, tileID string) (tile Tile, err error) {
	driver := gdal.OGRDriverByName(KML_DRIVER_NAME)
	ds, ok := driver.Open(kml, 0)
	if !ok {
		err = ErrGdalDriverOpen
		return
	}
	defer ds.Destroy()
	var (
		layer   = ds.LayerByIndex(0)
		def     = layer.Definition()
		nameIdx = def.FieldIndex(KML_FIELD_NAME)
		descIdx = def.FieldIndex(KML_FIELD_DESC)
		feature *gdal.Feature
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		if feature.FieldAsString(nameIdx) == tileID {
			return g.tileFromFeature(tileID, feature.FieldAsString(descIdx))
		}
	}
	err = fmt.Errorf("tile %s: %w", tileID, ErrTileNotFound)
	return
}

// ResolveGrid computes the grid alignment origin shared by all tiles of one
// processing job: the maximum tile xmax shifted by half a pixel inward, and
// the minimum tile ymin shifted likewise. All tiles must share one EPSG.
func ResolveGrid(tiles []Tile, spacing float64) (ga GridAlignment, err error) {
	if len(tiles) == 0 {
		err = ErrNoAOI
		return
	}
	epsgSet := map[int]struct{}{}
	for i, t := range tiles {
		epsgSet[t.EPSG] = struct{}{}
		if i == 0 {
			ga.XMax = t.Extent.XMax
			ga.YMin = t.Extent.YMin
			continue
		}
		if t.Extent.XMax > ga.XMax {
			ga.XMax = t.Extent.XMax
		}
		if t.Extent.YMin < ga.YMin {
			ga.YMin = t.Extent.YMin
		}
	}
	if len(epsgSet) != 1 {
		epsgs := make([]int, 0, len(epsgSet))
		for e := range epsgSet {
			epsgs = append(epsgs, e)
		}
		sort.Ints(epsgs)
		err = fmt.Errorf("%w: %v", ErrMixedEPSG, epsgs)
		return
	}
	ga.EPSG = tiles[0].EPSG
	ga.XMax -= spacing / 2
	ga.YMin += spacing / 2
	return
}
