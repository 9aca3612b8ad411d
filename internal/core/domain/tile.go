package domain

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// RasterBoundary is the extent a product rasterises onto.
type RasterBoundary interface {
	Name() string
	OriginX() float64
	OriginY() float64
	Width(resolution float64) int
	Height(resolution float64) int
}

// TileData describes one output tile: its extent in the tile index CRS and
// the buffered footprint used to query the point-cloud source.
type TileData struct {
	TileName     string  `json:"tile_name"`
	MinX         float64 `json:"minx"`
	MinY         float64 `json:"miny"`
	MaxX         float64 `json:"maxx"`
	MaxY         float64 `json:"maxy"`
	CRS          CRS     `json:"crs"`
	EPTFilterWKT string  `json:"ept_filter_as_wkt"`
}

var _ RasterBoundary = TileData{}

// Name returns the tile name.
func (t TileData) Name() string { return t.TileName }

// EPSG returns the integer EPSG code of the tile CRS.
func (t TileData) EPSG() int { return t.CRS.EPSG }

// OriginX is the raster origin (lower-left x).
func (t TileData) OriginX() float64 { return t.MinX }

// OriginY is the raster origin (lower-left y).
func (t TileData) OriginY() float64 { return t.MinY }

// Width is the number of raster columns needed to cover the tile at the given
// resolution. Partial cells are rounded up so the extent is never truncated.
func (t TileData) Width(resolution float64) int {
	return int(math.Ceil((t.MaxX - t.MinX) / resolution))
}

// Height is the number of raster rows needed to cover the tile.
func (t TileData) Height(resolution float64) int {
	return int(math.Ceil((t.MaxY - t.MinY) / resolution))
}

// Validate enforces the tile data schema.
func (t TileData) Validate() error {
	name := t.TileName
	switch {
	case strings.TrimSpace(name) == "":
		return invalid("", "tile_name", "is required")
	case !finite(t.MinX, t.MinY, t.MaxX, t.MaxY):
		return invalid(name, "bounds", "must be finite")
	case t.MaxX < t.MinX:
		return invalid(name, "maxx", "is less than minx")
	case t.MaxY < t.MinY:
		return invalid(name, "maxy", "is less than miny")
	case t.CRS.IsZero():
		return invalid(name, "crs", "is required")
	case strings.TrimSpace(t.EPTFilterWKT) == "":
		return invalid(name, "ept_filter_as_wkt", "is required")
	}
	return nil
}

// TileRecord is a row of the tile index restricted to the columns the
// pipeline needs.
type TileRecord struct {
	TileName string       `json:"tile_name"`
	Workunit string       `json:"workunit"`
	Geometry orb.Geometry `json:"-"`
}

// Validate enforces the selected-tiles schema.
func (r TileRecord) Validate() error {
	if strings.TrimSpace(r.TileName) == "" {
		return invalid("", "tile_name", "is required")
	}
	if strings.TrimSpace(r.Workunit) == "" {
		return invalid(r.TileName, "workunit", "is required")
	}
	if r.Geometry == nil {
		return invalid(r.TileName, "geometry", "is required")
	}
	return nil
}

// TileIndex is a set of tile records sharing one CRS.
type TileIndex struct {
	CRS     CRS
	Records []TileRecord
}

// Selection is the subset of a tile index that overlaps an AOI.
type Selection struct {
	CRS   CRS
	Tiles []TileRecord
}

// Len returns the number of selected tiles.
func (s Selection) Len() int { return len(s.Tiles) }

// Workunits returns the distinct workunits of the selection in first-seen order.
func (s Selection) Workunits() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range s.Tiles {
		if !seen[t.Workunit] {
			seen[t.Workunit] = true
			out = append(out, t.Workunit)
		}
	}
	return out
}

// ByWorkunit returns the sub-selection belonging to one workunit.
func (s Selection) ByWorkunit(workunit string) Selection {
	sub := Selection{CRS: s.CRS}
	for _, t := range s.Tiles {
		if t.Workunit == workunit {
			sub.Tiles = append(sub.Tiles, t)
		}
	}
	return sub
}

// AOI is an area of interest: one or more geometries in a declared CRS.
type AOI struct {
	CRS        CRS
	Geometries []orb.Geometry
}

// Bound returns the combined bounding box of the AOI geometries.
func (a AOI) Bound() orb.Bound {
	var b orb.Bound
	for i, g := range a.Geometries {
		if i == 0 {
			b = g.Bound()
			continue
		}
		b = b.Union(g.Bound())
	}
	return b
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
