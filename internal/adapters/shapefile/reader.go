// Package shapefile reads tile footprints from ESRI shapefiles, plain or zipped.
package shapefile

import (
	"context"
	"fmt"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/depowered/culvertvision/internal/core/domain"
)

// source is the subset shared by shp.Reader and shp.ZipReader.
type source interface {
	Next() bool
	Shape() (int, shp.Shape)
	Attribute(n int) string
	Fields() []shp.Field
	Err() error
	Close() error
}

// Reader implements ports.TileShapeReader.
type Reader struct{}

// NewReader creates a new Reader.
func NewReader() *Reader { return &Reader{} }

func open(path string) (source, error) {
	if strings.EqualFold(pathExt(path), ".zip") {
		return shp.OpenZip(path)
	}
	return shp.Open(path)
}

func pathExt(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

// ReadTiles returns one record per polygon feature with the tile name taken
// from tileNameField. Workunit is left for the caller.
func (r *Reader) ReadTiles(ctx context.Context, path, tileNameField string) ([]domain.TileRecord, error) {
	src, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer src.Close()

	field := -1
	for i, f := range src.Fields() {
		if strings.EqualFold(f.String(), tileNameField) {
			field = i
			break
		}
	}
	if field < 0 {
		return nil, &domain.ValidationError{Record: path, Field: tileNameField, Reason: "is not an attribute of the shapefile"}
	}

	var recs []domain.TileRecord
	for src.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, s := src.Shape()
		g, err := toGeometry(s)
		if err != nil {
			return nil, fmt.Errorf("%s feature %d: %w", path, n, err)
		}
		recs = append(recs, domain.TileRecord{
			TileName: strings.TrimSpace(strings.Trim(src.Attribute(field), "\x00")),
			Geometry: g,
		})
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile %s: %w", path, err)
	}
	return recs, nil
}

func toGeometry(s shp.Shape) (orb.Geometry, error) {
	switch v := s.(type) {
	case *shp.Polygon:
		return polygonParts(v.Parts, v.Points), nil
	case *shp.PolygonZ:
		return polygonParts(v.Parts, v.Points), nil
	case *shp.PolygonM:
		return polygonParts(v.Parts, v.Points), nil
	default:
		return nil, fmt.Errorf("unsupported shape type %T", s)
	}
}

// polygonParts groups shapefile rings into polygons. Outer rings are clockwise
// and holes follow the outer ring they belong to.
func polygonParts(parts []int32, points []shp.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if len(ring) == 0 {
			continue
		}
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}
