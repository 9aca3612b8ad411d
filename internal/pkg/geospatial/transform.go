package geospatial

import (
	"fmt"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
)

// Transformer reprojects orb geometries between two EPSG codes.
type Transformer struct {
	From, To int
	fn       proj.Transformer
}

// NewTransformer builds a transformer. Identical codes yield an identity
// transform that never touches the projection library.
func NewTransformer(from, to int) (*Transformer, error) {
	t := &Transformer{From: from, To: to}
	if from == to {
		return t, nil
	}
	src, err := spatialReference(from)
	if err != nil {
		return nil, err
	}
	dst, err := spatialReference(to)
	if err != nil {
		return nil, err
	}
	fn, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("transform EPSG:%d -> EPSG:%d: %w", from, to, err)
	}
	t.fn = fn
	return t, nil
}

// Identity reports whether the transform is a no-op.
func (t *Transformer) Identity() bool {
	return t.fn == nil
}

// Point reprojects a single coordinate.
func (t *Transformer) Point(p orb.Point) (orb.Point, error) {
	if t.fn == nil {
		return p, nil
	}
	x, y, err := t.fn(p[0], p[1])
	if err != nil {
		return orb.Point{}, fmt.Errorf("reproject (%g, %g): %w", p[0], p[1], err)
	}
	return orb.Point{x, y}, nil
}

// Geometry returns a reprojected copy of g. The input is not modified.
func (t *Transformer) Geometry(g orb.Geometry) (orb.Geometry, error) {
	if t.fn == nil {
		return orb.Clone(g), nil
	}

	switch v := g.(type) {
	case orb.Point:
		return t.Point(v)
	case orb.MultiPoint:
		out, err := t.points(v)
		return orb.MultiPoint(out), err
	case orb.LineString:
		out, err := t.points(v)
		return orb.LineString(out), err
	case orb.Ring:
		out, err := t.points(v)
		return orb.Ring(out), err
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(v))
		for i, ls := range v {
			pts, err := t.points(ls)
			if err != nil {
				return nil, err
			}
			out[i] = pts
		}
		return out, nil
	case orb.Polygon:
		return t.polygon(v)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, p := range v {
			pp, err := t.polygon(p)
			if err != nil {
				return nil, err
			}
			out[i] = pp
		}
		return out, nil
	case orb.Bound:
		return t.polygon(v.ToPolygon())
	case orb.Collection:
		out := make(orb.Collection, len(v))
		for i, c := range v {
			cc, err := t.Geometry(c)
			if err != nil {
				return nil, err
			}
			out[i] = cc
		}
		return out, nil
	}
	return nil, fmt.Errorf("reproject: unsupported geometry %T", g)
}

func (t *Transformer) polygon(p orb.Polygon) (orb.Polygon, error) {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		pts, err := t.points(r)
		if err != nil {
			return nil, err
		}
		out[i] = pts
	}
	return out, nil
}

func (t *Transformer) points(in []orb.Point) ([]orb.Point, error) {
	out := make([]orb.Point, len(in))
	for i, p := range in {
		q, err := t.Point(p)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}
