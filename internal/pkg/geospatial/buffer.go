package geospatial

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultMitreLimit matches the GEOS default: a mitre corner may extend at
// most five buffer distances from its vertex before it is bevelled.
const DefaultMitreLimit = 5.0

// ErrDegenerateRing is returned for rings with fewer than three distinct vertices.
var ErrDegenerateRing = errors.New("ring has fewer than three distinct vertices")

// MitreBuffer grows polygonal geometry outward by dist using mitre joins.
// Holes shrink by the same distance. Only Polygon, MultiPolygon and Bound are
// accepted since tile footprints are always areal.
//
// The result is the union of the input, a band of width dist on both sides of
// every edge, and a mitre (or bevel) wedge at every convex vertex. Taking the
// union keeps the output simple where offset edges would otherwise cross, as
// they do in notches narrower than twice the distance.
func MitreBuffer(g orb.Geometry, dist, mitreLimit float64) (orb.Geometry, error) {
	if dist < 0 || math.IsNaN(dist) || math.IsInf(dist, 0) {
		return nil, fmt.Errorf("buffer distance %v must be a finite non-negative number", dist)
	}
	if mitreLimit < 1 {
		mitreLimit = DefaultMitreLimit
	}

	var polys []orb.Polygon
	switch v := g.(type) {
	case orb.Bound:
		polys = []orb.Polygon{v.ToPolygon()}
	case orb.Polygon:
		polys = []orb.Polygon{v}
	case orb.MultiPolygon:
		polys = v
	default:
		return nil, fmt.Errorf("buffer: unsupported geometry %T", g)
	}

	var pieces []geom.Polygon
	normalized := make(orb.MultiPolygon, 0, len(polys))
	for i, p := range polys {
		np, err := normalize(p)
		if err != nil {
			if len(polys) > 1 {
				return nil, fmt.Errorf("polygon %d: %w", i, err)
			}
			return nil, err
		}
		normalized = append(normalized, np)
		pieces = append(pieces, toGeom(np))
		if dist > 0 {
			for _, r := range np {
				pieces = append(pieces, ringPieces(r, dist, mitreLimit)...)
			}
		}
	}

	if dist == 0 {
		if _, ok := g.(orb.MultiPolygon); ok {
			return normalized, nil
		}
		return normalized[0], nil
	}

	out := fromGeom(union(pieces))
	if len(out) == 0 {
		return nil, ErrDegenerateRing
	}
	if len(out) == 1 {
		if _, ok := g.(orb.MultiPolygon); !ok {
			return out[0], nil
		}
	}
	return out, nil
}

// normalize orients the exterior counter-clockwise and holes clockwise, and
// drops repeated vertices.
func normalize(p orb.Polygon) (orb.Polygon, error) {
	if len(p) == 0 {
		return nil, ErrDegenerateRing
	}
	out := make(orb.Polygon, 0, len(p))
	for i, r := range p {
		pts := distinct(r)
		if len(pts) < 3 {
			return nil, fmt.Errorf("ring %d: %w", i, ErrDegenerateRing)
		}
		ring := closed(pts)
		want := orb.CCW
		if i > 0 {
			want = orb.CW
		}
		if ring.Orientation() != want {
			ring.Reverse()
		}
		out = append(out, ring)
	}
	return out, nil
}

// ringPieces covers everything within dist of the ring's edges plus the
// corner wedges. The ring must be oriented so its right side faces away from
// the polygon interior.
func ringPieces(r orb.Ring, dist, limit float64) []geom.Polygon {
	pts := r[:len(r)-1]
	n := len(pts)
	out := make([]geom.Polygon, 0, 2*n)

	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		nm := rightNormal(a, b)
		out = append(out, toGeom(orb.Polygon{closed([]orb.Point{
			offset(a, nm, -dist), offset(b, nm, -dist), offset(b, nm, dist), offset(a, nm, dist),
		})}))
	}

	for i := 0; i < n; i++ {
		prev, cur, next := pts[(i-1+n)%n], pts[i], pts[(i+1)%n]
		// only left turns open a gap between the outer bands
		if orientation(prev, cur, next) <= 0 {
			continue
		}
		n1 := rightNormal(prev, cur)
		n2 := rightNormal(cur, next)
		mx, my := n1[0]+n2[0], n1[1]+n2[1]
		ml := math.Hypot(mx, my)
		if ml < 1e-12 {
			continue
		}
		mx, my = mx/ml, my/ml
		cosHalf := mx*n1[0] + my*n1[1]

		p1, p2 := offset(cur, n1, dist), offset(cur, n2, dist)
		if 1/cosHalf > limit {
			out = append(out, toGeom(orb.Polygon{closed([]orb.Point{cur, p1, p2})}))
			continue
		}
		d := dist / cosHalf
		tip := orb.Point{cur[0] + mx*d, cur[1] + my*d}
		out = append(out, toGeom(orb.Polygon{closed([]orb.Point{cur, p1, tip, p2})}))
	}
	return out
}

// union merges pieces pairwise so each clipping call stays small.
func union(ps []geom.Polygon) geom.Polygon {
	if len(ps) == 0 {
		return nil
	}
	for len(ps) > 1 {
		next := make([]geom.Polygon, 0, (len(ps)+1)/2)
		for i := 0; i+1 < len(ps); i += 2 {
			next = append(next, flatten(ps[i].Union(ps[i+1])))
		}
		if len(ps)%2 == 1 {
			next = append(next, ps[len(ps)-1])
		}
		ps = next
	}
	return ps[0]
}

func flatten(p geom.Polygonal) geom.Polygon {
	var out geom.Polygon
	for _, part := range p.Polygons() {
		out = append(out, part...)
	}
	return out
}

func toGeom(p orb.Polygon) geom.Polygon {
	out := make(geom.Polygon, len(p))
	for i, r := range p {
		path := make(geom.Path, 0, len(r))
		for _, pt := range r[:len(r)-1] {
			path = append(path, geom.Point{X: pt[0], Y: pt[1]})
		}
		out[i] = path
	}
	return out
}

// fromGeom turns clipped contours back into polygons. Contours carry no
// exterior/hole flag, so nesting depth decides: even depth is an exterior,
// odd depth a hole of the smallest exterior around it.
func fromGeom(p geom.Polygon) orb.MultiPolygon {
	rings := make([]orb.Ring, 0, len(p))
	for _, path := range p {
		pts := make([]orb.Point, 0, len(path))
		for _, pt := range path {
			pts = append(pts, orb.Point{pt.X, pt.Y})
		}
		pts = dropCollinear(distinct(pts))
		if len(pts) < 3 {
			continue
		}
		ring := closed(pts)
		if math.Abs(planar.Area(ring)) < eps {
			continue
		}
		rings = append(rings, ring)
	}

	areas := make([]float64, len(rings))
	for i, r := range rings {
		areas[i] = math.Abs(planar.Area(r))
	}
	depth := make([]int, len(rings))
	for i := range rings {
		for j := range rings {
			if i != j && ringInside(rings[i], rings[j]) {
				depth[i]++
			}
		}
	}

	var exteriors []int
	for i := range rings {
		if depth[i]%2 == 0 {
			exteriors = append(exteriors, i)
		}
	}
	sort.SliceStable(exteriors, func(a, b int) bool { return areas[exteriors[a]] > areas[exteriors[b]] })

	out := make(orb.MultiPolygon, len(exteriors))
	slot := make(map[int]int, len(exteriors))
	for k, i := range exteriors {
		r := rings[i]
		if r.Orientation() != orb.CCW {
			r.Reverse()
		}
		out[k] = orb.Polygon{r}
		slot[i] = k
	}
	for i := range rings {
		if depth[i]%2 == 0 {
			continue
		}
		owner := -1
		for _, e := range exteriors {
			if depth[e] == depth[i]-1 && ringInside(rings[i], rings[e]) &&
				(owner < 0 || areas[e] < areas[owner]) {
				owner = e
			}
		}
		if owner < 0 {
			continue
		}
		r := rings[i]
		if r.Orientation() != orb.CW {
			r.Reverse()
		}
		out[slot[owner]] = append(out[slot[owner]], r)
	}
	return out
}

// ringInside reports whether inner lies inside outer, judged by the first
// vertex of inner that is not on outer's boundary.
func ringInside(inner, outer orb.Ring) bool {
	for _, q := range inner[:len(inner)-1] {
		if onRing(outer, q) {
			continue
		}
		return inRing(outer, q)
	}
	return false
}

// dropCollinear removes vertices lying on the line through their neighbours.
func dropCollinear(pts []orb.Point) []orb.Point {
	for changed := true; changed && len(pts) >= 3; {
		changed = false
		n := len(pts)
		out := make([]orb.Point, 0, n)
		for i := 0; i < n; i++ {
			prev, next := pts[(i-1+n)%n], pts[(i+1)%n]
			if len(out) > 0 {
				prev = out[len(out)-1]
			}
			if orientation(prev, pts[i], next) == 0 {
				changed = true
				continue
			}
			out = append(out, pts[i])
		}
		pts = out
	}
	return pts
}

// rightNormal is the unit normal to the right of the edge a->b.
func rightNormal(a, b orb.Point) orb.Point {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l := math.Hypot(dx, dy)
	return orb.Point{dy / l, -dx / l}
}

func offset(p, normal orb.Point, d float64) orb.Point {
	return orb.Point{p[0] + normal[0]*d, p[1] + normal[1]*d}
}

// distinct drops the closing point and consecutive duplicates.
func distinct(r []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(r))
	for _, p := range r {
		if len(out) > 0 && out[len(out)-1].Equal(p) {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0].Equal(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func closed(pts []orb.Point) orb.Ring {
	r := make(orb.Ring, len(pts), len(pts)+1)
	copy(r, pts)
	return append(r, pts[0])
}
