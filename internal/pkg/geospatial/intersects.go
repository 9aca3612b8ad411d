package geospatial

import (
	"math"

	"github.com/paulmach/orb"
)

const eps = 1e-9

type parts struct {
	points   []orb.Point
	segments [][2]orb.Point
	polygons []orb.Polygon
}

// Intersects reports whether two geometries share at least one point.
// Touching boundaries count as intersecting.
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}

	var pa, pb parts
	pa.add(a)
	pb.add(b)

	for _, sa := range pa.segments {
		for _, sb := range pb.segments {
			if segmentsIntersect(sa[0], sa[1], sb[0], sb[1]) {
				return true
			}
		}
	}
	if pa.covers(pb) || pb.covers(pa) {
		return true
	}
	return false
}

// covers reports whether any point or vertex of o lies on or inside p.
func (p parts) covers(o parts) bool {
	probes := make([]orb.Point, 0, len(o.points)+len(o.segments))
	probes = append(probes, o.points...)
	for _, s := range o.segments {
		probes = append(probes, s[0])
	}

	for _, q := range probes {
		for _, pt := range p.points {
			if pt.Equal(q) {
				return true
			}
		}
		for _, s := range p.segments {
			if onSegment(s[0], s[1], q) {
				return true
			}
		}
		for _, poly := range p.polygons {
			if polygonContains(poly, q) {
				return true
			}
		}
	}
	return false
}

func (p *parts) add(g orb.Geometry) {
	switch v := g.(type) {
	case orb.Point:
		p.points = append(p.points, v)
	case orb.MultiPoint:
		p.points = append(p.points, v...)
	case orb.LineString:
		p.addPath(v)
	case orb.MultiLineString:
		for _, ls := range v {
			p.addPath(ls)
		}
	case orb.Ring:
		p.addPolygon(orb.Polygon{v})
	case orb.Polygon:
		p.addPolygon(v)
	case orb.MultiPolygon:
		for _, poly := range v {
			p.addPolygon(poly)
		}
	case orb.Bound:
		p.addPolygon(v.ToPolygon())
	case orb.Collection:
		for _, c := range v {
			p.add(c)
		}
	}
}

func (p *parts) addPath(pts []orb.Point) {
	if len(pts) == 1 {
		p.points = append(p.points, pts[0])
		return
	}
	for i := 1; i < len(pts); i++ {
		p.segments = append(p.segments, [2]orb.Point{pts[i-1], pts[i]})
	}
}

func (p *parts) addPolygon(poly orb.Polygon) {
	if len(poly) == 0 {
		return
	}
	for _, r := range poly {
		p.addPath(r)
	}
	p.polygons = append(p.polygons, poly)
}

// polygonContains is true for points inside the exterior ring or on any
// boundary, and false for points strictly inside a hole.
func polygonContains(poly orb.Polygon, q orb.Point) bool {
	for _, r := range poly {
		if onRing(r, q) {
			return true
		}
	}
	if !inRing(poly[0], q) {
		return false
	}
	for _, hole := range poly[1:] {
		if inRing(hole, q) {
			return false
		}
	}
	return true
}

func onRing(r orb.Ring, q orb.Point) bool {
	for i := 1; i < len(r); i++ {
		if onSegment(r[i-1], r[i], q) {
			return true
		}
	}
	return false
}

// inRing is the even-odd ray casting test.
func inRing(r orb.Ring, q orb.Point) bool {
	in := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a[1] > q[1]) != (b[1] > q[1]) {
			x := (b[0]-a[0])*(q[1]-a[1])/(b[1]-a[1]) + a[0]
			if q[0] < x {
				in = !in
			}
		}
	}
	return in
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func orientation(a, b, c orb.Point) int {
	v := cross(a, b, c)
	scale := math.Max(1, math.Max(math.Abs(b[0]-a[0])+math.Abs(b[1]-a[1]), math.Abs(c[0]-a[0])+math.Abs(c[1]-a[1])))
	switch {
	case v > eps*scale:
		return 1
	case v < -eps*scale:
		return -1
	}
	return 0
}

func within(a, b, q orb.Point) bool {
	return q[0] >= math.Min(a[0], b[0])-eps && q[0] <= math.Max(a[0], b[0])+eps &&
		q[1] >= math.Min(a[1], b[1])-eps && q[1] <= math.Max(a[1], b[1])+eps
}

func onSegment(a, b, q orb.Point) bool {
	return orientation(a, b, q) == 0 && within(a, b, q)
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	o1 := orientation(p1, p2, q1)
	o2 := orientation(p1, p2, q2)
	o3 := orientation(q1, q2, p1)
	o4 := orientation(q1, q2, p2)

	if o1 != o2 && o3 != o4 && o1*o2 <= 0 && o3*o4 <= 0 {
		return true
	}
	return (o1 == 0 && within(p1, p2, q1)) ||
		(o2 == 0 && within(p1, p2, q2)) ||
		(o3 == 0 && within(q1, q2, p1)) ||
		(o4 == 0 && within(q1, q2, p2))
}
