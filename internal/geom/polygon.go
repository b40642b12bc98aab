package geom

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r2"
)

// PointInPolygon checks if p is inside the polygon using ray casting. Edge
// endpoints are ordered by x so that a ray passing exactly through a shared
// vertex is only counted once.
func PointInPolygon(p r2.Vec, vertices []r2.Vec) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}

	inside := false
	prev := vertices[n-1]
	for _, cur := range vertices {
		p1, p2 := cur, prev
		if cur.X > prev.X {
			p1, p2 = prev, cur
		}

		if (cur.X < p.X) == (p.X <= prev.X) &&
			(p.Y-p1.Y)*(p2.X-p1.X) < (p2.Y-p1.Y)*(p.X-p1.X) {
			inside = !inside
		}
		prev = cur
	}
	return inside
}

// PointOnPolygonBorder reports whether p lies on any edge of the polygon.
func PointOnPolygonBorder(p r2.Vec, vertices []r2.Vec) bool {
	if len(vertices) == 0 {
		return false
	}
	prev := vertices[len(vertices)-1]
	for _, cur := range vertices {
		if PointOnSegment(prev, cur, p) {
			return true
		}
		prev = cur
	}
	return false
}

// PointInCircle reports whether p is strictly inside the circle.
func PointInCircle(p, center r2.Vec, radius float64) bool {
	return Distance2D(p, center) < radius
}

// Bounds returns the axis aligned bounding box of the points.
func Bounds(points []r2.Vec) (lo, hi r2.Vec) {
	if len(points) == 0 {
		return
	}
	lo, hi = points[0], points[0]
	for _, v := range points[1:] {
		lo.X = math.Min(lo.X, v.X)
		lo.Y = math.Min(lo.Y, v.Y)
		hi.X = math.Max(hi.X, v.X)
		hi.Y = math.Max(hi.Y, v.Y)
	}
	return
}

// IsCounterClockwise reports the winding of the polygon in the X/Y plane
// using orb's signed area.
func IsCounterClockwise(vertices []r2.Vec) bool {
	ring := make(orb.Ring, len(vertices))
	for i, v := range vertices {
		ring[i] = orb.Point{v.X, v.Y}
	}
	return ring.Orientation() == orb.CCW
}

// OffsetPolygon moves every edge of the polygon along its normal by d and
// returns the new corner points. Positive d grows the polygon and negative
// d shrinks it, whatever the winding of the input.
func OffsetPolygon(vertices []r2.Vec, d float64) []r2.Vec {
	n := len(vertices)
	out := make([]r2.Vec, n)
	if n < 3 {
		copy(out, vertices)
		return out
	}

	// For a counter-clockwise ring the outward normal of edge (a, b) is the
	// direction vector turned clockwise.
	sign := 1.0
	if !IsCounterClockwise(vertices) {
		sign = -1
	}
	normal := func(a, b r2.Vec) r2.Vec {
		e := r2.Sub(b, a)
		if r2.Norm(e) < Zeroish {
			return r2.Vec{}
		}
		e = r2.Unit(e)
		return r2.Scale(sign, r2.Vec{X: e.Y, Y: -e.X})
	}

	for i := 0; i < n; i++ {
		prev := vertices[(i+n-1)%n]
		cur := vertices[i]
		next := vertices[(i+1)%n]

		n1 := r2.Scale(d, normal(prev, cur))
		n2 := r2.Scale(d, normal(cur, next))

		a1, a2 := r2.Add(prev, n1), r2.Add(cur, n1)
		b1, b2 := r2.Add(cur, n2), r2.Add(next, n2)

		if p, ok := LineLineIntersection(a1, a2, b1, b2, false); ok {
			out[i] = p
			continue
		}
		// Collinear neighbours, the corner moves straight out.
		out[i] = r2.Add(cur, n2)
	}
	return out
}

// PolygonFromCircle returns a regular polygon with the given number of
// sides that fully encloses the circle.
func PolygonFromCircle(center r2.Vec, radius float64, sides int) []r2.Vec {
	out := make([]r2.Vec, sides)
	r := radius / math.Cos(math.Pi/float64(sides))
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(sides)
		out[i] = r2.Vec{X: center.X + r*math.Cos(a), Y: center.Y + r*math.Sin(a)}
	}
	return out
}
