// Package geom holds the planar and 3D geometry used to classify positions
// against geozones and to find where a flight path crosses their borders.
//
// Coordinates are local Cartesian metres with X pointing north, Y pointing
// east and Z up. Courses and bearings are degrees clockwise from north. All
// arithmetic is done in float64; intersection solves at long range lose
// too much precision in float32.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// BorderTolerance is the distance within which a point is considered to lie
// on a polygon edge.
const BorderTolerance = 0.01

// Zeroish guards divisions and parallel tests.
const Zeroish = 1e-9

// Flat drops the altitude of p.
func Flat(p r3.Vec) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Lift returns p at altitude z.
func Lift(p r2.Vec, z float64) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: z}
}

// Distance2D returns the horizontal distance between a and b.
func Distance2D(a, b r2.Vec) float64 {
	return r2.Norm(r2.Sub(b, a))
}

// WrapDegrees maps a into [0, 360).
func WrapDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// AngleDiff returns the signed smallest difference a-b in (-180, 180].
func AngleDiff(a, b float64) float64 {
	d := WrapDegrees(a - b)
	if d > 180 {
		d -= 360
	}
	return d
}

// Bearing returns the course in degrees to fly from 'from' to 'to'.
func Bearing(from, to r2.Vec) float64 {
	d := r2.Sub(to, from)
	return WrapDegrees(math.Atan2(d.Y, d.X) * 180 / math.Pi)
}

// CourseVector returns the unit vector for a course in degrees.
func CourseVector(course float64) r2.Vec {
	rad := course * math.Pi / 180
	return r2.Vec{X: math.Cos(rad), Y: math.Sin(rad)}
}

// FarAwayTarget returns the point at the given distance from pos along
// course. The altitude of pos is kept.
func FarAwayTarget(pos r3.Vec, course, distance float64) r3.Vec {
	d := r2.Scale(distance, CourseVector(course))
	return r3.Vec{X: pos.X + d.X, Y: pos.Y + d.Y, Z: pos.Z}
}

// IsPointRightOfLine reports whether p lies to the right of the directed
// line from start to end, looking along it.
func IsPointRightOfLine(start, end, p r2.Vec) bool {
	return r2.Cross(r2.Sub(end, start), r2.Sub(p, start)) > 0
}

// AngleFrom3Points returns the angle in degrees at vertex a of the triangle
// (a, b, c).
func AngleFrom3Points(a, b, c r2.Vec) float64 {
	ab := r2.Sub(b, a)
	ac := r2.Sub(c, a)
	nab, nac := r2.Norm(ab), r2.Norm(ac)
	if nab < Zeroish || nac < Zeroish {
		return 0
	}
	cos := r2.Dot(ab, ac) / (nab * nac)
	return math.Acos(math.Max(-1, math.Min(1, cos))) * 180 / math.Pi
}

// ReflectCourse mirrors course about a boundary whose tangent direction at
// the point of contact is given. The result points back away from the
// boundary.
func ReflectCourse(course float64, tangent r2.Vec) float64 {
	if r2.Norm(tangent) < Zeroish {
		return WrapDegrees(course + 180)
	}
	t := r2.Unit(tangent)
	d := CourseVector(course)
	// Component along the tangent is kept, the normal component flips.
	r := r2.Sub(r2.Scale(2*r2.Dot(d, t), t), d)
	return WrapDegrees(math.Atan2(r.Y, r.X) * 180 / math.Pi)
}

// NearestPointOnSegment returns the point on segment ab closest to p.
func NearestPointOnSegment(a, b, p r2.Vec) r2.Vec {
	ab := r2.Sub(b, a)
	l2 := r2.Dot(ab, ab)
	if l2 < Zeroish {
		return a
	}
	t := r2.Dot(r2.Sub(p, a), ab) / l2
	t = math.Max(0, math.Min(1, t))
	return r2.Add(a, r2.Scale(t, ab))
}

// PointAlongSegment returns the point at distance d from a towards b.
func PointAlongSegment(a, b r2.Vec, d float64) r2.Vec {
	ab := r2.Sub(b, a)
	l := r2.Norm(ab)
	if l < Zeroish {
		return a
	}
	return r2.Add(a, r2.Scale(d/l, ab))
}

// LineLineIntersection intersects the line through (p1, p2) with the line
// through (p3, p4). With segment set, the intersection must fall within
// both segments. The boolean result is false for parallel lines.
func LineLineIntersection(p1, p2, p3, p4 r2.Vec, segment bool) (r2.Vec, bool) {
	d1 := r2.Sub(p2, p1)
	d2 := r2.Sub(p4, p3)
	denom := r2.Cross(d1, d2)
	if math.Abs(denom) < Zeroish {
		return r2.Vec{}, false
	}
	w := r2.Sub(p3, p1)
	t := r2.Cross(w, d2) / denom
	u := r2.Cross(w, d1) / denom
	if segment && (t < -Zeroish || t > 1+Zeroish || u < -Zeroish || u > 1+Zeroish) {
		return r2.Vec{}, false
	}
	return r2.Add(p1, r2.Scale(t, d1)), true
}

// roundCm rounds a distance in metres to whole centimetres.
func roundCm(d float64) float64 {
	return math.Round(d * 100)
}

// PointOnSegment reports whether p lies on segment ab within
// BorderTolerance. Distances are rounded to centimetres so that points
// exactly on a vertex or edge compare equal.
func PointOnSegment(a, b, p r2.Vec) bool {
	ab := roundCm(Distance2D(a, b))
	ap := roundCm(Distance2D(a, p))
	bp := roundCm(Distance2D(b, p))
	return math.Abs(ab-(ap+bp)) <= BorderTolerance*100
}

// PointOnSegment3D is PointOnSegment for 3D points.
func PointOnSegment3D(a, b, p r3.Vec) bool {
	ab := roundCm(r3.Norm(r3.Sub(b, a)))
	ap := roundCm(r3.Norm(r3.Sub(p, a)))
	bp := roundCm(r3.Norm(r3.Sub(p, b)))
	return math.Abs(ab-(ap+bp)) <= BorderTolerance*100
}
