package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Hit is the nearest crossing of a segment with a solid.
type Hit struct {
	Point    r3.Vec
	Distance float64 // from the segment start
}

// RayTriangleIntersection intersects the segment start-end with a triangle
// using the Möller–Trumbore algorithm.
func RayTriangleIntersection(start, end r3.Vec, tri [3]r3.Vec) (r3.Vec, bool) {
	dir := r3.Sub(end, start)
	e1 := r3.Sub(tri[1], tri[0])
	e2 := r3.Sub(tri[2], tri[0])

	h := r3.Cross(dir, e2)
	a := r3.Dot(e1, h)
	if math.Abs(a) < Zeroish {
		return r3.Vec{}, false
	}

	f := 1 / a
	s := r3.Sub(start, tri[0])
	u := f * r3.Dot(s, h)
	if u < 0 || u > 1 {
		return r3.Vec{}, false
	}

	q := r3.Cross(s, e1)
	v := f * r3.Dot(dir, q)
	if v < 0 || u+v > 1 {
		return r3.Vec{}, false
	}

	t := f * r3.Dot(e2, q)
	if t < 0 || t > 1 {
		return r3.Vec{}, false
	}
	return r3.Add(start, r3.Scale(t, dir)), true
}

// planeCrossing returns where the segment crosses the horizontal plane at z.
func planeCrossing(start, end r3.Vec, z float64) (r3.Vec, bool) {
	dz := end.Z - start.Z
	if math.Abs(dz) < Zeroish {
		return r3.Vec{}, false
	}
	t := (z - start.Z) / dz
	if t < 0 || t > 1 {
		return r3.Vec{}, false
	}
	return r3.Add(start, r3.Scale(t, r3.Sub(end, start))), true
}

func (h *Hit) offer(start, p r3.Vec) {
	d := r3.Norm(r3.Sub(p, start))
	if d < h.Distance {
		h.Point = p
		h.Distance = d
	}
}

// SegmentPolygonPrismIntersection finds the crossing of the segment
// nearest to start with the walls of a vertical prism over the polygon,
// spanning minZ to maxZ. Top and bottom caps are tested when the start is
// above or below the prism, or for inclusive prisms which can be left
// through a cap.
func SegmentPolygonPrismIntersection(start, end r3.Vec, vertices []r2.Vec, minZ, maxZ float64, inclusive bool) (Hit, bool) {
	hit := Hit{Distance: math.Inf(1)}
	if len(vertices) < 3 {
		return hit, false
	}

	prev := vertices[len(vertices)-1]
	for _, cur := range vertices {
		p1 := Lift(prev, minZ)
		p2 := Lift(prev, maxZ)
		p3 := Lift(cur, minZ)
		p4 := Lift(cur, maxZ)

		if p, ok := RayTriangleIntersection(start, end, [3]r3.Vec{p1, p2, p3}); ok {
			hit.offer(start, p)
		}
		if p, ok := RayTriangleIntersection(start, end, [3]r3.Vec{p3, p4, p2}); ok {
			hit.offer(start, p)
		}
		prev = cur
	}

	if inclusive || start.Z < minZ || start.Z > maxZ {
		for _, z := range []float64{minZ, maxZ} {
			p, ok := planeCrossing(start, end, z)
			if !ok {
				continue
			}
			if PointInPolygon(Flat(p), vertices) || PointOnPolygonBorder(Flat(p), vertices) {
				hit.offer(start, p)
			}
		}
	}

	return hit, !math.IsInf(hit.Distance, 1)
}

// SegmentCylinderIntersection finds the crossing of the segment nearest to
// start with a vertical cylinder whose base centre is at center and which
// rises by height. The side wall is solved as a 2D circle intersection, the
// altitude at each planar crossing comes from the segment's profile in the
// plane of planar distance against altitude.
func SegmentCylinderIntersection(start, end r3.Vec, center r2.Vec, radius, minZ, height float64, inclusive bool) (Hit, bool) {
	hit := Hit{Distance: math.Inf(1)}
	maxZ := minZ + height

	s2, e2 := Flat(start), Flat(end)
	d := r2.Sub(e2, s2)
	f := r2.Sub(s2, center)

	a := r2.Dot(d, d)
	b := 2 * r2.Dot(f, d)
	c := r2.Dot(f, f) - radius*radius

	if a > Zeroish {
		disc := b*b - 4*a*c
		if disc >= 0 {
			sq := math.Sqrt(disc)
			planar := math.Sqrt(a)
			for _, t := range []float64{(-b - sq) / (2 * a), (-b + sq) / (2 * a)} {
				if t < 0 || t > 1 {
					continue
				}
				p2 := r2.Add(s2, r2.Scale(t, d))
				z, ok := profileAltitude(start, end, planar, t*planar)
				if !ok || z < minZ || z > maxZ {
					continue
				}
				hit.offer(start, Lift(p2, z))
			}
		}
	}

	if inclusive || start.Z < minZ || start.Z > maxZ {
		for _, z := range []float64{minZ, maxZ} {
			p, ok := planeCrossing(start, end, z)
			if !ok {
				continue
			}
			if Distance2D(Flat(p), center) <= radius {
				hit.offer(start, p)
			}
		}
	}

	return hit, !math.IsInf(hit.Distance, 1)
}

// profileAltitude intersects the segment's altitude profile, a line from
// (0, start.Z) to (planar, end.Z), with the vertical line at distance at.
func profileAltitude(start, end r3.Vec, planar, at float64) (float64, bool) {
	p, ok := LineLineIntersection(
		r2.Vec{X: 0, Y: start.Z}, r2.Vec{X: planar, Y: end.Z},
		r2.Vec{X: at, Y: 0}, r2.Vec{X: at, Y: 1},
		false)
	if !ok {
		return 0, false
	}
	return p.Y, true
}
