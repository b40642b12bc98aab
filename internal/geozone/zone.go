package geozone

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/config"
	"geozone-planner/internal/geom"
)

// Ceiling stands in for "no ceiling" wherever an altitude must be a number,
// in merged envelopes and status values. It matches the largest altitude
// the flight controller can store.
const Ceiling = math.MaxInt32 / 100.0

// AltitudeBand is the vertical extent of a zone in metres relative to home.
// A missing bound extends the zone to the ground or to the sky.
type AltitudeBand struct {
	Min, Max       float64
	HasMin, HasMax bool
}

// Contains reports whether altitude z is within the band.
func (b AltitudeBand) Contains(z float64) bool {
	return (!b.HasMin || z >= b.Min) && (!b.HasMax || z <= b.Max)
}

// Floor is the lower bound, 0 when the zone reaches the ground.
func (b AltitudeBand) Floor() float64 {
	if b.HasMin {
		return b.Min
	}
	return 0
}

// Top is the upper bound, Ceiling when the zone is open upwards.
func (b AltitudeBand) Top() float64 {
	if b.HasMax {
		return b.Max
	}
	return Ceiling
}

// solid returns the vertical extent used when intersecting the zone's
// boundary surface. A missing bound reaches past any altitude the craft
// can fly at, so no cap is ever met on that side.
func (b AltitudeBand) solid() (lo, hi float64) {
	lo, hi = -Ceiling, Ceiling
	if b.HasMin {
		lo = b.Min
	}
	if b.HasMax {
		hi = b.Max
	}
	return lo, hi
}

// Unbounded reports whether the band has neither bound.
func (b AltitudeBand) Unbounded() bool {
	return !b.HasMin && !b.HasMax
}

// Shape is the horizontal outline of a zone.
type Shape interface {
	// Contains2D reports whether p is inside or on the border.
	Contains2D(p r2.Vec) bool
	// Intersect finds the nearest crossing of the segment with the prism
	// or cylinder the shape spans over band.
	Intersect(start, end r3.Vec, band AltitudeBand, inclusive bool) (geom.Hit, bool)
	// NearestBorder returns the distance from p to the border and the
	// bearing to fly to reach it.
	NearestBorder(p r2.Vec) (dist, bearing float64)
	// Outline is the polygon used for routing around the shape.
	Outline() []r2.Vec
	// Tangent is the direction of the border where the segment from-to
	// crosses it at point at.
	Tangent(from, to, at r2.Vec) (r2.Vec, bool)
	Bounds() (lo, hi r2.Vec)
}

// CirclePolySides is the number of sides of the polygon that stands in for
// a circle when routing.
const CirclePolySides = 6

type Circle struct {
	Center r2.Vec
	Radius float64
}

func (c Circle) Contains2D(p r2.Vec) bool {
	return geom.PointInCircle(p, c.Center, c.Radius)
}

func (c Circle) Intersect(start, end r3.Vec, band AltitudeBand, inclusive bool) (geom.Hit, bool) {
	lo, hi := band.solid()
	return geom.SegmentCylinderIntersection(start, end, c.Center, c.Radius, lo, hi-lo, inclusive)
}

func (c Circle) NearestBorder(p r2.Vec) (float64, float64) {
	d := math.Abs(geom.Distance2D(p, c.Center) - c.Radius)
	bearing := geom.Bearing(p, c.Center)
	if c.Contains2D(p) {
		bearing = geom.WrapDegrees(bearing + 180)
	}
	return d, bearing
}

func (c Circle) Outline() []r2.Vec {
	return geom.PolygonFromCircle(c.Center, c.Radius, CirclePolySides)
}

// Tangent is perpendicular to the radius through at.
func (c Circle) Tangent(_, _, at r2.Vec) (r2.Vec, bool) {
	rad := r2.Sub(at, c.Center)
	if r2.Norm(rad) < geom.Zeroish {
		return r2.Vec{}, false
	}
	return r2.Vec{X: -rad.Y, Y: rad.X}, true
}

func (c Circle) Bounds() (r2.Vec, r2.Vec) {
	d := r2.Vec{X: c.Radius, Y: c.Radius}
	return r2.Sub(c.Center, d), r2.Add(c.Center, d)
}

// Polygon vertices are a window into the registry's vertex arena.
type Polygon struct {
	Vertices []r2.Vec
}

func (p Polygon) Contains2D(q r2.Vec) bool {
	return geom.PointInPolygon(q, p.Vertices) || geom.PointOnPolygonBorder(q, p.Vertices)
}

func (p Polygon) Intersect(start, end r3.Vec, band AltitudeBand, inclusive bool) (geom.Hit, bool) {
	lo, hi := band.solid()
	return geom.SegmentPolygonPrismIntersection(start, end, p.Vertices, lo, hi, inclusive)
}

func (p Polygon) NearestBorder(q r2.Vec) (float64, float64) {
	best := math.Inf(1)
	bearing := 0.0
	prev := p.Vertices[len(p.Vertices)-1]
	for _, cur := range p.Vertices {
		n := geom.NearestPointOnSegment(prev, cur, q)
		if d := geom.Distance2D(q, n); d < best {
			best = d
			bearing = geom.Bearing(q, n)
		}
		prev = cur
	}
	return best, bearing
}

func (p Polygon) Outline() []r2.Vec {
	return p.Vertices
}

// Tangent is the first edge the segment from-to crosses.
func (p Polygon) Tangent(from, to, _ r2.Vec) (r2.Vec, bool) {
	prev := p.Vertices[len(p.Vertices)-1]
	for _, cur := range p.Vertices {
		if _, ok := geom.LineLineIntersection(prev, cur, from, to, true); ok {
			return r2.Sub(cur, prev), true
		}
		prev = cur
	}
	return r2.Vec{}, false
}

func (p Polygon) Bounds() (r2.Vec, r2.Vec) {
	return geom.Bounds(p.Vertices)
}

// Zone is one runtime geozone.
type Zone struct {
	// ConfigID is the index of the persisted descriptor, -1 for the zone
	// built from the nearest safehome.
	ConfigID int
	Type     config.ZoneType
	Action   config.FenceAction
	Band     AltitudeBand
	// Infinite zones have neither floor nor ceiling.
	Infinite bool
	Enabled  bool
	Shape    Shape
}

func (z *Zone) Inclusive() bool { return z.Type == config.TypeInclusive }
func (z *Zone) Exclusive() bool { return z.Type == config.TypeExclusive }

// Contains tests p against the outline and, unless ignoreAltitude is set,
// the altitude band.
func (z *Zone) Contains(p r3.Vec, ignoreAltitude bool) bool {
	if !z.Shape.Contains2D(geom.Flat(p)) {
		return false
	}
	return ignoreAltitude || z.Band.Contains(p.Z)
}

// Intersect finds the nearest crossing of the segment with the zone's
// boundary surface.
func (z *Zone) Intersect(start, end r3.Vec) (geom.Hit, bool) {
	return z.Shape.Intersect(start, end, z.Band, z.Inclusive())
}

// HasAction reports whether crossing the zone triggers a fence action.
func (z *Zone) HasAction() bool {
	return z.Action != config.ActionNone
}
