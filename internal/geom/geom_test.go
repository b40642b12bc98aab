package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

var square = []r2.Vec{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}

func reversed(v []r2.Vec) []r2.Vec {
	out := make([]r2.Vec, len(v))
	for i := range v {
		out[len(v)-1-i] = v[i]
	}
	return out
}

func TestPointInPolygon(t *testing.T) {
	for _, tc := range []struct {
		name string
		p    r2.Vec
		want bool
	}{
		{"centre", r2.Vec{X: 50, Y: 50}, true},
		{"near corner", r2.Vec{X: 1, Y: 1}, true},
		{"outside north", r2.Vec{X: 150, Y: 50}, false},
		{"outside south west", r2.Vec{X: -1, Y: -1}, false},
		{"level with vertex", r2.Vec{X: 100, Y: 150}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PointInPolygon(tc.p, square))
			assert.Equal(t, tc.want, PointInPolygon(tc.p, reversed(square)))
		})
	}
}

func TestPointOnPolygonBorder(t *testing.T) {
	assert.True(t, PointOnPolygonBorder(r2.Vec{X: 50, Y: 0}, square))
	assert.True(t, PointOnPolygonBorder(r2.Vec{X: 100, Y: 100}, square))
	assert.True(t, PointOnPolygonBorder(r2.Vec{X: 50, Y: 100.004}, square))
	assert.False(t, PointOnPolygonBorder(r2.Vec{X: 50, Y: 50}, square))
	assert.False(t, PointOnPolygonBorder(r2.Vec{X: 50, Y: 101}, square))
}

func TestPointInCircle(t *testing.T) {
	c := r2.Vec{X: 10, Y: 10}
	assert.True(t, PointInCircle(r2.Vec{X: 10, Y: 19.9}, c, 10))
	assert.False(t, PointInCircle(r2.Vec{X: 10, Y: 20}, c, 10))
	assert.False(t, PointInCircle(r2.Vec{X: 30, Y: 10}, c, 10))
}

func TestBearingAndFarAwayTarget(t *testing.T) {
	o := r2.Vec{}
	assert.InDelta(t, 0, Bearing(o, r2.Vec{X: 10}), 1e-9)
	assert.InDelta(t, 90, Bearing(o, r2.Vec{Y: 10}), 1e-9)
	assert.InDelta(t, 180, Bearing(o, r2.Vec{X: -10}), 1e-9)
	assert.InDelta(t, 270, Bearing(o, r2.Vec{Y: -10}), 1e-9)

	p := FarAwayTarget(r3.Vec{X: 1, Y: 2, Z: 30}, 90, 100)
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 102, p.Y, 1e-9)
	assert.Equal(t, 30.0, p.Z)
}

func TestAngles(t *testing.T) {
	assert.Equal(t, 350.0, WrapDegrees(-10))
	assert.Equal(t, 10.0, WrapDegrees(370))
	assert.InDelta(t, -20, AngleDiff(350, 10), 1e-9)
	assert.InDelta(t, 20, AngleDiff(10, 350), 1e-9)
	assert.InDelta(t, 90, AngleFrom3Points(r2.Vec{}, r2.Vec{X: 1}, r2.Vec{Y: 1}), 1e-9)
}

func TestIsPointRightOfLine(t *testing.T) {
	// Flying north, east is on the right.
	assert.True(t, IsPointRightOfLine(r2.Vec{}, r2.Vec{X: 10}, r2.Vec{X: 5, Y: 5}))
	assert.False(t, IsPointRightOfLine(r2.Vec{}, r2.Vec{X: 10}, r2.Vec{X: 5, Y: -5}))
}

func TestReflectCourse(t *testing.T) {
	// Head on into an east-west wall.
	assert.InDelta(t, 180, ReflectCourse(0, r2.Vec{Y: 1}), 1e-9)
	// 45 degrees into the same wall comes back at 135.
	assert.InDelta(t, 135, ReflectCourse(45, r2.Vec{Y: 1}), 1e-9)
	// Parallel to the wall keeps the course.
	assert.InDelta(t, 90, ReflectCourse(90, r2.Vec{Y: 1}), 1e-9)
}

func TestLineLineIntersection(t *testing.T) {
	p, ok := LineLineIntersection(r2.Vec{}, r2.Vec{X: 10, Y: 10}, r2.Vec{X: 10}, r2.Vec{Y: 10}, true)
	require.True(t, ok)
	assert.InDelta(t, 5, p.X, 1e-9)
	assert.InDelta(t, 5, p.Y, 1e-9)

	_, ok = LineLineIntersection(r2.Vec{}, r2.Vec{X: 1, Y: 1}, r2.Vec{X: 10}, r2.Vec{Y: 10}, true)
	assert.False(t, ok)
	_, ok = LineLineIntersection(r2.Vec{}, r2.Vec{X: 1, Y: 1}, r2.Vec{X: 10}, r2.Vec{Y: 10}, false)
	assert.True(t, ok)
	_, ok = LineLineIntersection(r2.Vec{}, r2.Vec{X: 1}, r2.Vec{Y: 1}, r2.Vec{X: 1, Y: 1}, false)
	assert.False(t, ok)
}

func TestNearestPointOnSegment(t *testing.T) {
	a, b := r2.Vec{}, r2.Vec{X: 10}
	assert.Equal(t, r2.Vec{X: 4}, NearestPointOnSegment(a, b, r2.Vec{X: 4, Y: 3}))
	assert.Equal(t, b, NearestPointOnSegment(a, b, r2.Vec{X: 40, Y: 3}))
	assert.Equal(t, a, NearestPointOnSegment(a, b, r2.Vec{X: -4, Y: 3}))
}

func TestOffsetPolygonContainsHalfOffset(t *testing.T) {
	const d = 20.0
	for _, verts := range [][]r2.Vec{square, reversed(square)} {
		grown := OffsetPolygon(verts, d)
		n := len(verts)
		for i := range verts {
			a, b := verts[i], verts[(i+1)%n]
			mid := r2.Scale(0.5, r2.Add(a, b))
			e := r2.Unit(r2.Sub(b, a))
			// Try both normals and keep the one pointing away from the centre.
			nrm := r2.Vec{X: e.Y, Y: -e.X}
			if PointInPolygon(r2.Add(mid, r2.Scale(1, nrm)), verts) {
				nrm = r2.Scale(-1, nrm)
			}
			probe := r2.Add(mid, r2.Scale(d/2, nrm))
			assert.False(t, PointInPolygon(probe, verts))
			assert.True(t, PointInPolygon(probe, grown), "edge %d", i)
		}

		shrunk := OffsetPolygon(verts, -d)
		assert.True(t, PointInPolygon(r2.Vec{X: 50, Y: 50}, shrunk))
		assert.False(t, PointInPolygon(r2.Vec{X: 10, Y: 10}, shrunk))
	}
}

func TestPolygonFromCircleEnclosesCircle(t *testing.T) {
	c := r2.Vec{X: 200, Y: -50}
	hex := PolygonFromCircle(c, 100, 6)
	require.Len(t, hex, 6)
	for i := 0; i < 36; i++ {
		a := float64(i) * 10 * math.Pi / 180
		p := r2.Vec{X: c.X + 99.9*math.Cos(a), Y: c.Y + 99.9*math.Sin(a)}
		assert.True(t, PointInPolygon(p, hex), "angle %d", i*10)
	}
}

func TestRayTriangleIntersection(t *testing.T) {
	tri := [3]r3.Vec{{X: 10, Y: -5, Z: 0}, {X: 10, Y: 5, Z: 0}, {X: 10, Y: 0, Z: 10}}
	p, ok := RayTriangleIntersection(r3.Vec{Z: 2}, r3.Vec{X: 20, Z: 2}, tri)
	require.True(t, ok)
	assert.InDelta(t, 10, p.X, 1e-9)
	assert.InDelta(t, 2, p.Z, 1e-9)

	_, ok = RayTriangleIntersection(r3.Vec{Z: 2}, r3.Vec{X: 5, Z: 2}, tri)
	assert.False(t, ok, "segment ends before the triangle")
	_, ok = RayTriangleIntersection(r3.Vec{Z: 20}, r3.Vec{X: 20, Z: 20}, tri)
	assert.False(t, ok)
}

func TestSegmentPolygonPrismIntersection(t *testing.T) {
	start := r3.Vec{X: -50, Y: 50, Z: 20}
	end := r3.Vec{X: 50, Y: 50, Z: 20}
	hit, ok := SegmentPolygonPrismIntersection(start, end, square, 0, 100, false)
	require.True(t, ok)
	assert.InDelta(t, 0, hit.Point.X, 1e-6)
	assert.InDelta(t, 50, hit.Distance, 1e-6)

	// Passing over the prism.
	_, ok = SegmentPolygonPrismIntersection(r3.Vec{X: -50, Y: 50, Z: 150}, r3.Vec{X: 150, Y: 50, Z: 150}, square, 0, 100, false)
	assert.False(t, ok)

	// Descending from above into the top cap.
	hit, ok = SegmentPolygonPrismIntersection(r3.Vec{X: 50, Y: 50, Z: 150}, r3.Vec{X: 50, Y: 50, Z: 50}, square, 0, 100, false)
	require.True(t, ok)
	assert.InDelta(t, 100, hit.Point.Z, 1e-9)

	// Climbing out of an inclusive prism through its ceiling.
	hit, ok = SegmentPolygonPrismIntersection(r3.Vec{X: 50, Y: 50, Z: 90}, r3.Vec{X: 50, Y: 50, Z: 120}, square, 0, 100, true)
	require.True(t, ok)
	assert.InDelta(t, 10, hit.Distance, 1e-9)
}

func TestSegmentCylinderIntersection(t *testing.T) {
	c := r2.Vec{X: 200}
	hit, ok := SegmentCylinderIntersection(r3.Vec{Z: 50}, r3.Vec{X: 150, Z: 50}, c, 100, 0, 1000, false)
	require.True(t, ok)
	assert.InDelta(t, 100, hit.Point.X, 1e-6)
	assert.InDelta(t, 50, hit.Point.Z, 1e-6)
	assert.InDelta(t, 100, hit.Distance, 1e-6)

	// Climbing path, crossing altitude is interpolated.
	hit, ok = SegmentCylinderIntersection(r3.Vec{Z: 0}, r3.Vec{X: 200, Z: 20}, c, 100, 0, 1000, false)
	require.True(t, ok)
	assert.InDelta(t, 10, hit.Point.Z, 1e-6)

	// Too short.
	_, ok = SegmentCylinderIntersection(r3.Vec{Z: 50}, r3.Vec{X: 90, Z: 50}, c, 100, 0, 1000, false)
	assert.False(t, ok)

	// Above a cylinder topping out at 40 m.
	_, ok = SegmentCylinderIntersection(r3.Vec{Z: 50}, r3.Vec{X: 400, Z: 50}, c, 100, 0, 40, false)
	assert.False(t, ok)

	// Large local coordinates keep their precision.
	far := r2.Vec{X: 2e6, Y: 2e6}
	hit, ok = SegmentCylinderIntersection(r3.Vec{X: 2e6 - 300, Y: 2e6, Z: 10}, r3.Vec{X: 2e6, Y: 2e6, Z: 10}, far, 100, 0, 100, false)
	require.True(t, ok)
	assert.InDelta(t, 200, hit.Distance, 1e-3)
}

func TestPointOnSegment3D(t *testing.T) {
	a, b := r3.Vec{}, r3.Vec{X: 10, Y: 10, Z: 10}
	assert.True(t, PointOnSegment3D(a, b, r3.Vec{X: 5, Y: 5, Z: 5}))
	assert.False(t, PointOnSegment3D(a, b, r3.Vec{X: 5, Y: 5, Z: 6}))
}
