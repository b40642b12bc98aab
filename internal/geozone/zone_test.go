package geozone

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/config"
)

func TestAltitudeBand(t *testing.T) {
	tests := []struct {
		name       string
		band       AltitudeBand
		in, out    float64
		floor, top float64
	}{
		{name: "unbounded", band: AltitudeBand{}, in: 1e6, out: math.NaN(), floor: 0, top: Ceiling},
		{name: "ceiling", band: AltitudeBand{Max: 100, HasMax: true}, in: -5, out: 101, floor: 0, top: 100},
		{name: "floor", band: AltitudeBand{Min: 50, HasMin: true}, in: 5000, out: 49, floor: 50, top: Ceiling},
		{name: "both", band: AltitudeBand{Min: 20, Max: 60, HasMin: true, HasMax: true}, in: 20, out: 61, floor: 20, top: 60},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.band.Contains(tc.in))
			if !math.IsNaN(tc.out) {
				assert.False(t, tc.band.Contains(tc.out))
			}
			assert.Equal(t, tc.floor, tc.band.Floor())
			assert.Equal(t, tc.top, tc.band.Top())
		})
	}
}

func TestFloorlessZoneHasNoGroundCap(t *testing.T) {
	z := Zone{
		Type:  config.TypeExclusive,
		Band:  AltitudeBand{Max: 100, HasMax: true},
		Shape: Circle{Center: r2.Vec{X: 100}, Radius: 50},
	}

	// Descending to the ground inside the zone crosses nothing.
	_, ok := z.Intersect(r3.Vec{X: 100, Z: 50}, r3.Vec{X: 110})
	assert.False(t, ok)

	// Flying in through the side does.
	hit, ok := z.Intersect(r3.Vec{Z: 50}, r3.Vec{X: 200, Z: 50})
	require.True(t, ok)
	assert.InDelta(t, 50, hit.Point.X, 1e-6)
	assert.InDelta(t, 50, hit.Distance, 1e-6)

	// And so does sinking through the ceiling.
	hit, ok = z.Intersect(r3.Vec{X: 100, Z: 150}, r3.Vec{X: 100, Z: 50})
	require.True(t, ok)
	assert.InDelta(t, 100, hit.Point.Z, 1e-6)
}

func TestCircleShape(t *testing.T) {
	c := Circle{Center: r2.Vec{X: 100}, Radius: 50}

	d, bearing := c.NearestBorder(r2.Vec{})
	assert.InDelta(t, 50, d, 1e-9)
	assert.InDelta(t, 0, bearing, 1e-9)

	// From inside, the way out is away from the centre.
	d, bearing = c.NearestBorder(r2.Vec{X: 80})
	assert.InDelta(t, 30, d, 1e-9)
	assert.InDelta(t, 180, bearing, 1e-9)

	tan, ok := c.Tangent(r2.Vec{}, r2.Vec{X: 100}, r2.Vec{X: 50})
	require.True(t, ok)
	assert.InDelta(t, 0, tan.X, 1e-9)
	assert.NotZero(t, tan.Y)

	lo, hi := c.Bounds()
	assert.Equal(t, r2.Vec{X: 50, Y: -50}, lo)
	assert.Equal(t, r2.Vec{X: 150, Y: 50}, hi)
	assert.Len(t, c.Outline(), CirclePolySides)
}

func TestPolygonShape(t *testing.T) {
	p := Polygon{Vertices: []r2.Vec{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}}

	assert.True(t, p.Contains2D(r2.Vec{X: 50, Y: 50}))
	assert.True(t, p.Contains2D(r2.Vec{X: 100, Y: 50}))
	assert.False(t, p.Contains2D(r2.Vec{X: 150, Y: 50}))

	d, bearing := p.NearestBorder(r2.Vec{X: 50, Y: 90})
	assert.InDelta(t, 10, d, 1e-9)
	assert.InDelta(t, 90, bearing, 1e-9)

	tan, ok := p.Tangent(r2.Vec{X: 50, Y: -50}, r2.Vec{X: 50, Y: 50}, r2.Vec{X: 50})
	require.True(t, ok)
	assert.InDelta(t, 0, tan.Y, 1e-9)

	_, ok = p.Tangent(r2.Vec{X: 200}, r2.Vec{X: 300}, r2.Vec{})
	assert.False(t, ok)
}
