package geozone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/config"
	"geozone-planner/internal/geom"
)

// routedEngine has a no-fly zone between the craft and home, with the
// zones already built.
func routedEngine(t *testing.T) (*Engine, *fakeHost) {
	t.Helper()
	s := config.NewStore()
	addCircle(t, s, 0, zoneSpec{typ: config.TypeExclusive}, r2.Vec{X: 500}, 100)

	st := flying(r3.Vec{Z: 50}, 90, 5)
	st.Home = r3.Vec{X: 1000}
	e, host := newTestEngine(s, config.Default(), st)
	e.Update(t0)
	require.True(t, e.IsActive())
	return e, host
}

func TestRouteAroundNoFlyZone(t *testing.T) {
	e, host := routedEngine(t)

	n := e.CheckForNFZAtCourse()
	require.Positive(t, n)
	assert.LessOrEqual(t, n, MaxRTHWaypoints)
	assert.True(t, e.Status().AvoidInRTHInProgress)

	wps := e.RTHWaypoints()
	require.Len(t, wps, n)

	zone := &e.reg.Active()[0]
	prev := host.st.Position
	for _, wp := range append(wps, host.st.Home) {
		assert.True(t, e.reg.directReachable(prev, wp), "leg %v -> %v", prev, wp)
		prev = wp
	}
	for _, wp := range wps {
		assert.False(t, zone.Contains(wp, true), "waypoint %v inside the zone", wp)
	}

	// Planning again keeps the loaded detour.
	assert.Equal(t, RouteDirect, e.CheckForNFZAtCourse())
	assert.Equal(t, wps, e.RTHWaypoints())
}

func TestRTHWaypointAccessors(t *testing.T) {
	e, _ := routedEngine(t)
	n := e.CheckForNFZAtCourse()
	require.Positive(t, n)
	wps := e.RTHWaypoints()

	for i := 0; i < n; i++ {
		wp, ok := e.CurrentRTHWaypoint()
		require.True(t, ok)
		assert.Equal(t, wps[i], wp)
		assert.Equal(t, i == n-1, e.IsLastRTHWaypoint())
		e.AdvanceRTHWaypoint()
	}
	_, ok := e.CurrentRTHWaypoint()
	assert.False(t, ok)
	e.AdvanceRTHWaypoint()

	e.ResetRTH()
	assert.Empty(t, e.RTHWaypoints())
	assert.False(t, e.Status().AvoidInRTHInProgress)
}

func TestRouteDirectWhenClear(t *testing.T) {
	s := config.NewStore()
	addCircle(t, s, 0, zoneSpec{typ: config.TypeExclusive}, r2.Vec{X: 500, Y: 500}, 100)

	st := flying(r3.Vec{Z: 50}, 0, 5)
	st.Home = r3.Vec{X: 1000}
	e, _ := newTestEngine(s, config.Default(), st)
	e.Update(t0)

	assert.Equal(t, RouteDirect, e.CheckForNFZAtCourse())
	assert.Empty(t, e.RTHWaypoints())
}

func TestRouteDirectInsideSharedFlyZone(t *testing.T) {
	s := config.NewStore()
	addCircle(t, s, 0, zoneSpec{typ: config.TypeInclusive}, r2.Vec{}, 1500)
	addCircle(t, s, 1, zoneSpec{typ: config.TypeInclusive}, r2.Vec{X: 1000}, 800)

	st := flying(r3.Vec{Z: 50}, 0, 5)
	st.Home = r3.Vec{X: 1200}
	e, _ := newTestEngine(s, config.Default(), st)
	e.Update(t0)

	// Entering the second zone on the way is tolerated, both ends are in
	// the first.
	assert.Equal(t, RouteDirect, e.CheckForNFZAtCourse())
}

func TestRouteNoneWhenHomeIsBlocked(t *testing.T) {
	s := config.NewStore()
	addCircle(t, s, 0, zoneSpec{typ: config.TypeExclusive}, r2.Vec{X: 1000}, 100)

	st := flying(r3.Vec{Z: 50}, 0, 5)
	st.Home = r3.Vec{X: 1000}
	e, _ := newTestEngine(s, config.Default(), st)
	e.Update(t0)

	assert.Equal(t, RouteNone, e.CheckForNFZAtCourse())
	assert.False(t, e.Status().AvoidInRTHInProgress)
}

func TestSetupRTHOutsideFlyZone(t *testing.T) {
	s := config.NewStore()
	addCircle(t, s, 0, zoneSpec{typ: config.TypeInclusive}, r2.Vec{}, 300)
	addCircle(t, s, 1, zoneSpec{typ: config.TypeExclusive}, r2.Vec{X: 200, Y: 200}, 50)

	st := flying(r3.Vec{X: 400, Z: 50}, 0, 5)
	e, host := newTestEngine(s, config.Default(), st)
	e.Update(t0)

	e.SetupRTH()
	assert.True(t, e.noZoneRTH)
	assert.Equal(t, RouteDirect, e.CheckForNFZAtCourse())

	host.st.Position = r3.Vec{X: 100, Z: 50}
	e.SetupRTH()
	assert.False(t, e.noZoneRTH)
}

func TestUpdateMaxHomeAltitude(t *testing.T) {
	s := config.NewStore()
	addCircle(t, s, 0, zoneSpec{typ: config.TypeInclusive, max: 120}, r2.Vec{}, 500)
	addCircle(t, s, 1, zoneSpec{typ: config.TypeInclusive, max: 80}, r2.Vec{X: 100}, 500)

	e, host := newTestEngine(s, config.Default(), flying(r3.Vec{Z: 50}, 0, 5))
	e.Update(t0)

	e.UpdateMaxHomeAltitude()
	assert.True(t, e.Status().HomeHasMaxAltitude)
	assert.InDelta(t, 110, e.Status().MaxHomeAltitude, 1e-9)

	host.st.Home = r3.Vec{X: 5000}
	e.UpdateMaxHomeAltitude()
	assert.False(t, e.Status().HomeHasMaxAltitude)
}

func TestCheckPathPointOrSetAlt(t *testing.T) {
	s := config.NewStore()
	addCircle(t, s, 0, zoneSpec{typ: config.TypeExclusive, min: 40, max: 80}, r2.Vec{}, 100)
	addCircle(t, s, 1, zoneSpec{typ: config.TypeExclusive, max: 80}, r2.Vec{X: 1000}, 100)
	addCircle(t, s, 2, zoneSpec{typ: config.TypeExclusive}, r2.Vec{X: 2000}, 100)

	e, _ := newTestEngine(s, config.Default(), flying(r3.Vec{X: 500, Z: 50}, 0, 5))
	e.Update(t0)
	require.True(t, e.IsActive())

	tests := []struct {
		name string
		p    r3.Vec
		ok   bool
		z    float64
	}{
		{name: "below floor", p: r3.Vec{Z: 60}, ok: true, z: 20},
		{name: "above ceiling", p: r3.Vec{X: 1000, Z: 60}, ok: true, z: 100},
		{name: "unbounded", p: r3.Vec{X: 2000, Z: 60}, ok: false, z: 60},
		{name: "clear", p: r3.Vec{X: 500, Z: 60}, ok: true, z: 60},
		{name: "under zone", p: r3.Vec{Z: 10}, ok: true, z: 10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.p
			assert.Equal(t, tc.ok, e.checkPathPointOrSetAlt(&p))
			assert.InDelta(t, tc.z, p.Z, 1e-9)
		})
	}
}

func TestRouteStartsClearOfNearBorder(t *testing.T) {
	s := config.NewStore()
	addCircle(t, s, 0, zoneSpec{typ: config.TypeExclusive}, r2.Vec{X: 200}, 100)

	st := flying(r3.Vec{Z: 50}, 90, 5)
	st.Home = r3.Vec{X: 1000}
	e, _ := newTestEngine(s, config.Default(), st)
	e.Update(t0)

	require.Positive(t, e.CheckForNFZAtCourse())
	wps := e.RTHWaypoints()
	// The border is 100 m ahead, the detour first backs off from it.
	first := geom.Flat(wps[0])
	assert.InDelta(t, -e.DetectionDistance(), first.X, 1e-6)
	assert.InDelta(t, 0, first.Y, 1e-6)
}
