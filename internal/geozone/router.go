package geozone

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/geom"
)

const (
	// MaxPathPoints caps the nodes of the detour graph.
	MaxPathPoints = 2 + 2*MaxVertices
	// MaxRTHWaypoints caps the length of a detour.
	MaxRTHWaypoints = MaxVertices / 2
	// FlyOverSpacing is the spacing of the extra points placed along long
	// edges of no-fly zones, for flying over them.
	FlyOverSpacing = 500.0

	// climbWeight makes altitude changes cost more than horizontal flight.
	climbWeight = 2.0
)

// Results of CheckForNFZAtCourse other than a waypoint count.
const (
	RouteDirect = 0
	RouteNone   = -1
)

// CheckForNFZAtCourse plans the way home. It returns RouteDirect when the
// craft can fly straight home, or must first leave the zone it is in on
// its current course; RouteNone when no way around the zones exists; and
// otherwise the number of detour waypoints loaded.
func (e *Engine) CheckForNFZAtCourse() int {
	if e.status.AvoidInRTHInProgress || e.noZoneRTH || !e.IsActive() {
		return RouteDirect
	}

	st := e.nav.State()
	info := e.reg.classify(st.Position, e.settings.SafeAltitudeDistance)
	if info.insideNfz || (e.reg.InclusiveActive() && !info.insideFz) {
		return RouteDirect
	}

	waypoints, n := e.planRoute(info, st.Position, st.Home)
	switch {
	case n > 0:
		e.rthWaypoints = waypoints
		e.rthIndex = 0
		e.status.AvoidInRTHInProgress = true
		e.log.Info("rth detour planned", "waypoints", n)
	case n == RouteNone:
		e.log.Warn("no way home around geozones")
	}
	return n
}

// planRoute finds the shortest detour from start, classified as info, to
// target. The returned waypoints exclude target.
func (e *Engine) planRoute(info zoneInfo, start, target r3.Vec) ([]r3.Vec, int) {
	if e.reg.directReachable(start, target) {
		return nil, RouteDirect
	}

	det := e.DetectionDistance()
	safe := e.settings.SafeAltitudeDistance

	// Start a little away from the nearest border, so that the first leg
	// does not set off the fence again.
	from := start
	if info.distHor <= det {
		from = geom.FarAwayTarget(start, geom.WrapDegrees(info.direction+180), det)
	}

	points := make([]r3.Vec, 0, MaxPathPoints)
	points = append(points, from)
	add := func(p r3.Vec) bool {
		if len(points)+1 >= MaxPathPoints {
			return false
		}
		points = append(points, p)
		return true
	}

	// Candidate waypoints are the corners of every zone, pushed outwards
	// for no-fly zones and inwards for fly zones, at the current altitude
	// or just clear of the zone's floor and ceiling.
	for _, z := range e.reg.Active() {
		offset := det * 2 / 3
		if z.Inclusive() {
			offset = -offset
		}

		zMin, zMax := from.Z, 0.0
		if !z.Band.Contains(from.Z) && z.Band.HasMin && z.Band.Min > 0 {
			zMin = z.Band.Min + 2*safe
		}
		if z.Band.HasMax {
			if z.Inclusive() {
				zMax = z.Band.Max - 2*safe
			} else {
				zMax = z.Band.Max + 2*safe
			}
		}

		corners := geom.OffsetPolygon(z.Shape.Outline(), offset)
		prev := corners[len(corners)-1]
		for _, cur := range corners {
			if zMax > 0 {
				p := geom.Lift(cur, zMax)
				if e.checkPathPointOrSetAlt(&p) && !add(p) {
					return nil, RouteNone
				}
				if z.Exclusive() {
					if d := geom.Distance2D(prev, cur); d > FlyOverSpacing {
						sections := int(d / FlyOverSpacing)
						for k := 1; k <= sections; k++ {
							fo := geom.Lift(geom.PointAlongSegment(prev, cur, float64(k)*FlyOverSpacing), zMax)
							if e.checkPathPointOrSetAlt(&fo) && !add(fo) {
								return nil, RouteNone
							}
						}
					}
				}
			}
			if zMin > 0 {
				p := geom.Lift(cur, zMin)
				if e.checkPathPointOrSetAlt(&p) && !add(p) {
					return nil, RouteNone
				}
			}
			prev = cur
		}
	}
	if !add(target) {
		return nil, RouteNone
	}

	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for i := range points {
		g.AddNode(simple.Node(i))
	}
	last := len(points) - 1
	for i := 0; i < last; i++ {
		for j := 1; j <= last; j++ {
			if i == j || !e.reg.directReachable(points[i], points[j]) {
				continue
			}
			w := geom.Distance2D(geom.Flat(points[i]), geom.Flat(points[j])) + climbWeight*math.Abs(points[i].Z-points[j].Z)
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(j), w))
		}
	}

	shortest := path.DijkstraFrom(simple.Node(0), g)
	nodes, weight := shortest.To(int64(last))
	if len(nodes) < 2 || math.IsInf(weight, 1) {
		return nil, RouteNone
	}

	var waypoints []r3.Vec
	if from != start {
		waypoints = append(waypoints, from)
	}
	for _, n := range nodes[1 : len(nodes)-1] {
		waypoints = append(waypoints, points[n.ID()])
	}
	if len(waypoints) > MaxRTHWaypoints {
		return nil, RouteNone
	}
	return waypoints, len(waypoints)
}

// checkPathPointOrSetAlt reports whether p can be a detour waypoint. A
// point inside a no-fly zone is moved below or above it when that height
// is clear.
func (e *Engine) checkPathPointOrSetAlt(p *r3.Vec) bool {
	zones := e.reg.zonesAt(*p, true)
	if len(zones) == 0 {
		return !e.reg.InclusiveActive()
	}
	if len(zones) == 1 && zones[0].Inclusive() {
		return true
	}

	safe := e.settings.SafeAltitudeDistance
	inExclusive := false
	for _, z := range zones {
		if !z.Exclusive() || !z.Contains(*p, false) {
			continue
		}
		inExclusive = true
		if z.Band.HasMin {
			if below := z.Band.Min - 2*safe; e.isPosInGreenAlt(zones, below) {
				p.Z = below
				return true
			}
		}
		if z.Band.HasMax {
			if above := z.Band.Max + 2*safe; e.isPosInGreenAlt(zones, above) {
				p.Z = above
				return true
			}
		}
	}
	return !inExclusive
}

// isPosInGreenAlt reports whether altitude alt is outside every no-fly
// zone of zones and, when fly zones are in use, inside one of them.
func (e *Engine) isPosInGreenAlt(zones []*Zone, alt float64) bool {
	inFz, inNfz := false, false
	for _, z := range zones {
		if !z.Band.Contains(alt) {
			continue
		}
		if z.Inclusive() {
			inFz = true
		} else {
			inNfz = true
		}
	}
	return !inNfz && (!e.reg.InclusiveActive() || inFz)
}

// CurrentRTHWaypoint returns the detour waypoint RTH is flying to.
func (e *Engine) CurrentRTHWaypoint() (r3.Vec, bool) {
	if e.rthIndex >= len(e.rthWaypoints) {
		return r3.Vec{}, false
	}
	return e.rthWaypoints[e.rthIndex], true
}

// AdvanceRTHWaypoint moves on to the next detour waypoint.
func (e *Engine) AdvanceRTHWaypoint() {
	if e.rthIndex < len(e.rthWaypoints) {
		e.rthIndex++
	}
}

// IsLastRTHWaypoint reports whether the current waypoint is the last one
// before home.
func (e *Engine) IsLastRTHWaypoint() bool {
	return e.rthIndex == len(e.rthWaypoints)-1
}

// RTHWaypoints returns the loaded detour.
func (e *Engine) RTHWaypoints() []r3.Vec {
	return append([]r3.Vec(nil), e.rthWaypoints...)
}

// ResetRTH drops the loaded detour.
func (e *Engine) ResetRTH() {
	e.status.AvoidInRTHInProgress = false
	e.rthWaypoints = e.rthWaypoints[:0]
	e.rthIndex = 0
}

// SetupRTH is called when RTH starts. A craft outside every fly zone flies
// straight home without a detour.
func (e *Engine) SetupRTH() {
	if !e.IsActive() {
		e.noZoneRTH = false
		return
	}
	cur := e.reg.currentZones(e.nav.State().Position)
	e.noZoneRTH = !cur.insideFz && e.reg.InclusiveActive()
}

// UpdateMaxHomeAltitude caches the highest ceiling of the fly zones home
// is in, for RTH to stay below.
func (e *Engine) UpdateMaxHomeAltitude() {
	e.status.HomeHasMaxAltitude = false
	if !e.IsActive() {
		return
	}
	home := e.nav.State().Home
	alt := math.Inf(-1)
	for _, z := range e.reg.zonesAt(home, false) {
		if z.Inclusive() {
			alt = math.Max(alt, z.Band.Top())
		}
	}
	if !math.IsInf(alt, -1) {
		e.status.MaxHomeAltitude = alt - e.settings.SafeAltitudeDistance
		e.status.HomeHasMaxAltitude = true
	}
}
