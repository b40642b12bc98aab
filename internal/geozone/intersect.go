package geozone

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/geom"
)

// previewPoint extrapolates the flight path over distance along the
// ground course, climbing or sinking at the current vertical speed for as
// long as it takes to cover it.
func previewPoint(st VehicleState, distance float64) r3.Vec {
	p := geom.FarAwayTarget(st.Position, st.GroundCourse, distance)
	if st.GroundSpeed > 0 {
		p.Z = st.Position.Z + distance/st.GroundSpeed*st.Velocity.Z
	}
	return p
}

// nearestIntersection returns the zone whose boundary the segment crosses
// first, if that crossing is closer than horizon.
func (r *Registry) nearestIntersection(start, end r3.Vec, horizon float64) (*Zone, geom.Hit, bool) {
	var (
		best    *Zone
		bestHit geom.Hit
	)
	for _, z := range r.candidates(start, end) {
		hit, ok := z.Intersect(start, end)
		if !ok {
			continue
		}
		if best == nil || hit.Distance < bestHit.Distance {
			best, bestHit = z, hit
		}
	}
	if best == nil || bestHit.Distance >= horizon {
		return nil, geom.Hit{}, false
	}
	return best, bestHit, true
}

// directReachable reports whether the craft can fly straight from start to
// end. Every boundary crossed on the way must belong to an overlap of
// inclusive zones that both ends share; any contact with an exclusive zone
// blocks the path.
func (r *Registry) directReachable(start, end r3.Vec) bool {
	var startZones, endZones []*Zone
	resolved := false

	for _, z := range r.candidates(start, end) {
		hit, ok := z.Intersect(start, end)
		if !ok {
			continue
		}

		at := r.zonesAt(hit.Point, false)
		if !slices.Contains(at, z) {
			at = append(at, z)
		}
		for _, a := range at {
			if a.Exclusive() {
				return false
			}
		}
		// Crossing out of a lone zone.
		if len(at) < 2 {
			return false
		}

		if !resolved {
			startZones = r.zonesAt(start, false)
			endZones = r.zonesAt(end, false)
			resolved = true
		}
		shared := false
		for _, a := range at {
			if slices.Contains(startZones, a) && slices.Contains(endZones, a) {
				shared = true
				break
			}
		}
		if !shared {
			return false
		}
	}
	return true
}
