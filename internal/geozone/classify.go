package geozone

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/geom"
)

// zoneInfo is the classification of one position against the registry.
type zoneInfo struct {
	// current holds the zones containing the position, altitude included.
	current   []*Zone
	insideFz  bool
	insideNfz bool

	// nearestHor is the zone stacked above or below the craft, or the one
	// it is in, that bounds it vertically.
	nearestHor *Zone
	// nearest is the zone whose border is closest.
	nearest *Zone

	distHor   float64
	distVert  float64
	direction float64

	// zoneMax and zoneMin are the usable altitude envelope shrunk by the
	// safe distance, 0 when not limited.
	zoneMax float64
	zoneMin float64

	aboveOrUnder     bool
	nearestHasAction bool
}

// currentZones fills the containment part of a zoneInfo.
func (r *Registry) currentZones(pos r3.Vec) zoneInfo {
	var info zoneInfo
	info.current = r.zonesAt(pos, false)
	for _, z := range info.current {
		if z.Exclusive() {
			info.insideNfz = true
		}
		if z.Inclusive() {
			info.insideFz = true
		}
	}
	return info
}

// classify computes the full zoneInfo for pos. It does not change the
// registry, so repeated calls with the same input agree.
func (r *Registry) classify(pos r3.Vec, safeAlt float64) zoneInfo {
	info := r.currentZones(pos)
	z := pos.Z

	stacked := r.zonesAt(pos, true)
	maxAlt, minAlt := math.Inf(-1), math.Inf(1)

	switch {
	case len(stacked) == 1:
		maxAlt = stacked[0].Band.Top()
		minAlt = stacked[0].Band.Floor()
		info.nearestHor = stacked[0]

	case len(stacked) >= 2:
		var above, below *Zone
		distAbove, distBelow := math.Inf(1), math.Inf(1)
		for _, c := range stacked {
			if c.Band.Contains(z) {
				maxAlt = math.Max(c.Band.Top(), maxAlt)
				minAlt = math.Min(c.Band.Floor(), minAlt)
				info.nearestHor = c
			}
			if c.Band.Floor() > z {
				if d := c.Band.Floor() - z; d < distAbove {
					above, distAbove = c, d
				}
			}
			if c.Band.Top() < z {
				if d := z - c.Band.Top(); d < distBelow {
					below, distBelow = c, d
				}
			}
		}

		// An inclusive zone overhead widens the envelope, an exclusive one
		// caps it. The same below.
		if above != nil {
			if above.Inclusive() {
				maxAlt = math.Max(above.Band.Top(), maxAlt)
				info.nearestHor = above
			} else {
				maxAlt = math.Min(above.Band.Floor(), maxAlt)
			}
		}
		if below != nil {
			if below.Inclusive() {
				minAlt = math.Min(below.Band.Floor(), minAlt)
				info.nearestHor = below
			} else {
				minAlt = math.Max(below.Band.Top(), minAlt)
			}
		}
	}

	if math.IsInf(minAlt, 1) {
		minAlt = 0
	}
	if math.IsInf(maxAlt, -1) {
		maxAlt = 0
	}

	switch {
	case maxAlt == Ceiling && minAlt != 0:
		info.distVert = math.Abs(minAlt - z)
	case minAlt == 0 && maxAlt != 0:
		info.distVert = maxAlt - z
	case minAlt != 0 && maxAlt > 0:
		toMin, toMax := minAlt-z, maxAlt-z
		if z > minAlt && z < maxAlt {
			if math.Abs(toMin) < math.Abs(maxAlt-minAlt)/2 {
				info.distVert = toMin
			} else {
				info.distVert = toMax
			}
		} else {
			info.distVert = math.Min(math.Abs(toMin), toMax)
		}
	}

	if len(stacked) > 0 {
		info.aboveOrUnder = z < minAlt || z > maxAlt
		if maxAlt > 0 {
			info.zoneMax = maxAlt - safeAlt
		}
		if minAlt > 0 {
			info.zoneMin = minAlt + safeAlt
		}
	}

	p := geom.Flat(pos)
	nearest := math.Inf(1)
	for i := range r.Active() {
		zone := &r.zones[i]
		// Outside every zone the way back into an inclusive one is all
		// that matters, exclusive zones are handled by RTH later.
		if len(stacked) == 0 && r.inclusiveActive && zone.Exclusive() {
			continue
		}
		d, bearing := zone.Shape.NearestBorder(p)
		if d < nearest {
			nearest = d
			info.direction = bearing
			info.distHor = math.Round(d)
			info.nearest = zone
		}
	}
	if info.aboveOrUnder && info.nearestHor != nil && math.Abs(info.distVert) < info.distHor {
		info.nearest = info.nearestHor
		info.distHor = 0
	}

	info.nearestHasAction = info.nearestHor != nil && info.nearestHor.HasAction()
	return info
}
