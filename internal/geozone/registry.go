package geozone

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/config"
	"geozone-planner/internal/geom"
)

const (
	// MaxZones is the runtime zone capacity, one more than the persisted
	// table for the safehome zone.
	MaxZones = config.MaxZonesInConfig + 1
	// MaxVertices is the runtime vertex capacity, with one extra for the
	// safehome zone's centre.
	MaxVertices = config.MaxVerticesInConfig + 1

	// InclusiveIgnoreDistance is how far away an inclusive zone may be
	// before it is switched off while the craft is outside every
	// inclusive zone.
	InclusiveIgnoreDistance = 2000.0
)

// ErrNoZones is returned when no zone survives the build.
var ErrNoZones = errors.New("no active zones")

// buildInput is everything the registry is built from.
type buildInput struct {
	store    *config.Store
	settings config.Settings
	proj     Projector
	// position of the craft when the registry is built
	position r3.Vec
	// homeAltitude above sea level, for sea level referenced zones
	homeAltitude float64
	// safeHome is the local centre of the nearest safehome, if any
	safeHome *r2.Vec
}

// Registry owns the runtime zones. Enabled zones form a prefix of zones.
type Registry struct {
	zones  []Zone
	active int
	arena  []r2.Vec
	index  *zoneIndex

	inclusiveActive bool
}

// buildRegistry converts the persisted records into runtime zones. It
// returns config.ErrVertexMismatch when the vertex table does not hold
// exactly the records the descriptors announce, config.ErrBadZone or
// config.ErrTooManyVertices for descriptors that cannot be built, and
// ErrNoZones when nothing is left to enforce.
func buildRegistry(in buildInput) (*Registry, error) {
	r := &Registry{
		zones: make([]Zone, 0, MaxZones),
		arena: make([]r2.Vec, 0, MaxVertices),
	}

	// Arena offset of every configured zone, by config index.
	offset := make([]int, config.MaxZonesInConfig)
	byConfig := make([]int, config.MaxZonesInConfig)
	expected, configured := 0, 0

	for i, cfg := range in.store.Zones {
		byConfig[i] = -1
		expected += int(cfg.VertexCount)
		if cfg.VertexCount == 0 {
			continue
		}

		n := int(cfg.VertexCount)
		if cfg.Shape == config.ShapeCircular {
			// centre and radius record, one point at runtime
			n = 1
		} else if n < 3 {
			return nil, fmt.Errorf("zone %d has %d vertices: %w", i, n, config.ErrBadZone)
		}
		if len(r.arena)+n > config.MaxVerticesInConfig {
			return nil, fmt.Errorf("zone %d: %w", i, config.ErrTooManyVertices)
		}
		offset[i] = len(r.arena)
		r.arena = r.arena[:len(r.arena)+n]

		z := Zone{
			ConfigID: i,
			Type:     cfg.Type,
			Action:   cfg.FenceAction,
			Band:     bandFromConfig(cfg, in.homeAltitude),
			Enabled:  true,
		}
		z.Infinite = z.Band.Unbounded()
		if !in.settings.Airplane && z.Action == config.ActionAvoid {
			z.Action = config.ActionPosHold
		}
		byConfig[i] = len(r.zones)
		r.zones = append(r.zones, z)
	}

	filled := make([]bool, len(r.arena))
	radius := make([]float64, config.MaxZonesInConfig)
	mismatch := false
	for _, v := range in.store.Vertices {
		if v.ZoneID < 0 || int(v.ZoneID) >= config.MaxZonesInConfig || int(v.Index) > config.MaxVerticesInConfig {
			continue
		}
		configured++

		id := int(v.ZoneID)
		zi := byConfig[id]
		if zi < 0 {
			// record for a zone without vertices
			mismatch = true
			continue
		}
		cfg := in.store.Zones[id]
		if cfg.Shape == config.ShapeCircular {
			switch v.Index {
			case 0:
			case 1:
				radius[id] = float64(v.Lat) / 100
				continue
			default:
				mismatch = true
				continue
			}
		} else if int(v.Index) >= int(cfg.VertexCount) {
			mismatch = true
			continue
		}

		slot := offset[id] + int(v.Index)
		r.arena[slot] = in.proj.ToLocalE7(v.Lat, v.Lon)
		filled[slot] = true
	}
	for _, ok := range filled {
		if !ok {
			mismatch = true
		}
	}

	for i := range r.zones {
		z := &r.zones[i]
		cfg := in.store.Zones[z.ConfigID]
		start := offset[z.ConfigID]
		if cfg.Shape == config.ShapeCircular {
			if radius[z.ConfigID] <= 0 {
				mismatch = true
			}
			z.Shape = Circle{Center: r.arena[start], Radius: radius[z.ConfigID]}
			continue
		}
		z.Shape = Polygon{Vertices: r.arena[start : start+int(cfg.VertexCount) : start+int(cfg.VertexCount)]}
	}

	if in.settings.SafeHomeAsInclusive && in.safeHome != nil {
		r.arena = append(r.arena, *in.safeHome)
		r.zones = append(r.zones, Zone{
			ConfigID: -1,
			Type:     config.TypeInclusive,
			Action:   in.settings.SafeHomeFenceAction,
			Infinite: true,
			Enabled:  true,
			Shape:    Circle{Center: *in.safeHome, Radius: in.settings.SafeHomeMaxDistance},
		})
		expected++
		configured++
	}

	if len(r.zones) > 0 && expected != configured {
		mismatch = true
	}
	if mismatch {
		return nil, fmt.Errorf("%d vertex records, %d expected: %w", configured, expected, config.ErrVertexMismatch)
	}

	r.pruneFarInclusive(in.position)

	sort.SliceStable(r.zones, func(i, j int) bool {
		return r.zones[i].Enabled && !r.zones[j].Enabled
	})
	r.active = 0
	for i := range r.zones {
		if r.zones[i].Enabled {
			r.active++
		}
	}
	if r.active == 0 {
		return nil, ErrNoZones
	}

	for _, z := range r.Active() {
		if z.Inclusive() {
			r.inclusiveActive = true
			break
		}
	}
	r.index = newZoneIndex(r.Active())
	return r, nil
}

// bandFromConfig turns the persisted altitudes into a band relative to
// home. A stored bound of 0 is no bound.
func bandFromConfig(cfg config.ZoneConfig, homeAltitude float64) AltitudeBand {
	b := AltitudeBand{
		Min:    float64(cfg.MinAltitude) / 100,
		Max:    float64(cfg.MaxAltitude) / 100,
		HasMin: cfg.MinAltitude != 0,
		HasMax: cfg.MaxAltitude != 0,
	}
	if cfg.SeaLevelRef {
		if b.HasMin {
			b.Min -= homeAltitude
		}
		if b.HasMax {
			b.Max -= homeAltitude
		}
	}
	return b
}

// pruneFarInclusive switches off inclusive zones further away than
// InclusiveIgnoreDistance, unless the craft is inside one of them.
func (r *Registry) pruneFarInclusive(pos r3.Vec) {
	for i := range r.zones {
		if r.zones[i].Inclusive() && r.zones[i].Contains(pos, false) {
			return
		}
	}

	p := geom.Flat(pos)
	for i := range r.zones {
		z := &r.zones[i]
		if !z.Inclusive() {
			continue
		}
		dist := math.Inf(1)
		switch s := z.Shape.(type) {
		case Circle:
			dist = geom.Distance2D(p, s.Center) - s.Radius
		case Polygon:
			for _, v := range s.Vertices {
				dist = math.Min(dist, geom.Distance2D(p, v))
			}
		}
		if dist > InclusiveIgnoreDistance {
			z.Enabled = false
		}
	}
}

// Active returns the enabled zones.
func (r *Registry) Active() []Zone {
	return r.zones[:r.active]
}

// InclusiveActive reports whether at least one inclusive zone is enabled.
func (r *Registry) InclusiveActive() bool {
	return r.inclusiveActive
}

// candidates returns the enabled zones whose boxes overlap the points.
func (r *Registry) candidates(points ...r3.Vec) []*Zone {
	idx := r.index.query(points...)
	out := make([]*Zone, len(idx))
	for i, j := range idx {
		out[i] = &r.zones[j]
	}
	return out
}

// zonesAt returns every enabled zone containing pos.
func (r *Registry) zonesAt(pos r3.Vec, ignoreAltitude bool) []*Zone {
	var out []*Zone
	for _, z := range r.candidates(pos) {
		if z.Contains(pos, ignoreAltitude) {
			out = append(out, z)
		}
	}
	return out
}

// inAnyOtherZone reports whether pos is inside an enabled zone of type t
// other than except.
func (r *Registry) inAnyOtherZone(except *Zone, t config.ZoneType, pos r3.Vec) bool {
	for _, z := range r.candidates(pos) {
		if z != except && z.Type == t && z.Contains(pos, false) {
			return true
		}
	}
	return false
}
