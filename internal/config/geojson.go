package config

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// Feature properties understood by LoadGeoJSON. Altitudes and radius are
// metres.
const (
	PropType        = "type"
	PropAction      = "action"
	PropMinAlt      = "min_alt"
	PropMaxAlt      = "max_alt"
	PropSeaLevelRef = "sea_level_ref"
	PropRadius      = "radius"
)

// baseEpsilon is the first simplification tolerance tried, in degrees
// (about 2 m).
const baseEpsilon = 0.00002

type importZone struct {
	cfg    ZoneConfig
	ring   orb.Ring // polygons, open (no closing point)
	center orb.Point
	radius float64 // m
}

// LoadGeoJSON adds the features of a GeoJSON FeatureCollection to store as
// zones. Polygons and MultiPolygons become polygon zones (outer rings only),
// Points with a radius property become circles. Polygons with more vertices
// than the store has room for are simplified, and exclusive polygons lying
// completely inside another exclusive polygon that covers their altitude
// band are dropped.
func LoadGeoJSON(data []byte, store *Store) (*Store, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding geojson: %w", err)
	}

	var zones []importZone
	for i, f := range fc.Features {
		cfg, err := featureConfig(f.Properties)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}

		switch g := f.Geometry.(type) {
		case orb.Polygon:
			zones = append(zones, polygonZone(cfg, g))
		case orb.MultiPolygon:
			for _, p := range g {
				zones = append(zones, polygonZone(cfg, p))
			}
		case orb.Point:
			r := f.Properties.MustFloat64(PropRadius, 0)
			if r <= 0 {
				return nil, fmt.Errorf("feature %d: point needs a positive %q property: %w", i, PropRadius, ErrBadZone)
			}
			cfg.Shape = ShapeCircular
			zones = append(zones, importZone{cfg: cfg, center: g, radius: r})
		default:
			return nil, fmt.Errorf("feature %d: unsupported geometry %s: %w", i, f.Geometry.GeoJSONType(), ErrBadZone)
		}
	}

	zones = removeContainedZones(zones)

	for _, z := range zones {
		id := store.FreeZone()
		if id < 0 {
			return nil, fmt.Errorf("%d zones: %w", len(zones), ErrTooManyZones)
		}
		store.Zones[id] = z.cfg

		if z.cfg.Shape == ShapeCircular {
			if err := store.SetCircle(id, toE7(z.center.Lat()), toE7(z.center.Lon()), int32(z.radius*100+0.5)); err != nil {
				return nil, err
			}
			continue
		}

		ring, err := fitRing(z.ring, store.FreeVertexSlots())
		if err != nil {
			return nil, fmt.Errorf("zone %d: %w", id, err)
		}
		if err := store.SetPolygon(id, ring); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func featureConfig(p geojson.Properties) (ZoneConfig, error) {
	cfg := ZoneConfig{Shape: ShapePolygon}
	if err := cfg.Type.UnmarshalText([]byte(p.MustString(PropType, "exclusive"))); err != nil {
		return cfg, err
	}
	if err := cfg.FenceAction.UnmarshalText([]byte(p.MustString(PropAction, "none"))); err != nil {
		return cfg, err
	}
	cfg.MinAltitude = int32(p.MustFloat64(PropMinAlt, 0) * 100)
	cfg.MaxAltitude = int32(p.MustFloat64(PropMaxAlt, 0) * 100)
	cfg.SeaLevelRef = p.MustBool(PropSeaLevelRef, false)
	if cfg.MaxAltitude != 0 && cfg.MaxAltitude <= cfg.MinAltitude {
		return cfg, fmt.Errorf("max_alt must be above min_alt: %w", ErrBadZone)
	}
	return cfg, nil
}

func polygonZone(cfg ZoneConfig, p orb.Polygon) importZone {
	if len(p) == 0 {
		return importZone{cfg: cfg}
	}
	return importZone{cfg: cfg, ring: openRing(p[0])}
}

// openRing drops the closing point GeoJSON repeats at the end of a ring.
func openRing(r orb.Ring) orb.Ring {
	out := append(orb.Ring(nil), r...)
	if len(out) > 1 && out[0].Equal(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

// fitRing simplifies r with Douglas-Peucker, doubling the tolerance until
// the ring fits into the free vertex slots.
func fitRing(r orb.Ring, free int) (orb.Ring, error) {
	if len(r) < 3 {
		return nil, fmt.Errorf("ring with %d points: %w", len(r), ErrBadZone)
	}
	if len(r) <= free {
		return r, nil
	}

	closed := append(r.Clone(), r[0])
	for eps := baseEpsilon; eps < 1; eps *= 2 {
		s, ok := simplify.DouglasPeucker(eps).Simplify(closed.Clone()).(orb.Ring)
		if !ok {
			break
		}
		s = openRing(s)
		if len(s) < 3 {
			break
		}
		if len(s) <= free {
			return s, nil
		}
	}
	return nil, fmt.Errorf("ring with %d points does not fit into %d free slots: %w", len(r), free, ErrTooManyVertices)
}

// removeContainedZones drops exclusive polygons that lie completely inside
// another exclusive polygon whose altitude band covers theirs.
func removeContainedZones(zones []importZone) []importZone {
	if len(zones) <= 1 {
		return zones
	}

	contained := make([]bool, len(zones))
	for i := range zones {
		if contained[i] || !isExclusivePolygon(zones[i]) {
			continue
		}
		for j := range zones {
			if i == j || contained[j] || !isExclusivePolygon(zones[j]) {
				continue
			}
			if isZoneContainedIn(zones[i], zones[j]) {
				contained[i] = true
				break
			}
		}
	}

	result := make([]importZone, 0, len(zones))
	for i, z := range zones {
		if !contained[i] {
			result = append(result, z)
		}
	}
	return result
}

func isExclusivePolygon(z importZone) bool {
	return z.cfg.Shape == ShapePolygon && z.cfg.Type == TypeExclusive && len(z.ring) >= 3
}

// isZoneContainedIn checks if zone a is fully inside zone b, in plan and
// in altitude.
func isZoneContainedIn(a, b importZone) bool {
	if a.cfg.SeaLevelRef != b.cfg.SeaLevelRef {
		return false
	}
	if b.cfg.MinAltitude > a.cfg.MinAltitude {
		return false
	}
	if b.cfg.MaxAltitude != 0 && (a.cfg.MaxAltitude == 0 || a.cfg.MaxAltitude > b.cfg.MaxAltitude) {
		return false
	}

	// Quick bounding box check first
	ab, bb := a.ring.Bound(), b.ring.Bound()
	if !bb.Contains(ab.Min) || !bb.Contains(ab.Max) {
		return false
	}

	closed := append(b.ring.Clone(), b.ring[0])
	for _, p := range a.ring {
		if !planar.RingContains(closed, p) {
			return false
		}
	}
	return true
}
