// Package config holds the persisted geozone records and the engine
// settings, and loads them from YAML files, CLI dumps and GeoJSON.
//
// Records keep the flight controller's storage layout: coordinates are
// degrees scaled by 1e7 and altitudes are centimetres. A circular zone uses
// two vertex records, the centre at index 0 and the radius in centimetres
// in the Lat field of index 1.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

const (
	MaxZonesInConfig    = 63
	MaxVerticesInConfig = 126
	MaxSafeHomes        = 8
)

var (
	ErrVertexMismatch  = errors.New("vertex records do not match zone vertex counts")
	ErrTooManyZones    = errors.New("too many zones")
	ErrTooManyVertices = errors.New("too many vertices")
	ErrBadZone         = errors.New("invalid zone")
)

type Shape uint8

const (
	ShapeCircular Shape = iota
	ShapePolygon
)

type ZoneType uint8

const (
	TypeExclusive ZoneType = iota
	TypeInclusive
)

type FenceAction uint8

const (
	ActionNone FenceAction = iota
	ActionAvoid
	ActionPosHold
	ActionRTH
)

// NoWayHomeAction is what RTH does when no detour around the zones exists.
type NoWayHomeAction uint8

const (
	NoWayHomeRTH NoWayHomeAction = iota
	NoWayHomePosHold
)

var (
	shapeNames     = []string{"circle", "polygon"}
	typeNames      = []string{"exclusive", "inclusive"}
	actionNames    = []string{"none", "avoid", "pos_hold", "rth"}
	noWayHomeNames = []string{"rth", "pos_hold"}
)

func enumString(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("unknown(%d)", v)
}

func enumParse(names []string, what string, s string) (uint8, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("%s: unknown value %q", what, s)
}

func (s Shape) String() string           { return enumString(shapeNames, uint8(s)) }
func (t ZoneType) String() string        { return enumString(typeNames, uint8(t)) }
func (a FenceAction) String() string     { return enumString(actionNames, uint8(a)) }
func (a NoWayHomeAction) String() string { return enumString(noWayHomeNames, uint8(a)) }

func (s Shape) MarshalText() ([]byte, error)           { return []byte(s.String()), nil }
func (t ZoneType) MarshalText() ([]byte, error)        { return []byte(t.String()), nil }
func (a FenceAction) MarshalText() ([]byte, error)     { return []byte(a.String()), nil }
func (a NoWayHomeAction) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (s *Shape) UnmarshalText(b []byte) error {
	v, err := enumParse(shapeNames, "shape", string(b))
	*s = Shape(v)
	return err
}

func (t *ZoneType) UnmarshalText(b []byte) error {
	v, err := enumParse(typeNames, "type", string(b))
	*t = ZoneType(v)
	return err
}

func (a *FenceAction) UnmarshalText(b []byte) error {
	v, err := enumParse(actionNames, "fence action", string(b))
	*a = FenceAction(v)
	return err
}

func (a *NoWayHomeAction) UnmarshalText(b []byte) error {
	v, err := enumParse(noWayHomeNames, "no way home action", string(b))
	*a = NoWayHomeAction(v)
	return err
}

// ZoneConfig is one persisted zone descriptor. A MaxAltitude of 0 means the
// zone has no ceiling, a MinAltitude of 0 means it reaches the ground.
type ZoneConfig struct {
	Shape       Shape
	Type        ZoneType
	MinAltitude int32 // cm
	MaxAltitude int32 // cm
	SeaLevelRef bool
	FenceAction FenceAction
	VertexCount uint8
}

// VertexRecord is one entry of the flattened vertex table. ZoneID -1 marks
// a free slot.
type VertexRecord struct {
	ZoneID int8
	Index  uint8
	Lat    int32
	Lon    int32
}

// Point returns the vertex as an orb point (lon, lat in degrees).
func (v VertexRecord) Point() orb.Point {
	return orb.Point{float64(v.Lon) / 1e7, float64(v.Lat) / 1e7}
}

type SafeHome struct {
	Enabled bool
	Lat     int32
	Lon     int32
}

func (s SafeHome) Point() orb.Point {
	return orb.Point{float64(s.Lon) / 1e7, float64(s.Lat) / 1e7}
}

// Store is the persisted configuration: fixed size zone and vertex tables
// plus the safehome list.
type Store struct {
	Zones     [MaxZonesInConfig]ZoneConfig
	Vertices  [MaxVerticesInConfig]VertexRecord
	SafeHomes [MaxSafeHomes]SafeHome
}

// NewStore returns a store with every zone reset and every vertex slot free.
func NewStore() *Store {
	s := &Store{}
	s.ResetZone(-1)
	s.ResetVertices(-1, -1)
	return s
}

// ResetZone resets zone idx to the default descriptor, or every zone when
// idx is negative.
func (s *Store) ResetZone(idx int) {
	if idx < 0 {
		for i := range s.Zones {
			s.Zones[i] = ZoneConfig{}
		}
		return
	}
	if idx < MaxZonesInConfig {
		s.Zones[idx] = ZoneConfig{}
	}
}

// ResetVertices frees vertex records. With zoneID and idx both negative
// every record is freed and every zone's vertex count cleared. With only
// idx negative the zone's records are freed. Otherwise the single record is
// freed and the zone's count decremented.
func (s *Store) ResetVertices(zoneID, idx int) {
	switch {
	case zoneID < 0 && idx < 0:
		for i := range s.Vertices {
			s.Vertices[i] = VertexRecord{ZoneID: -1}
		}
		for i := range s.Zones {
			s.Zones[i].VertexCount = 0
		}
	case zoneID >= 0 && zoneID < MaxZonesInConfig && idx < 0:
		found := false
		for i := range s.Vertices {
			if int(s.Vertices[i].ZoneID) == zoneID {
				s.Vertices[i] = VertexRecord{ZoneID: -1}
				found = true
			}
		}
		if found {
			s.Zones[zoneID].VertexCount = 0
		}
	case zoneID >= 0 && zoneID < MaxZonesInConfig && idx < MaxVerticesInConfig:
		if i := s.VertexIndex(zoneID, idx); i >= 0 {
			s.Vertices[i] = VertexRecord{ZoneID: -1}
			if s.Zones[zoneID].VertexCount > 0 {
				s.Zones[zoneID].VertexCount--
			}
		}
	}
}

// SetVertex stores vertex idx of zone zoneID, overwriting an existing
// record or taking the first free slot. It returns false when the table is
// full or the indices are out of range.
func (s *Store) SetVertex(zoneID, idx int, lat, lon int32) bool {
	if zoneID < 0 || zoneID >= MaxZonesInConfig || idx < 0 || idx >= MaxVerticesInConfig {
		return false
	}
	if i := s.VertexIndex(zoneID, idx); i >= 0 {
		s.Vertices[i].Lat = lat
		s.Vertices[i].Lon = lon
		return true
	}
	for i := range s.Vertices {
		if s.Vertices[i].ZoneID == -1 {
			s.Vertices[i] = VertexRecord{ZoneID: int8(zoneID), Index: uint8(idx), Lat: lat, Lon: lon}
			return true
		}
	}
	return false
}

// VertexIndex returns the table slot holding vertex idx of zoneID, or -1.
func (s *Store) VertexIndex(zoneID, idx int) int {
	for i, v := range s.Vertices {
		if int(v.ZoneID) == zoneID && int(v.Index) == idx {
			return i
		}
	}
	return -1
}

// UsedVertexCount sums the configured vertex counts of all zones.
func (s *Store) UsedVertexCount() int {
	n := 0
	for _, z := range s.Zones {
		n += int(z.VertexCount)
	}
	return n
}

// FreeVertexSlots counts unused vertex records.
func (s *Store) FreeVertexSlots() int {
	n := 0
	for _, v := range s.Vertices {
		if v.ZoneID == -1 {
			n++
		}
	}
	return n
}

// SetCircle turns zone zoneID into a circle around lat/lon. The zone's type,
// altitudes and action are kept.
func (s *Store) SetCircle(zoneID int, lat, lon int32, radiusCm int32) error {
	if zoneID < 0 || zoneID >= MaxZonesInConfig {
		return fmt.Errorf("zone %d: %w", zoneID, ErrBadZone)
	}
	if radiusCm <= 0 {
		return fmt.Errorf("zone %d: radius must be positive: %w", zoneID, ErrBadZone)
	}
	s.ResetVertices(zoneID, -1)
	if !s.SetVertex(zoneID, 0, lat, lon) || !s.SetVertex(zoneID, 1, radiusCm, 0) {
		s.ResetVertices(zoneID, -1)
		return fmt.Errorf("zone %d: %w", zoneID, ErrTooManyVertices)
	}
	s.Zones[zoneID].Shape = ShapeCircular
	s.Zones[zoneID].VertexCount = 2
	return nil
}

// SetPolygon replaces the vertices of zone zoneID.
func (s *Store) SetPolygon(zoneID int, points []orb.Point) error {
	if zoneID < 0 || zoneID >= MaxZonesInConfig {
		return fmt.Errorf("zone %d: %w", zoneID, ErrBadZone)
	}
	if len(points) < 3 {
		return fmt.Errorf("zone %d: polygon needs at least 3 points, got %d: %w", zoneID, len(points), ErrBadZone)
	}
	s.ResetVertices(zoneID, -1)
	if s.FreeVertexSlots() < len(points) {
		return fmt.Errorf("zone %d: %d points: %w", zoneID, len(points), ErrTooManyVertices)
	}
	for i, p := range points {
		s.SetVertex(zoneID, i, toE7(p.Lat()), toE7(p.Lon()))
	}
	s.Zones[zoneID].Shape = ShapePolygon
	s.Zones[zoneID].VertexCount = uint8(len(points))
	return nil
}

// FreeZone returns the first zone slot without vertices, or -1.
func (s *Store) FreeZone() int {
	for i, z := range s.Zones {
		if z.VertexCount == 0 {
			return i
		}
	}
	return -1
}

// CheckVertices verifies that the vertex table holds exactly the records
// the zone descriptors announce.
func (s *Store) CheckVertices() error {
	found := 0
	for _, v := range s.Vertices {
		if v.ZoneID >= 0 && int(v.ZoneID) < MaxZonesInConfig {
			found++
		}
	}
	if want := s.UsedVertexCount(); found != want {
		return fmt.Errorf("%d records, %d expected: %w", found, want, ErrVertexMismatch)
	}
	return nil
}

func toE7(deg float64) int32 {
	if deg < 0 {
		return int32(deg*1e7 - 0.5)
	}
	return int32(deg*1e7 + 0.5)
}
