package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// Location is a geodetic position in degrees, altitude in metres above sea
// level.
type Location struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
	Alt float64 `yaml:"alt" json:"alt"`
}

func (l Location) Point() orb.Point { return orb.Point{l.Lon, l.Lat} }

// File is everything a zone file can describe.
type File struct {
	Settings Settings
	Store    *Store
	// Origin of the local frame, when the file names one.
	Origin *Location
}

type yamlZone struct {
	Shape       Shape       `yaml:"shape"`
	Type        ZoneType    `yaml:"type"`
	MinAlt      float64     `yaml:"min_alt"` // m
	MaxAlt      float64     `yaml:"max_alt"` // m, 0 = no ceiling
	SeaLevelRef bool        `yaml:"sea_level_ref"`
	Action      FenceAction `yaml:"action"`
	Center      []float64   `yaml:"center"` // lat, lon
	Radius      float64     `yaml:"radius"` // m
	Points      [][]float64 `yaml:"points"` // [lat, lon] ...
}

type yamlSafeHome struct {
	Enabled *bool   `yaml:"enabled"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
}

type yamlDoc struct {
	Origin    *Location      `yaml:"origin"`
	Settings  Settings       `yaml:"settings"`
	Zones     []yamlZone     `yaml:"zones"`
	SafeHomes []yamlSafeHome `yaml:"safehomes"`
}

// Load reads a zone file. The format follows the extension: .yaml/.yml for
// the native format, .geojson/.json for a GeoJSON feature collection and
// anything else is parsed as a CLI dump.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading zone file: %w", err)
	}

	var f *File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err = ParseYAML(data)
	case ".geojson", ".json":
		var store *Store
		store, err = LoadGeoJSON(data, NewStore())
		f = &File{Settings: Default(), Store: store}
	default:
		f, err = ParseCLI(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseYAML decodes the native zone file format. Settings missing from the
// file keep their defaults.
func ParseYAML(data []byte) (*File, error) {
	doc := yamlDoc{Settings: Default()}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	if err := doc.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	if len(doc.Zones) > MaxZonesInConfig {
		return nil, fmt.Errorf("%d zones: %w", len(doc.Zones), ErrTooManyZones)
	}
	if len(doc.SafeHomes) > MaxSafeHomes {
		return nil, fmt.Errorf("%d safehomes, at most %d allowed", len(doc.SafeHomes), MaxSafeHomes)
	}

	store := NewStore()
	for i, z := range doc.Zones {
		if err := z.apply(store, i); err != nil {
			return nil, err
		}
	}
	for i, sh := range doc.SafeHomes {
		store.SafeHomes[i] = SafeHome{
			Enabled: sh.Enabled == nil || *sh.Enabled,
			Lat:     toE7(sh.Lat),
			Lon:     toE7(sh.Lon),
		}
	}

	return &File{Settings: doc.Settings, Store: store, Origin: doc.Origin}, nil
}

func (z yamlZone) apply(store *Store, id int) error {
	if z.MaxAlt != 0 && z.MaxAlt <= z.MinAlt {
		return fmt.Errorf("zone %d: max_alt %g must be above min_alt %g: %w", id, z.MaxAlt, z.MinAlt, ErrBadZone)
	}
	store.Zones[id] = ZoneConfig{
		Shape:       z.Shape,
		Type:        z.Type,
		MinAltitude: int32(math.Round(z.MinAlt * 100)),
		MaxAltitude: int32(math.Round(z.MaxAlt * 100)),
		SeaLevelRef: z.SeaLevelRef,
		FenceAction: z.Action,
	}

	switch z.Shape {
	case ShapeCircular:
		if len(z.Center) != 2 {
			return fmt.Errorf("zone %d: circle needs center [lat, lon]: %w", id, ErrBadZone)
		}
		return store.SetCircle(id, toE7(z.Center[0]), toE7(z.Center[1]), int32(math.Round(z.Radius*100)))
	case ShapePolygon:
		points := make([]orb.Point, 0, len(z.Points))
		for j, p := range z.Points {
			if len(p) != 2 {
				return fmt.Errorf("zone %d point %d: want [lat, lon]: %w", id, j, ErrBadZone)
			}
			points = append(points, orb.Point{p[1], p[0]})
		}
		return store.SetPolygon(id, points)
	}
	return fmt.Errorf("zone %d: shape %v: %w", id, z.Shape, ErrBadZone)
}
