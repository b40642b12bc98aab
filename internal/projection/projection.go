// Package projection converts between geodetic coordinates and the local
// north/east/up frame the geozone engine works in.
//
// The projection is equirectangular about an origin, the same flat-earth
// approximation navigation uses for its position estimate. It is accurate
// to well under a metre within the few kilometres a zone set spans.
package projection

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// MetresPerDegree is the length of one degree of latitude, and of longitude
// at the equator.
const MetresPerDegree = 111319.5

// E7 is the scale of persisted lat/lon values.
const E7 = 1e7

// Origin anchors the local frame. Altitude is metres above sea level.
type Origin struct {
	Lat, Lon float64 // degrees
	Alt      float64
	scale    float64 // cos(lat), shrinks longitude
}

// NewOrigin returns an origin at the given geodetic position.
func NewOrigin(lat, lon, alt float64) *Origin {
	scale := math.Cos(lat * math.Pi / 180)
	if scale < 0.01 {
		scale = 0.01
	}
	return &Origin{Lat: lat, Lon: lon, Alt: alt, scale: scale}
}

// NewOriginE7 returns an origin from persisted fixed-point coordinates.
func NewOriginE7(lat, lon int32, alt float64) *Origin {
	return NewOrigin(float64(lat)/E7, float64(lon)/E7, alt)
}

// Point returns the origin as an orb point (lon, lat).
func (o *Origin) Point() orb.Point {
	return orb.Point{o.Lon, o.Lat}
}

// ToLocal converts an orb point (lon, lat in degrees) to local metres.
func (o *Origin) ToLocal(p orb.Point) r2.Vec {
	return r2.Vec{
		X: (p.Lat() - o.Lat) * MetresPerDegree,
		Y: (p.Lon() - o.Lon) * MetresPerDegree * o.scale,
	}
}

// ToLocalE7 converts fixed-point lat/lon to local metres.
func (o *Origin) ToLocalE7(lat, lon int32) r2.Vec {
	return o.ToLocal(orb.Point{float64(lon) / E7, float64(lat) / E7})
}

// ToLocal3 converts a geodetic position with altitude above sea level to
// local metres, altitude relative to the origin.
func (o *Origin) ToLocal3(p orb.Point, alt float64) r3.Vec {
	v := o.ToLocal(p)
	return r3.Vec{X: v.X, Y: v.Y, Z: alt - o.Alt}
}

// ToGeodetic converts local metres back to an orb point.
func (o *Origin) ToGeodetic(v r2.Vec) orb.Point {
	return orb.Point{
		o.Lon + v.Y/(MetresPerDegree*o.scale),
		o.Lat + v.X/MetresPerDegree,
	}
}

// ToGeodeticE7 converts local metres to fixed-point lat/lon.
func (o *Origin) ToGeodeticE7(v r2.Vec) (lat, lon int32) {
	p := o.ToGeodetic(v)
	return int32(math.Round(p.Lat() * E7)), int32(math.Round(p.Lon() * E7))
}

// Distance returns the great circle distance in metres between two
// geodetic points.
func Distance(a, b orb.Point) float64 {
	return geo.Distance(a, b)
}
