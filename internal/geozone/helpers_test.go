package geozone

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/config"
	"geozone-planner/internal/projection"
)

var (
	testOrigin = projection.NewOrigin(50.85, 5.69, 0)
	t0         = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

// fakeHost records the engine's commands and serves a fixed state.
type fakeHost struct {
	st VehicleState

	sendTo   *SendTo
	released bool
	posHold  bool
	rth      bool
	altitude *float64
}

func (f *fakeHost) State() VehicleState       { return f.st }
func (f *fakeHost) ActivateSendTo(cmd SendTo) { f.sendTo = &cmd }
func (f *fakeHost) AbortSendTo()              { f.sendTo = nil }
func (f *fakeHost) SendToActive() bool        { return f.sendTo != nil }
func (f *fakeHost) ReleaseSticks()            { f.released = true }
func (f *fakeHost) ActivateForcedPosHold()    { f.posHold = true }
func (f *fakeHost) AbortForcedPosHold()       { f.posHold = false }
func (f *fakeHost) ActivateForcedRTH()        { f.rth = true }
func (f *fakeHost) AbortForcedRTH()           { f.rth = false }
func (f *fakeHost) HoldAltitude(z float64)    { f.altitude = &z }

type zoneSpec struct {
	typ      config.ZoneType
	action   config.FenceAction
	min, max float64 // metres, 0 = unbounded
}

func addCircle(t *testing.T, s *config.Store, id int, spec zoneSpec, center r2.Vec, radius float64) {
	t.Helper()
	lat, lon := testOrigin.ToGeodeticE7(center)
	require.NoError(t, s.SetCircle(id, lat, lon, int32(radius*100)))
	setSpec(s, id, spec)
}

func addPolygon(t *testing.T, s *config.Store, id int, spec zoneSpec, vertices ...r2.Vec) {
	t.Helper()
	pts := make([]orb.Point, len(vertices))
	for i, v := range vertices {
		pts[i] = testOrigin.ToGeodetic(v)
	}
	require.NoError(t, s.SetPolygon(id, pts))
	setSpec(s, id, spec)
}

func setSpec(s *config.Store, id int, spec zoneSpec) {
	s.Zones[id].Type = spec.typ
	s.Zones[id].FenceAction = spec.action
	s.Zones[id].MinAltitude = int32(spec.min * 100)
	s.Zones[id].MaxAltitude = int32(spec.max * 100)
}

// flying is an armed, healthy craft at pos in angle mode.
func flying(pos r3.Vec, course, speed float64) VehicleState {
	return VehicleState{
		PositionHealthy: true,
		Armed:           true,
		Position:        pos,
		GroundCourse:    course,
		GroundSpeed:     speed,
		Modes:           Modes{Angle: true},
	}
}

func newTestEngine(store *config.Store, settings config.Settings, st VehicleState) (*Engine, *fakeHost) {
	host := &fakeHost{st: st}
	return New(store, settings, host, host, testOrigin), host
}

func buildTest(t *testing.T, store *config.Store, settings config.Settings, pos r3.Vec) *Registry {
	t.Helper()
	reg, err := buildRegistry(buildInput{store: store, settings: settings, proj: testOrigin, position: pos})
	require.NoError(t, err)
	return reg
}
