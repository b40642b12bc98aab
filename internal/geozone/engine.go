// Package geozone enforces three dimensional fly zones and no-fly zones.
//
// An Engine is built from the persisted zone records and is driven by the
// host calling Update at a fixed rate. On each tick it classifies the
// craft's position against the zones, looks ahead along the flight path
// for border crossings and, in the assisted flight modes, turns, climbs,
// holds or returns the craft before it breaches a zone. When return to
// home is started it plans a detour around the no-fly zones that block the
// direct way home.
//
// All engine state is owned by the Engine value. The engine is not safe
// for concurrent use; the host serialises calls.
package geozone

import (
	"errors"
	"math"
	"time"

	"github.com/paulmach/orb/geo"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/config"
	"geozone-planner/internal/log"
)

const (
	// PosDetectionDistance is how close the craft must come to a send-to
	// target for it to count as reached.
	PosDetectionDistance = 75.0
	StickLockMinTime     = 2500 * time.Millisecond
	AvoidTimeout         = 30 * time.Second
	RTHOverrideTimeout   = time.Second
	// StickMoveThreshold is the summed stick deflection that ends a forced
	// pos-hold or RTH once the sticks are unlocked.
	StickMoveThreshold = 40

	altitudeTargetRange = 2.0
	// aboveOrUnderRange is the vertical distance within which a craft
	// above or below its zone climbs or sinks back into it in place.
	aboveOrUnderRange = 20.0
	farAwayDistance   = 1000.0
	// courseTolerance is how close the ground course must come to the
	// bounce course for an avoid manoeuvre to end.
	courseTolerance = 5.0
)

// Engine is the geozone engine.
type Engine struct {
	store    *config.Store
	settings config.Settings
	nav      Navigator
	exec     Executor
	proj     Projector
	log      *log.Logger

	initialised bool
	enabled     bool
	reg         *Registry

	vehicle VehicleState
	info    zoneInfo
	status  Status

	state         ActionState
	actionStart   time.Time
	avoidCourse   float64
	avoidingPoint r3.Vec
	sendTo        SendTo
	lockRTZ       bool

	noZoneRTH        bool
	rthSwitchLast    bool
	rthOverrideStart time.Time
	rthWaypoints     []r3.Vec
	rthIndex         int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger the engine reports to.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// New returns an engine for the zones in store. The zones are built on
// the first tick with a healthy position estimate.
func New(store *config.Store, settings config.Settings, nav Navigator, exec Executor, proj Projector, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		settings: settings,
		nav:      nav,
		exec:     exec,
		proj:     proj,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// init builds the registry. A failed build leaves the engine disabled for
// the rest of the flight.
func (e *Engine) init(st VehicleState) {
	e.initialised = true

	reg, err := buildRegistry(buildInput{
		store:        e.store,
		settings:     e.settings,
		proj:         e.proj,
		position:     st.Position,
		homeAltitude: st.HomeAltitude,
		safeHome:     e.nearestSafeHome(st),
	})
	if err != nil {
		e.enabled = false
		if errors.Is(err, ErrNoZones) {
			e.log.Info("geozones inactive", "reason", err)
		} else {
			e.log.Warn("geozones disabled", "error", err)
		}
		return
	}

	e.reg = reg
	e.enabled = true
	e.log.Info("geozones active", "zones", len(reg.Active()), "inclusive", reg.InclusiveActive())
}

// nearestSafeHome returns the local position of the enabled safehome
// closest to home, if one is within the configured distance.
func (e *Engine) nearestSafeHome(st VehicleState) *r2.Vec {
	if !e.settings.SafeHomeAsInclusive {
		return nil
	}
	home := e.proj.ToGeodetic(r2.Vec{X: st.Home.X, Y: st.Home.Y})

	best := math.Inf(1)
	var found *r2.Vec
	for _, sh := range e.store.SafeHomes {
		if !sh.Enabled {
			continue
		}
		d := geo.Distance(home, sh.Point())
		if d > e.settings.SafeHomeMaxDistance || d >= best {
			continue
		}
		best = d
		p := e.proj.ToLocalE7(sh.Lat, sh.Lon)
		found = &p
	}
	return found
}

// Update runs one tick of the engine.
func (e *Engine) Update(now time.Time) {
	st := e.nav.State()
	e.vehicle = st

	e.status.MessageState = MessageNone
	if !e.initialised && st.PositionHealthy {
		e.init(st)
	}
	if !st.Armed || !e.IsActive() {
		e.noZoneRTH = false
		return
	}

	// Toggling the RTH switch twice in quick succession drops the detour
	// and flies straight home.
	if e.status.AvoidInRTHInProgress {
		if e.rthSwitchLast != st.Modes.RTH {
			if now.Sub(e.rthOverrideStart) < RTHOverrideTimeout {
				e.ResetRTH()
				e.noZoneRTH = true
				e.log.Info("rth detour overridden")
			}
			e.rthOverrideStart = now
		}
		e.rthSwitchLast = st.Modes.RTH
	}

	e.refresh(st)

	if e.settings.Airplane && st.Launching {
		return
	}

	if !st.Modes.Assisted() {
		if e.state != StateNone {
			e.endFenceAction()
		}
		e.lockRTZ = false
		return
	}

	if e.state != StateNone {
		e.continueAction(now)
		return
	}

	if (st.Modes.Horizon || st.Modes.Angle) && e.info.nearestHasAction &&
		math.Abs(e.info.distVert) > 0 && math.Abs(e.info.distVert) < e.settings.SafeAltitudeDistance {
		e.nudgeAltitude(now)
		return
	}

	if st.NavRTHActive || st.Modes.RTH {
		// RTH flies out of a no-fly zone first, the detour and the rest
		// of the way home belong to RTH.
		if e.info.insideNfz && !e.lockRTZ {
			e.returnToZone(now, true)
		}
		return
	} else if e.status.AvoidInRTHInProgress {
		e.ResetRTH()
	}

	if e.lockRTZ && (e.info.insideFz || e.info.insideNfz) {
		e.lockRTZ = false
	}

	if e.info.insideNfz || (!e.info.insideFz && e.reg.InclusiveActive()) {
		if e.reg.InclusiveActive() && !e.info.insideFz {
			e.status.MessageState = MessageOutsideFZ
		}
		if e.info.insideNfz {
			e.status.MessageState = MessageNFZ
		}
		e.returnToZone(now, false)
	}

	e.checkIntersection(now)
}

// refresh classifies the current position into the status.
func (e *Engine) refresh(st VehicleState) {
	e.info = e.reg.classify(st.Position, e.settings.SafeAltitudeDistance)

	s := &e.status
	s.InsideFz = e.info.insideFz
	s.InsideNfz = e.info.insideNfz
	s.DistanceHorToNearestZone = e.info.distHor
	s.DistanceVertToNearestZone = e.info.distVert
	s.DirectionToNearestZone = e.info.direction
	s.CurrentZoneMaxAltitude = e.info.zoneMax
	s.CurrentZoneMinAltitude = e.info.zoneMin
	s.NearestHorZoneHasAction = e.info.nearestHasAction
}

// checkIntersection looks ahead along the flight path and starts a fence
// action when it leaves a fly zone or enters a no-fly zone.
func (e *Engine) checkIntersection(now time.Time) {
	st := e.vehicle
	preview := previewPoint(st, e.settings.DetectionDistance)
	zone, hit, ok := e.reg.nearestIntersection(st.Position, preview, e.settings.DetectionDistance)
	if !ok {
		return
	}

	if e.info.insideFz && !e.reg.inAnyOtherZone(zone, config.TypeInclusive, hit.Point) {
		e.status.DistanceToZoneBorder3D = math.Round(hit.Distance)
		e.status.MessageState = MessageLeavingFZ
		e.performFenceAction(now, zone, hit.Point, preview)
	}

	if !e.info.insideNfz && zone.Exclusive() && (zone.Band.HasMin || hit.Point.Z > 0) {
		e.status.DistanceToZoneBorder3D = math.Round(hit.Distance)
		e.status.ZoneInfo = verticalClearance(zone, st.Position.Z)
		e.status.MessageState = MessageEnteringNFZ
		e.performFenceAction(now, zone, hit.Point, preview)
	}
}

// verticalClearance is the signed altitude difference from z to the
// nearer vertical limit of the zone, Ceiling when it has none.
func verticalClearance(z *Zone, alt float64) float64 {
	switch {
	case z.Infinite:
		return Ceiling
	case !z.Band.HasMax:
		return z.Band.Min - alt
	case !z.Band.HasMin:
		return z.Band.Max - alt
	}
	toMax, toMin := z.Band.Max-alt, z.Band.Min-alt
	if math.Abs(toMin) < math.Abs(toMax) {
		return toMin
	}
	return toMax
}

// IsActive reports whether the engine enforces any zone.
func (e *Engine) IsActive() bool {
	return e.initialised && e.enabled && e.reg != nil && len(e.reg.Active()) > 0
}

// IsBlockingArming reports whether the craft sits in a no-fly zone, or
// outside every fly zone while one is active.
func (e *Engine) IsBlockingArming() bool {
	if !e.IsActive() {
		return false
	}
	pos := e.nav.State().Position
	info := e.reg.currentZones(pos)
	if info.insideNfz {
		return true
	}
	if info.insideFz {
		return false
	}
	return e.reg.InclusiveActive()
}

// DetectionDistance is the distance from a border at which fence actions
// are still started, and the clearance kept when planning detours.
func (e *Engine) DetectionDistance() float64 {
	if e.settings.Airplane {
		return e.settings.FWLoiterRadius * 1.5
	}
	return e.settings.CopterStopDistance
}

// ActionState returns the state of the avoidance state machine.
func (e *Engine) ActionState() ActionState {
	return e.state
}

// Status returns a snapshot of the engine status.
func (e *Engine) Status() Status {
	s := e.status
	s.Action = e.state
	return s
}

// Operand returns a named status value for a logic condition engine.
func (e *Engine) Operand(name string) (int32, bool) {
	return e.Status().Operand(name)
}

// Zones describes the runtime zones, enabled ones first.
func (e *Engine) Zones() []ZoneView {
	if e.reg == nil {
		return nil
	}
	out := make([]ZoneView, len(e.reg.zones))
	for i := range e.reg.zones {
		out[i] = viewOf(&e.reg.zones[i])
	}
	return out
}

// SendTo returns the last send-to command issued.
func (e *Engine) SendTo() SendTo {
	return e.sendTo
}
