// Package sim is a simple simulated vehicle. It stands in for the
// position estimator and the flight mode logic around a geozone engine, so
// zone files can be tried out without a flight controller.
package sim

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/geom"
	"geozone-planner/internal/geozone"
)

// ClimbRate is the vertical speed used while flying to an altitude target.
const ClimbRate = 3.0

// Commands is what the engine has asked the vehicle to do.
type Commands struct {
	SendTo        *geozone.SendTo `json:"send_to,omitempty"`
	SticksLocked  bool            `json:"sticks_locked"`
	ForcedPosHold bool            `json:"forced_pos_hold"`
	ForcedRTH     bool            `json:"forced_rth"`
	// AltitudeTarget is the last altitude handed to the altitude
	// controller.
	AltitudeTarget *float64 `json:"altitude_target,omitempty"`
}

// Vehicle implements geozone.Navigator and geozone.Executor.
type Vehicle struct {
	mu    sync.Mutex
	state geozone.VehicleState
	cmd   Commands
}

// New returns a vehicle in the given state.
func New(st geozone.VehicleState) *Vehicle {
	return &Vehicle{state: st}
}

// State implements geozone.Navigator.
func (v *Vehicle) State() geozone.VehicleState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// SetState replaces the vehicle state, as reported by a real estimator.
func (v *Vehicle) SetState(st geozone.VehicleState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = st
}

// Commands returns a copy of the active commands.
func (v *Vehicle) Commands() Commands {
	v.mu.Lock()
	defer v.mu.Unlock()
	c := v.cmd
	if c.SendTo != nil {
		s := *c.SendTo
		c.SendTo = &s
	}
	if c.AltitudeTarget != nil {
		a := *c.AltitudeTarget
		c.AltitudeTarget = &a
	}
	return c
}

func (v *Vehicle) ActivateSendTo(cmd geozone.SendTo) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cmd.SendTo = &cmd
	v.cmd.SticksLocked = cmd.LockSticks
}

func (v *Vehicle) AbortSendTo() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cmd.SendTo = nil
	v.cmd.SticksLocked = false
}

func (v *Vehicle) SendToActive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cmd.SendTo != nil
}

func (v *Vehicle) ReleaseSticks() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cmd.SticksLocked = false
}

func (v *Vehicle) ActivateForcedPosHold() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cmd.ForcedPosHold = true
}

func (v *Vehicle) AbortForcedPosHold() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cmd.ForcedPosHold = false
}

func (v *Vehicle) ActivateForcedRTH() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cmd.ForcedRTH = true
	v.state.NavRTHActive = true
}

func (v *Vehicle) AbortForcedRTH() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cmd.ForcedRTH = false
	v.state.NavRTHActive = false
}

func (v *Vehicle) HoldAltitude(z float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cmd.AltitudeTarget = &z
}

// Step advances the vehicle by dt. A send-to target is flown to at the
// current ground speed and ClimbRate and is dropped once reached; forced
// pos-hold stops the craft; otherwise it keeps its course and climb rate.
func (v *Vehicle) Step(dt time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := dt.Seconds()
	st := &v.state

	switch {
	case v.cmd.ForcedPosHold:
		st.Velocity = r3.Vec{}

	case v.cmd.SendTo != nil:
		target := v.cmd.SendTo.TargetPos
		pos := geom.Flat(st.Position)
		horizontal := geom.Distance2D(pos, geom.Flat(target))
		vertical := target.Z - st.Position.Z

		if horizontal > geozone.PosDetectionDistance {
			st.GroundCourse = geom.Bearing(pos, geom.Flat(target))
		}
		dir := geom.CourseVector(st.GroundCourse)
		st.Velocity.X = dir.X * st.GroundSpeed
		st.Velocity.Y = dir.Y * st.GroundSpeed
		st.Velocity.Z = math.Copysign(math.Min(ClimbRate, math.Abs(vertical)/math.Max(s, 1e-3)), vertical)

		if horizontal <= v.cmd.SendTo.TargetRange && math.Abs(vertical) <= math.Max(v.cmd.SendTo.AltitudeTargetRange, 0.5) {
			v.cmd.SendTo = nil
			v.cmd.SticksLocked = false
		}

	default:
		dir := geom.CourseVector(st.GroundCourse)
		st.Velocity.X = dir.X * st.GroundSpeed
		st.Velocity.Y = dir.Y * st.GroundSpeed
	}

	st.Position = r3.Add(st.Position, r3.Scale(s, st.Velocity))
}
