package geozone

import (
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Modes are the flight modes selected on the transmitter.
type Modes struct {
	Cruise     bool `json:"cruise"`
	CourseHold bool `json:"course_hold"`
	Angle      bool `json:"angle"`
	Horizon    bool `json:"horizon"`
	AltHold    bool `json:"alt_hold"`
	RTH        bool `json:"rth"`
}

// Assisted reports whether one of the modes the engine acts in is selected.
func (m Modes) Assisted() bool {
	return m.Cruise || m.CourseHold || m.Angle || m.Horizon
}

// VehicleState is what the engine needs to know about the craft on each
// tick. Positions are local metres, speeds m/s and courses degrees.
type VehicleState struct {
	PositionHealthy bool    `json:"position_healthy"`
	Armed           bool    `json:"armed"`
	Position        r3.Vec  `json:"position"`
	Velocity        r3.Vec  `json:"velocity"`
	GroundCourse    float64 `json:"ground_course"`
	GroundSpeed     float64 `json:"ground_speed"`
	Modes           Modes   `json:"modes"`
	// StickDeflection is the summed distance of the roll, pitch and yaw
	// sticks from centre, in PWM microseconds.
	StickDeflection int `json:"stick_deflection"`
	// Launching is set while a fixed wing launch is in progress.
	Launching bool `json:"launching"`
	// NavRTHActive is set while the navigation system flies home on its
	// own: automatic or forced RTH, or auto landing.
	NavRTHActive bool   `json:"nav_rth_active"`
	Home         r3.Vec `json:"home"`
	// HomeAltitude is the altitude of home above sea level.
	HomeAltitude float64 `json:"home_altitude"`
}

// Navigator supplies the estimated vehicle state.
type Navigator interface {
	State() VehicleState
}

// SendTo is a "fly to this point" command.
type SendTo struct {
	TargetPos r3.Vec `json:"target_pos"`
	// TargetRange is how close the craft must get for the target to count
	// as reached.
	TargetRange         float64       `json:"target_range"`
	AltitudeTargetRange float64       `json:"altitude_target_range"`
	LockSticks          bool          `json:"lock_sticks"`
	LockStickTime       time.Duration `json:"lock_stick_time"`
}

// Executor carries out the engine's commands in the flight mode logic.
type Executor interface {
	ActivateSendTo(cmd SendTo)
	AbortSendTo()
	SendToActive() bool
	// ReleaseSticks gives stick control back while a send-to runs on.
	ReleaseSticks()
	ActivateForcedPosHold()
	AbortForcedPosHold()
	ActivateForcedRTH()
	AbortForcedRTH()
	// HoldAltitude sets the altitude target of the altitude controller.
	HoldAltitude(z float64)
}

// Projector converts between geodetic and local coordinates.
type Projector interface {
	ToLocalE7(lat, lon int32) r2.Vec
	ToGeodetic(v r2.Vec) orb.Point
}
