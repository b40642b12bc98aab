package geozone

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"geozone-planner/internal/config"
)

// MessageState tells the pilot what the engine is doing.
type MessageState uint8

const (
	MessageNone MessageState = iota
	MessageNFZ
	MessageLeavingFZ
	MessageOutsideFZ
	MessageEnteringNFZ
	MessageAvoidingFB
	MessageReturnToZone
	MessageFlyoutNFZ
	MessageAvoidingAltitudeBreach
	MessagePosHold
)

var messageNames = []string{
	"none", "nfz", "leaving_fz", "outside_fz", "entering_nfz", "avoiding_fb",
	"return_to_zone", "flyout_nfz", "avoiding_altitude_breach", "pos_hold",
}

func (m MessageState) String() string {
	if int(m) < len(messageNames) {
		return messageNames[m]
	}
	return fmt.Sprintf("unknown(%d)", uint8(m))
}

func (m MessageState) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ActionState is the state of the avoidance state machine.
type ActionState uint8

const (
	StateNone ActionState = iota
	StateAvoiding
	StateAvoidingUpward
	StateAvoidingAltitude
	StateReturnToZone
	StateFlyoutNFZ
	StatePosHold
	StateRTH
)

var actionStateNames = []string{
	"none", "avoiding", "avoiding_upward", "avoiding_altitude", "return_to_zone",
	"flyout_nfz", "pos_hold", "rth",
}

func (s ActionState) String() string {
	if int(s) < len(actionStateNames) {
		return actionStateNames[s]
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

func (s ActionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is the snapshot other subsystems read. Distances are metres.
type Status struct {
	InsideFz  bool `json:"inside_fz"`
	InsideNfz bool `json:"inside_nfz"`

	DistanceHorToNearestZone  float64 `json:"distance_hor_to_nearest_zone"`
	DistanceVertToNearestZone float64 `json:"distance_vert_to_nearest_zone"`
	DirectionToNearestZone    float64 `json:"direction_to_nearest_zone"`
	// ZoneInfo is the vertical clearance to the exclusive zone about to be
	// entered, Ceiling when the zone has no altitude limits.
	ZoneInfo               float64 `json:"zone_info"`
	DistanceToZoneBorder3D float64 `json:"distance_to_zone_border_3d"`
	CurrentZoneMaxAltitude float64 `json:"current_zone_max_altitude"`
	CurrentZoneMinAltitude float64 `json:"current_zone_min_altitude"`

	NearestHorZoneHasAction bool         `json:"nearest_hor_zone_has_action"`
	MessageState            MessageState `json:"message_state"`
	SticksLocked            bool         `json:"sticks_locked"`
	// LoiterDir is 1 to circle right and -1 to circle left while a fixed
	// wing holds position at a border.
	LoiterDir int `json:"loiter_dir"`

	MaxHomeAltitude      float64 `json:"max_home_altitude"`
	HomeHasMaxAltitude   bool    `json:"home_has_max_altitude"`
	AvoidInRTHInProgress bool    `json:"avoid_in_rth_in_progress"`

	Action ActionState `json:"action"`
}

// Operand returns a status value by name, scaled to an integer the way a
// logic condition engine reads it: distances in centimetres, bearings in
// degrees, flags as 0 or 1.
func (s Status) Operand(name string) (int32, bool) {
	b := func(v bool) int32 {
		if v {
			return 1
		}
		return 0
	}
	cm := func(v float64) int32 {
		return int32(math.Max(math.MinInt32, math.Min(math.MaxInt32, math.Round(v*100))))
	}

	switch name {
	case "inside_fz":
		return b(s.InsideFz), true
	case "inside_nfz":
		return b(s.InsideNfz), true
	case "distance_hor":
		return cm(s.DistanceHorToNearestZone), true
	case "distance_vert":
		return cm(s.DistanceVertToNearestZone), true
	case "direction":
		return int32(math.Round(s.DirectionToNearestZone)), true
	case "distance_border_3d":
		return cm(s.DistanceToZoneBorder3D), true
	case "message_state":
		return int32(s.MessageState), true
	case "action_state":
		return int32(s.Action), true
	case "sticks_locked":
		return b(s.SticksLocked), true
	case "loiter_dir":
		return int32(s.LoiterDir), true
	}
	return 0, false
}

// ZoneView describes one runtime zone for display.
type ZoneView struct {
	ConfigID int                `json:"config_id"`
	Type     config.ZoneType    `json:"type"`
	Action   config.FenceAction `json:"action"`
	Shape    config.Shape       `json:"shape"`
	Enabled  bool               `json:"enabled"`
	// MinAltitude and MaxAltitude are nil when the zone is unbounded in
	// that direction.
	MinAltitude *float64 `json:"min_altitude"`
	MaxAltitude *float64 `json:"max_altitude"`
	Center      *r2.Vec  `json:"center,omitempty"`
	Radius      float64  `json:"radius,omitempty"`
	Vertices    []r2.Vec `json:"vertices,omitempty"`
}

func viewOf(z *Zone) ZoneView {
	v := ZoneView{
		ConfigID: z.ConfigID,
		Type:     z.Type,
		Action:   z.Action,
		Enabled:  z.Enabled,
	}
	if z.Band.HasMin {
		m := z.Band.Min
		v.MinAltitude = &m
	}
	if z.Band.HasMax {
		m := z.Band.Max
		v.MaxAltitude = &m
	}
	switch s := z.Shape.(type) {
	case Circle:
		c := s.Center
		v.Shape = config.ShapeCircular
		v.Center = &c
		v.Radius = s.Radius
	case Polygon:
		v.Shape = config.ShapePolygon
		v.Vertices = append([]r2.Vec(nil), s.Vertices...)
	}
	return v
}
