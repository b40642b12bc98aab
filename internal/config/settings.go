package config

import (
	"errors"
	"fmt"
)

// Settings tunes the geozone engine. Distances are metres.
type Settings struct {
	// DetectionDistance is how far ahead of the craft border crossings are
	// looked for.
	DetectionDistance float64 `yaml:"detection_distance" json:"detection_distance"`
	// AvoidAltitudeRange is the vertical clearance under which the craft
	// climbs over an exclusive zone instead of turning away.
	AvoidAltitudeRange   float64 `yaml:"avoid_altitude_range" json:"avoid_altitude_range"`
	SafeAltitudeDistance float64 `yaml:"safe_altitude_distance" json:"safe_altitude_distance"`

	SafeHomeAsInclusive bool        `yaml:"safehome_as_inclusive" json:"safehome_as_inclusive"`
	SafeHomeFenceAction FenceAction `yaml:"safehome_fence_action" json:"safehome_fence_action"`
	SafeHomeMaxDistance float64     `yaml:"safehome_max_distance" json:"safehome_max_distance"`

	CopterStopDistance float64         `yaml:"copter_stop_distance" json:"copter_stop_distance"`
	FWLoiterRadius     float64         `yaml:"fw_loiter_radius" json:"fw_loiter_radius"`
	NoWayHomeAction    NoWayHomeAction `yaml:"no_way_home_action" json:"no_way_home_action"`
	Airplane           bool            `yaml:"airplane" json:"airplane"`
}

// Default returns the flight controller defaults.
func Default() Settings {
	return Settings{
		DetectionDistance:    500,
		AvoidAltitudeRange:   50,
		SafeAltitudeDistance: 10,
		SafeHomeAsInclusive:  false,
		SafeHomeFenceAction:  ActionNone,
		SafeHomeMaxDistance:  200,
		CopterStopDistance:   150,
		FWLoiterRadius:       75,
		NoWayHomeAction:      NoWayHomeRTH,
		Airplane:             false,
	}
}

// Validate rejects settings the engine cannot work with.
func (s Settings) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %g", name, v))
		}
	}
	positive("detection_distance", s.DetectionDistance)
	positive("safe_altitude_distance", s.SafeAltitudeDistance)
	positive("copter_stop_distance", s.CopterStopDistance)
	positive("fw_loiter_radius", s.FWLoiterRadius)
	if s.AvoidAltitudeRange < 0 {
		errs = append(errs, fmt.Errorf("avoid_altitude_range must not be negative, got %g", s.AvoidAltitudeRange))
	}
	if s.SafeHomeAsInclusive {
		positive("safehome_max_distance", s.SafeHomeMaxDistance)
	}
	if s.SafeHomeFenceAction > ActionRTH {
		errs = append(errs, fmt.Errorf("safehome_fence_action: unknown value %d", s.SafeHomeFenceAction))
	}
	if s.NoWayHomeAction > NoWayHomePosHold {
		errs = append(errs, fmt.Errorf("no_way_home_action: unknown value %d", s.NoWayHomeAction))
	}
	return errors.Join(errs...)
}
