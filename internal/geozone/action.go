package geozone

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"geozone-planner/internal/config"
	"geozone-planner/internal/geom"
)

// performFenceAction starts the zone's fence action for a predicted
// crossing at hit. It does nothing while another action runs.
func (e *Engine) performFenceAction(now time.Time, zone *Zone, hit, preview r3.Vec) {
	st := e.vehicle
	if e.state != StateNone || !st.Modes.Assisted() || e.status.AvoidInRTHInProgress {
		return
	}
	if geom.Distance2D(geom.Flat(st.Position), geom.Flat(hit)) > e.DetectionDistance() {
		return
	}
	// Grazing a floor or ceiling needs no action.
	cm := math.Round(hit.Z * 100)
	if (zone.Band.HasMax && cm == math.Round(zone.Band.Max*100)) || (zone.Band.HasMin && cm == math.Round(zone.Band.Min*100)) {
		return
	}

	safe := e.settings.SafeAltitudeDistance
	det := e.settings.DetectionDistance

	switch zone.Action {
	case config.ActionAvoid:
		stepAlt, step := e.inclusiveStep(zone, hit)
		climb := zone.Exclusive() && e.status.ZoneInfo > 0 && e.status.ZoneInfo < e.settings.AvoidAltitudeRange
		if climb || step {
			target := geom.FarAwayTarget(st.Position, st.GroundCourse, det*2)
			if step {
				target.Z = stepAlt
			} else {
				target.Z = zone.Band.Top() + safe*2
			}
			e.startSendTo(now, StateAvoidingUpward, SendTo{
				TargetPos:           target,
				TargetRange:         PosDetectionDistance,
				AltitudeTargetRange: safe / 2,
				LockSticks:          true,
				LockStickTime:       StickLockMinTime,
			})
			e.avoidingPoint = hit
			return
		}

		course, ok := bounceCourse(zone, st, hit, preview)
		if !ok {
			return
		}
		target := geom.FarAwayTarget(st.Position, course, det*2)
		if e.info.zoneMax > 0 && st.Position.Z > e.info.zoneMax {
			target.Z = e.info.zoneMax - safe*0.25
		} else if e.info.zoneMin != 0 && st.Position.Z < e.info.zoneMin {
			target.Z = e.info.zoneMin + safe*0.25
		}
		e.avoidCourse = course
		e.avoidingPoint = hit
		e.startSendTo(now, StateAvoiding, SendTo{
			TargetPos:           target,
			TargetRange:         PosDetectionDistance,
			AltitudeTargetRange: safe / 2,
			LockSticks:          true,
			LockStickTime:       AvoidTimeout,
		})

	case config.ActionPosHold:
		if e.settings.Airplane {
			e.status.LoiterDir = loiterDirection(zone, st, hit, preview, det)
		}
		e.state = StatePosHold
		e.status.SticksLocked = true
		e.actionStart = now
		e.exec.ActivateForcedPosHold()
		e.log.Info("fence action", "action", "pos_hold", "zone", zone.ConfigID)

	case config.ActionRTH:
		e.state = StateRTH
		e.status.SticksLocked = true
		e.actionStart = now
		e.exec.ActivateForcedRTH()
		e.log.Info("fence action", "action", "rth", "zone", zone.ConfigID)
	}
}

// inclusiveStep finds the lowest floor of an inclusive zone stacked above
// the crossing with an inclusive zone, so the craft can climb into it
// instead of turning away.
func (e *Engine) inclusiveStep(zone *Zone, hit r3.Vec) (float64, bool) {
	if !zone.Inclusive() {
		return 0, false
	}
	lowest := math.Inf(1)
	for _, z := range e.reg.zonesAt(hit, true) {
		if z.Inclusive() && z.Band.HasMin && z.Band.Min > hit.Z {
			lowest = math.Min(lowest, z.Band.Min)
		}
	}
	if math.IsInf(lowest, 1) {
		return 0, false
	}
	return lowest + e.settings.SafeAltitudeDistance*2, true
}

// bounceCourse mirrors the ground course off the border where the path
// towards preview meets it.
func bounceCourse(zone *Zone, st VehicleState, hit, preview r3.Vec) (float64, bool) {
	tangent, ok := zone.Shape.Tangent(geom.Flat(st.Position), geom.Flat(preview), geom.Flat(hit))
	if !ok {
		return 0, false
	}
	return geom.ReflectCourse(st.GroundCourse, tangent), true
}

// loiterDirection picks the side a fixed wing circles on so that the
// circle bends away from the zone.
func loiterDirection(zone *Zone, st VehicleState, hit, preview r3.Vec, det float64) int {
	pos, ahead := geom.Flat(st.Position), geom.Flat(preview)
	if c, ok := zone.Shape.(Circle); ok {
		if geom.IsPointRightOfLine(pos, ahead, c.Center) {
			return -1
		}
		return 1
	}

	course, ok := bounceCourse(zone, st, hit, preview)
	if !ok {
		course = st.GroundCourse
	}
	ref := geom.FarAwayTarget(st.Position, course, det*2)
	if geom.IsPointRightOfLine(pos, ahead, geom.Flat(ref)) {
		return 1
	}
	return -1
}

func (e *Engine) startSendTo(now time.Time, state ActionState, cmd SendTo) {
	e.state = state
	e.actionStart = now
	e.sendTo = cmd
	e.exec.ActivateSendTo(cmd)
	e.log.Debug("send to", "state", state, "target", cmd.TargetPos)
}

// endFenceAction stops whatever the engine has commanded.
func (e *Engine) endFenceAction() {
	e.sendTo.LockSticks = false
	e.status.SticksLocked = false

	switch e.state {
	case StateAvoiding, StateAvoidingAltitude, StateFlyoutNFZ, StateReturnToZone:
		e.exec.AbortSendTo()
	case StatePosHold:
		e.exec.AbortForcedPosHold()
	case StateRTH:
		e.exec.AbortForcedRTH()
	}
	e.log.Debug("fence action ended", "state", e.state)
	e.state = StateNone

	if e.vehicle.Modes.AltHold || e.vehicle.Modes.Cruise {
		e.exec.HoldAltitude(e.sendTo.TargetPos.Z)
	}
	e.exec.AbortSendTo()
}

// continueAction runs one tick of the action in progress.
func (e *Engine) continueAction(now time.Time) {
	st := e.vehicle
	elapsed := now.Sub(e.actionStart)
	inAltitudeRange := func() bool {
		return math.Abs(st.Position.Z-e.sendTo.TargetPos.Z) < e.sendTo.AltitudeTargetRange
	}

	switch e.state {
	case StateAvoiding:
		if geom.Distance2D(geom.Flat(st.Position), geom.Flat(e.avoidingPoint)) > e.DetectionDistance() && e.sendTo.LockSticks {
			e.sendTo.LockSticks = false
			e.exec.ReleaseSticks()
		}
		e.status.MessageState = MessageAvoidingFB
		if math.Abs(geom.AngleDiff(e.avoidCourse, st.GroundCourse)) < courseTolerance || elapsed > AvoidTimeout || !e.exec.SendToActive() {
			e.endFenceAction()
		}

	case StateAvoidingAltitude:
		e.status.MessageState = MessageAvoidingAltitudeBreach
		if inAltitudeRange() || !e.exec.SendToActive() || elapsed > AvoidTimeout {
			e.endFenceAction()
		}

	case StateReturnToZone:
		e.status.MessageState = MessageReturnToZone
		if (e.info.insideFz && math.Abs(e.info.distVert) > e.settings.SafeAltitudeDistance) || !e.exec.SendToActive() {
			e.lockRTZ = true
			e.endFenceAction()
		}

	case StateFlyoutNFZ:
		e.status.MessageState = MessageFlyoutNFZ
		if !e.info.insideNfz || !e.exec.SendToActive() {
			e.endFenceAction()
		}

	case StateAvoidingUpward:
		e.status.MessageState = MessageAvoidingFB
		if inAltitudeRange() || !e.exec.SendToActive() || elapsed > AvoidTimeout {
			e.endFenceAction()
		}

	case StatePosHold, StateRTH:
		e.status.MessageState = MessagePosHold
		if e.status.SticksLocked && elapsed > StickLockMinTime {
			e.status.SticksLocked = false
		}
		if !e.status.SticksLocked && st.StickDeflection >= StickMoveThreshold {
			e.endFenceAction()
		}
	}
}

// nudgeAltitude keeps a craft flown in a self levelling mode off the floor
// or ceiling it is about to touch.
func (e *Engine) nudgeAltitude(now time.Time) {
	st := e.vehicle
	hor := e.info.nearestHor
	extra := e.settings.SafeAltitudeDistance * 0.25

	target := 0.0
	switch {
	case hor.Inclusive() && e.info.insideFz:
		if e.info.distVert > 0 {
			target = e.info.zoneMax - extra
		} else {
			target = e.info.zoneMin + extra
		}
	case hor.Exclusive() && !e.info.insideNfz:
		if e.info.distVert > 0 {
			target = e.info.zoneMin - extra
		} else {
			target = e.info.zoneMax + extra
		}
	}

	pos := geom.FarAwayTarget(st.Position, st.GroundCourse, farAwayDistance)
	pos.Z = target
	e.startSendTo(now, StateAvoidingAltitude, SendTo{
		TargetPos:           pos,
		TargetRange:         PosDetectionDistance,
		AltitudeTargetRange: altitudeTargetRange,
		LockSticks:          true,
		LockStickTime:       StickLockMinTime,
	})
}

// returnToZone flies the craft out of the no-fly zone it is in or back to
// the nearest fly zone. With onlyFlyOut set, only the former is done.
func (e *Engine) returnToZone(now time.Time, onlyFlyOut bool) {
	st := e.vehicle
	safe := e.settings.SafeAltitudeDistance

	flyOut := false
	target := e.info.nearest
	for _, z := range e.info.current {
		if z.Exclusive() && z.HasAction() {
			flyOut = true
			target = z
			break
		}
	}
	if onlyFlyOut && !flyOut {
		return
	}
	if target == nil || e.lockRTZ || !(flyOut || (!e.info.insideFz && target.HasAction())) {
		return
	}

	z := st.Position.Z
	alt := z
	if top := target.Band.Top(); z >= top-safe {
		alt = top - safe*1.5
	} else if floor := target.Band.Floor(); z <= floor+safe {
		alt = floor + safe*1.5
	}

	var pos r3.Vec
	if e.info.aboveOrUnder {
		if dv := e.info.distVert; math.Abs(dv) < aboveOrUnderRange {
			pos = geom.FarAwayTarget(st.Position, st.GroundCourse, farAwayDistance)
			if dv > 0 {
				alt = z + math.Abs(dv) + safe*1.5
			} else {
				alt = z - math.Abs(dv) - safe*1.5
			}
		} else {
			pos = st.Position
		}
	} else {
		pos = geom.FarAwayTarget(st.Position, e.info.direction, e.info.distHor+e.settings.DetectionDistance/2)
	}
	pos.Z = alt

	state := StateReturnToZone
	if flyOut {
		state = StateFlyoutNFZ
	}
	e.startSendTo(now, state, SendTo{
		TargetPos:           pos,
		TargetRange:         PosDetectionDistance,
		AltitudeTargetRange: altitudeTargetRange,
		LockSticks:          true,
		LockStickTime:       StickLockMinTime,
	})
	e.log.Info("returning to zone", "state", state, "zone", target.ConfigID)
}
