package evisync

import (
	"time"

	"github.com/paulmach/orb"
)

type TurningLight uint16

const (
	TURNING_LEFT = TurningLight(iota + 1)
	TURNING_RIGHT
	TURNING_NONE = TurningLight(0)
)

func (iotaIdx TurningLight) String() string {
	return [...]string{"none", "left", "right"}[iotaIdx]
}

// TurningLightState derives turning intention from signals. Left wins when both blinkers are on
func TurningLightState(state VehicleState) TurningLight {
	switch {
	case state.Signals.TurnLeft:
		return TURNING_LEFT
	case state.Signals.TurnRight:
		return TURNING_RIGHT
	default:
		return TURNING_NONE
	}
}

// StopAtIntersection zeroes speed, pose stays the same
func StopAtIntersection(state VehicleState) VehicleState {
	if state.Speed > 0 {
		state.Speed = 0
	}
	return state
}

// KeepSpeedAndDirection moves vehicle along its heading
func KeepSpeedAndDirection(state VehicleState, dt time.Duration) VehicleState {
	velocity := speedVector(state.Heading, state.Speed)
	seconds := dt.Seconds()
	state.Position = orb.Point{
		state.Position.X() + velocity.X()*seconds,
		state.Position.Y() + velocity.Y()*seconds,
	}
	return state
}

// KeepSpeedAndStayOnStreet turns vehicle along the lane segment it occupies, then moves it along the corrected heading
func KeepSpeedAndStayOnStreet(state VehicleState, dt time.Duration, lane *Lane) VehicleState {
	if lane == nil || len(lane.Shape) < 2 {
		return KeepSpeedAndDirection(state, dt)
	}
	_, closestIdx := ClosestShapePoint(state.Position, lane.Shape)
	section := SectionContaining(lane.Shape, state.Position, closestIdx)
	from, to := lane.Shape[section], lane.Shape[section+1]
	if from != to {
		streetBearing := bearing(from, to)
		state.Heading = normalizeDegrees(state.Heading + signedAngleDiff(state.Heading, streetBearing))
	}
	return KeepSpeedAndDirection(state, dt)
}

// ExtrapolateStep is the per-tick policy for a fellow vehicle: stop near intersections, follow the lane otherwise.
// Without a road graph vehicle keeps speed and direction
func ExtrapolateStep(state VehicleState, dt time.Duration, graph *RoadGraph) VehicleState {
	if graph == nil {
		return KeepSpeedAndDirection(state, dt)
	}
	if graph.IsCloseToIntersection(state.Position, state.EdgeID, state.LaneIndex) {
		// @TODO: follow the internal lane of the junction matching TurningLightState instead of stopping
		return StopAtIntersection(state)
	}
	lane, ok := graph.LaneFor(state.EdgeID, state.LaneIndex)
	if !ok {
		return KeepSpeedAndDirection(state, dt)
	}
	return KeepSpeedAndStayOnStreet(state, dt, lane)
}
