package evisync

import (
	"time"
)

// EgoSource drives the local vehicle
type EgoSource interface {
	// Advance moves the vehicle by one simulation tick
	Advance(dt time.Duration)
	// EgoState returns current pose in scene coordinates
	EgoState() VehicleState
}

// StaticEgo keeps the configured pose, optionally driving straight ahead at its speed
type StaticEgo struct {
	State VehicleState
}

func (ego *StaticEgo) Advance(dt time.Duration) {
	if ego.State.Speed > 0 {
		ego.State = KeepSpeedAndDirection(ego.State, dt)
	}
}

func (ego *StaticEgo) EgoState() VehicleState {
	return ego.State
}

// steeringReader is satisfied by SteeringListener
type steeringReader interface {
	Latest() (SteeringReading, bool)
}

// SteeringEgo takes heading from the steering feed: azimuth is added to the initial heading
type SteeringEgo struct {
	steering       steeringReader
	initialHeading float64
	state          VehicleState
}

func NewSteeringEgo(steering steeringReader, initial VehicleState) *SteeringEgo {
	return &SteeringEgo{
		steering:       steering,
		initialHeading: initial.Heading,
		state:          initial,
	}
}

func (ego *SteeringEgo) Advance(dt time.Duration) {
	if reading, ok := ego.steering.Latest(); ok {
		ego.state.Heading = normalizeDegrees(ego.initialHeading + radiansTodegrees(reading.Azimuth))
	}
	ego.state = KeepSpeedAndDirection(ego.state, dt)
}

func (ego *SteeringEgo) EgoState() VehicleState {
	return ego.state
}
