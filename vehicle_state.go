package evisync

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/paulmach/orb"
)

const (
	// NoLane marks vehicle which is not resolved to a lane yet
	NoLane = -1
)

type ExistenceState uint16

const (
	EXISTENCE_REGISTERING = ExistenceState(iota + 1)
	EXISTENCE_UPDATING
	EXISTENCE_UNREGISTERING
	EXISTENCE_UNDEFINED = ExistenceState(0)
)

func (iotaIdx ExistenceState) String() string {
	return [...]string{"undefined", "registering", "updating", "unregistering"}[iotaIdx]
}

// Signals are the lights a vehicle shows
type Signals struct {
	Brake     bool
	TurnLeft  bool
	TurnRight bool
	Hazard    bool
}

// DoorState is only known when EVI sent door flags explicitly
type DoorState struct {
	Known bool
	Left  bool
	Right bool
}

// VehicleState is a pose and kinematics snapshot, replaced wholesale by authoritative updates
type VehicleState struct {
	ID        uint32
	Position  orb.Point
	Heading   float64
	Speed     float64
	EdgeID    string
	LaneIndex int
	RoadID    uint32
	Signals   Signals
	Doors     DoorState
	DoorsOnly bool
	Existence ExistenceState
	Type      VehicleType
	Ego       bool
}

func (state VehicleState) String() string {
	return fmt.Sprintf("Vehicle %d (%s) at %v heading %.2f speed %.2f edge '%s' lane %d", state.ID, state.Existence, state.Position, state.Heading, state.Speed, state.EdgeID, state.LaneIndex)
}

// VehicleID derives stable numeric identifier from human-readable vehicle name.
// Empty name gives zero
func VehicleID(name string) uint32 {
	if name == "" {
		return 0
	}
	sum := md5.Sum([]byte(name))
	return binary.BigEndian.Uint32(sum[:4])
}
