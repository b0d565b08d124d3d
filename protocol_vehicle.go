package evisync

import (
	"github.com/paulmach/orb"
)

// Signal is a bit of vehicle signal set on the wire
type Signal uint32

const (
	SIGNAL_BLINKER_RIGHT = Signal(1 << iota)
	SIGNAL_BLINKER_LEFT
	SIGNAL_BLINKER_EMERGENCY
	SIGNAL_BRAKELIGHT
	SIGNAL_FRONTLIGHT
	SIGNAL_FOGLIGHT
	SIGNAL_HIGHBEAM
	SIGNAL_BACKDRIVE
	SIGNAL_WIPER
	SIGNAL_DOOR_OPEN_LEFT
	SIGNAL_DOOR_OPEN_RIGHT
)

func (bits Signal) has(flag Signal) bool {
	return bits&flag != 0
}

func signalsFromBits(bits Signal) Signals {
	return Signals{
		Brake:     bits.has(SIGNAL_BRAKELIGHT),
		TurnLeft:  bits.has(SIGNAL_BLINKER_LEFT),
		TurnRight: bits.has(SIGNAL_BLINKER_RIGHT),
		Hazard:    bits.has(SIGNAL_BLINKER_EMERGENCY),
	}
}

func doorsFromBits(bits Signal) DoorState {
	return DoorState{
		Known: true,
		Left:  bits.has(SIGNAL_DOOR_OPEN_LEFT),
		Right: bits.has(SIGNAL_DOOR_OPEN_RIGHT),
	}
}

func (state VehicleState) signalBits() Signal {
	var bits Signal
	if state.Signals.Brake {
		bits |= SIGNAL_BRAKELIGHT
	}
	if state.Signals.TurnLeft {
		bits |= SIGNAL_BLINKER_LEFT
	}
	if state.Signals.TurnRight {
		bits |= SIGNAL_BLINKER_RIGHT
	}
	if state.Signals.Hazard {
		bits |= SIGNAL_BLINKER_EMERGENCY
	}
	if state.Doors.Left {
		bits |= SIGNAL_DOOR_OPEN_LEFT
	}
	if state.Doors.Right {
		bits |= SIGNAL_DOOR_OPEN_RIGHT
	}
	return bits
}

// applyWireState fills pose (offset corrected) and signals. Missing position makes a door-only state
func (state *VehicleState) applyWireState(wire *WireVehicleState, offset orb.Point) {
	if wire == nil {
		return
	}
	bits := Signal(wire.Signals)
	if wire.Position == nil {
		state.DoorsOnly = true
		state.Doors = doorsFromBits(bits)
		return
	}
	state.Position = orb.Point{wire.Position.PX - offset.X(), wire.Position.PY - offset.Y()}
	state.Heading = wire.Position.Angle
	state.EdgeID = wire.Position.EdgeID
	state.LaneIndex = int(wire.Position.LaneID)
	state.RoadID = wire.Position.RoadID
	state.Speed = wire.Speed
	state.Signals = signalsFromBits(bits)
}

// vehicleStates splits vehicle message into per-vehicle states
func vehicleStates(msg *VehicleMessage, offset orb.Point) []VehicleState {
	if msg == nil {
		return nil
	}
	states := make([]VehicleState, 0, len(msg.Commands))
	for i := range msg.Commands {
		command := &msg.Commands[i]
		state := VehicleState{LaneIndex: NoLane}
		switch {
		case command.Register != nil:
			state.ID = command.Register.VehicleID
			state.Existence = EXISTENCE_REGISTERING
			state.Ego = command.Register.IsEgoVehicle
			state.Type = VehicleType(command.Register.VehicleType)
			state.applyWireState(command.Register.State, offset)
			state.DoorsOnly = false
		case command.Update != nil:
			state.ID = command.Update.VehicleID
			state.Existence = EXISTENCE_UPDATING
			state.Ego = command.Update.IsEgoVehicle
			state.applyWireState(command.Update.State, offset)
		case command.Unregister != nil:
			state.ID = command.Unregister.VehicleID
			state.Existence = EXISTENCE_UNREGISTERING
			state.Ego = command.Unregister.IsEgoVehicle
		default:
			continue
		}
		states = append(states, state)
	}
	return states
}

func wireState(state VehicleState, offset orb.Point) *WireVehicleState {
	return &WireVehicleState{
		Position: &WirePosition{
			RoadID: state.RoadID,
			LaneID: int32(state.LaneIndex),
			EdgeID: state.EdgeID,
			PX:     state.Position.X() + offset.X(),
			PY:     state.Position.Y() + offset.Y(),
			Angle:  state.Heading,
		},
		Speed:   state.Speed,
		Signals: uint32(state.signalBits()),
	}
}

// NewRegisterMessage builds registration of a vehicle. Position is in scene coordinates
func NewRegisterMessage(messageID uint32, state VehicleState, offset orb.Point) *Message {
	return &Message{
		ID: messageID,
		Vehicle: &VehicleMessage{
			Commands: []VehicleCommand{{
				Register: &RegisterVehicleCommand{
					VehicleID:    state.ID,
					State:        wireState(state, offset),
					IsEgoVehicle: state.Ego,
					VehicleType:  uint32(state.Type),
				},
			}},
		},
	}
}

// NewUpdateMessage builds pose update of a vehicle. Position is in scene coordinates
func NewUpdateMessage(messageID uint32, state VehicleState, offset orb.Point) *Message {
	return &Message{
		ID: messageID,
		Vehicle: &VehicleMessage{
			Commands: []VehicleCommand{{
				Update: &UpdateVehicleCommand{
					VehicleID:    state.ID,
					State:        wireState(state, offset),
					IsEgoVehicle: state.Ego,
				},
			}},
		},
	}
}

// NewUnregisterMessage builds removal of a vehicle
func NewUnregisterMessage(messageID uint32, vehicleID uint32, ego bool) *Message {
	return &Message{
		ID: messageID,
		Vehicle: &VehicleMessage{
			Commands: []VehicleCommand{{
				Unregister: &UnregisterVehicleCommand{
					VehicleID:    vehicleID,
					IsEgoVehicle: ego,
				},
			}},
		},
	}
}
