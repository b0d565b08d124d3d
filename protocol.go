package evisync

import (
	"go.dedis.ch/protobuf"
	"github.com/pkg/errors"
)

// Wire messages exchanged with EVI. Field order defines protobuf field numbers: append only

// Message is a tagged union: exactly one of the pointers is expected to be set
type Message struct {
	ID            uint32
	Vehicle       *VehicleMessage
	TrafficLight  *TrafficLightMessage
	Visualization *VisualizationMessage
	HapticSignals *HapticSignalsMessage
	Session       *SessionMessage
}

type VehicleMessage struct {
	Commands []VehicleCommand
}

// VehicleCommand is a tagged union of per-vehicle sub-commands
type VehicleCommand struct {
	Register   *RegisterVehicleCommand
	Update     *UpdateVehicleCommand
	Unregister *UnregisterVehicleCommand
}

type RegisterVehicleCommand struct {
	VehicleID    uint32
	State        *WireVehicleState
	IsEgoVehicle bool
	VehicleType  uint32
}

type UpdateVehicleCommand struct {
	VehicleID    uint32
	State        *WireVehicleState
	IsEgoVehicle bool
}

type UnregisterVehicleCommand struct {
	VehicleID    uint32
	IsEgoVehicle bool
}

// WireVehicleState has no Position for door-only updates
type WireVehicleState struct {
	Position *WirePosition
	Speed    float64
	Signals  uint32
}

type WirePosition struct {
	RoadID uint32
	LaneID int32
	EdgeID string
	PX     float64
	PY     float64
	Angle  float64
	Lon    float64
	Lat    float64
}

type TrafficLightMessage struct {
	Junctions []TrafficLightJunction
}

type TrafficLightJunction struct {
	JunctionID uint32
	States     []uint32
}

type VisualizationMessage struct {
	TimeS   float64
	Content []VisualizationContent
}

type VisualizationContent struct {
	EntityID        uint32
	GenericWarning  *GenericWarning
	WirelessMessage *WirelessMessageReceived
}

type GenericWarning struct {
	Intensity   float64
	Description string
}

type WirelessMessageReceived struct {
	SenderID uint32
	Location *WirePosition
}

type HapticSignalsMessage struct {
	Signals []HapticSignal
}

type HapticSignal struct {
	EntityID      uint32
	Danger        uint32
	Pattern       string
	VibrationSide string
}

type SessionMessage struct {
	Init        *SessionInit
	Teardown    *SessionTeardown
	TimeReached *SessionTimeReached
}

type SessionInit struct {
	NetFile string
}

type SessionTeardown struct {
	Reason string
}

type SessionTimeReached struct {
	TimeS float64
}

type MessageKind uint16

const (
	KIND_VEHICLE = MessageKind(iota + 1)
	KIND_TRAFFIC_LIGHT
	KIND_VISUALIZATION
	KIND_HAPTIC_SIGNALS
	KIND_SESSION
	KIND_NONE = MessageKind(0)
)

func (iotaIdx MessageKind) String() string {
	return [...]string{"none", "vehicle", "traffic_light", "visualization", "haptic_signals", "session"}[iotaIdx]
}

// Kind returns kind of the first set branch of the union
func (msg *Message) Kind() MessageKind {
	switch {
	case msg == nil:
		return KIND_NONE
	case msg.Vehicle != nil:
		return KIND_VEHICLE
	case msg.TrafficLight != nil:
		return KIND_TRAFFIC_LIGHT
	case msg.Visualization != nil:
		return KIND_VISUALIZATION
	case msg.HapticSignals != nil:
		return KIND_HAPTIC_SIGNALS
	case msg.Session != nil:
		return KIND_SESSION
	default:
		return KIND_NONE
	}
}

// IsRegister returns true when message carries a vehicle registration
func (msg *Message) IsRegister() bool {
	if msg == nil || msg.Vehicle == nil {
		return false
	}
	for i := range msg.Vehicle.Commands {
		if msg.Vehicle.Commands[i].Register != nil {
			return true
		}
	}
	return false
}

// EncodeMessage serializes message into a single frame
func EncodeMessage(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("Can't encode nil message")
	}
	payload, err := protobuf.Encode(msg)
	if err != nil {
		return nil, errors.Wrap(err, "Can't encode message")
	}
	return payload, nil
}

// DecodeMessage parses a single frame. Every failure is reported as ErrMalformedFrame
func DecodeMessage(frame []byte) (msg *Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			err = errors.Wrapf(ErrMalformedFrame, "Frame of %d bytes: %v", len(frame), r)
		}
	}()
	decoded := &Message{}
	if decodeErr := protobuf.Decode(frame, decoded); decodeErr != nil {
		return nil, errors.Wrapf(ErrMalformedFrame, "Frame of %d bytes: %v", len(frame), decodeErr)
	}
	if decoded.Kind() == KIND_NONE {
		return nil, errors.Wrapf(ErrMalformedFrame, "Frame of %d bytes has no message kind", len(frame))
	}
	return decoded, nil
}
