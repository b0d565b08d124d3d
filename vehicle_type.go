package evisync

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// VehicleType values are the ones used on the wire
type VehicleType uint32

const (
	VEHICLE_PASSENGER_CAR = VehicleType(iota + 1)
	VEHICLE_TRUCK
	VEHICLE_BICYCLE
	VEHICLE_UNDEFINED = VehicleType(0)
)

func (iotaIdx VehicleType) String() string {
	return [...]string{"undefined", "passenger_car", "truck", "bicycle"}[iotaIdx]
}

// ParseEgoVehicleType maps configured kind of the local vehicle to wire vehicle type
func ParseEgoVehicleType(str string) (VehicleType, error) {
	if found, ok := egoVehicleTypes[strings.ToUpper(str)]; ok {
		return found, nil
	}
	return VEHICLE_UNDEFINED, errors.Errorf("Unknown vehicle type '%s'", str)
}

var (
	egoVehicleTypes = map[string]VehicleType{
		"CAR":                  VEHICLE_PASSENGER_CAR,
		"PASSENGER_CAR":        VEHICLE_PASSENGER_CAR,
		"TRUCK":                VEHICLE_TRUCK,
		"BICYCLE":              VEHICLE_BICYCLE,
		"BICYCLE_INTERFACE":    VEHICLE_BICYCLE,
		"BICYCLE_WITH_MINIMAP": VEHICLE_BICYCLE,
	}
)

type WheelStrategy uint16

const (
	WHEELS_CAR_AXLES = WheelStrategy(iota + 1)
	WHEELS_BICYCLE_RIG
)

func (iotaIdx WheelStrategy) String() string {
	return [...]string{"car_axles", "bicycle_rig"}[iotaIdx-1]
}

// Capabilities describes what a rendered vehicle of some type is able to show
type Capabilities struct {
	HasSignals bool
	HasRig     bool
	Wheels     WheelStrategy
}

var (
	capabilitiesByType = map[VehicleType]Capabilities{
		VEHICLE_PASSENGER_CAR: {HasSignals: true, HasRig: false, Wheels: WHEELS_CAR_AXLES},
		VEHICLE_TRUCK:         {HasSignals: true, HasRig: false, Wheels: WHEELS_CAR_AXLES},
		VEHICLE_BICYCLE:       {HasSignals: false, HasRig: true, Wheels: WHEELS_BICYCLE_RIG},
	}
)

// CapabilitiesFor returns capability table entry. Unsupported types are rendered as passenger cars
func CapabilitiesFor(vehicleType VehicleType) Capabilities {
	if found, ok := capabilitiesByType[vehicleType]; ok {
		return found
	}
	log.WithField("vehicle_type", uint32(vehicleType)).Warn("Unsupported vehicle type, rendering as passenger car")
	return capabilitiesByType[VEHICLE_PASSENGER_CAR]
}
