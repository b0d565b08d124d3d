package evisync

type JunctionType uint16

const (
	JUNCTION_PRIORITY = JunctionType(iota + 1)
	JUNCTION_TRAFFIC_LIGHT
	JUNCTION_RIGHT_BEFORE_LEFT
	JUNCTION_LEFT_BEFORE_RIGHT
	JUNCTION_UNREGULATED
	JUNCTION_PRIORITY_STOP
	JUNCTION_ALLWAY_STOP
	JUNCTION_DEAD_END
	JUNCTION_INTERNAL
	JUNCTION_TRAFFIC_LIGHT_UNREGULATED
	JUNCTION_TRAFFIC_LIGHT_RIGHT_ON_RED
	JUNCTION_RAIL_SIGNAL
	JUNCTION_RAIL_CROSSING
	JUNCTION_ZIPPER
	JUNCTION_DISTRICT
	JUNCTION_UNDEFINED = JunctionType(0)
)

func (iotaIdx JunctionType) String() string {
	return [...]string{"undefined", "priority", "traffic_light", "right_before_left", "left_before_right", "unregulated", "priority_stop", "allway_stop", "dead_end", "internal", "traffic_light_unregulated", "traffic_light_right_on_red", "rail_signal", "rail_crossing", "zipper", "district"}[iotaIdx]
}

// IsTrafficLight returns true for every signalized kind of junction
func (iotaIdx JunctionType) IsTrafficLight() bool {
	switch iotaIdx {
	case JUNCTION_TRAFFIC_LIGHT, JUNCTION_TRAFFIC_LIGHT_UNREGULATED, JUNCTION_TRAFFIC_LIGHT_RIGHT_ON_RED:
		return true
	default:
		return false
	}
}

func getJunctionType(str string) JunctionType {
	if found, ok := junctionTypes[str]; ok {
		return found
	}
	return JUNCTION_UNDEFINED
}

var (
	junctionTypes = map[string]JunctionType{
		"priority":                   JUNCTION_PRIORITY,
		"traffic_light":              JUNCTION_TRAFFIC_LIGHT,
		"right_before_left":          JUNCTION_RIGHT_BEFORE_LEFT,
		"left_before_right":          JUNCTION_LEFT_BEFORE_RIGHT,
		"unregulated":                JUNCTION_UNREGULATED,
		"priority_stop":              JUNCTION_PRIORITY_STOP,
		"allway_stop":                JUNCTION_ALLWAY_STOP,
		"dead_end":                   JUNCTION_DEAD_END,
		"internal":                   JUNCTION_INTERNAL,
		"traffic_light_unregulated":  JUNCTION_TRAFFIC_LIGHT_UNREGULATED,
		"traffic_light_right_on_red": JUNCTION_TRAFFIC_LIGHT_RIGHT_ON_RED,
		"rail_signal":                JUNCTION_RAIL_SIGNAL,
		"rail_crossing":              JUNCTION_RAIL_CROSSING,
		"zipper":                     JUNCTION_ZIPPER,
		"district":                   JUNCTION_DISTRICT,
	}
)
