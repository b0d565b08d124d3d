package evisync

type HighwayType uint16

const (
	HIGHWAY_MOTORWAY = HighwayType(iota + 1)
	HIGHWAY_MOTORWAY_LINK
	HIGHWAY_TRUNK
	HIGHWAY_TRUNK_LINK
	HIGHWAY_PRIMARY
	HIGHWAY_PRIMARY_LINK
	HIGHWAY_SECONDARY
	HIGHWAY_SECONDARY_LINK
	HIGHWAY_TERTIARY
	HIGHWAY_TERTIARY_LINK
	HIGHWAY_RESIDENTIAL
	HIGHWAY_LIVING_STREET
	HIGHWAY_SERVICE
	HIGHWAY_CYCLEWAY
	HIGHWAY_TRACK
	HIGHWAY_UNCLASSIFIED
)

func (iotaIdx HighwayType) String() string {
	return [...]string{"motorway", "motorway_link", "trunk", "trunk_link", "primary", "primary_link", "secondary", "secondary_link", "tertiary", "tertiary_link", "residential", "living_street", "service", "cycleway", "track", "unclassified"}[iotaIdx-1]
}

func getHighwayType(str string) HighwayType {
	if found, ok := highwaysTypes[str]; ok {
		return found
	}
	return 0
}

var (
	// Speed limits in km/h used when way has no 'maxspeed' tag
	defaultSpeedByHighway = map[HighwayType]float64{
		HIGHWAY_MOTORWAY:       120,
		HIGHWAY_MOTORWAY_LINK:  120,
		HIGHWAY_TRUNK:          100,
		HIGHWAY_TRUNK_LINK:     100,
		HIGHWAY_PRIMARY:        80,
		HIGHWAY_PRIMARY_LINK:   80,
		HIGHWAY_SECONDARY:      60,
		HIGHWAY_SECONDARY_LINK: 60,
		HIGHWAY_TERTIARY:       40,
		HIGHWAY_TERTIARY_LINK:  40,
		HIGHWAY_RESIDENTIAL:    30,
		HIGHWAY_LIVING_STREET:  30,
		HIGHWAY_SERVICE:        30,
		HIGHWAY_CYCLEWAY:       5,
		HIGHWAY_TRACK:          30,
		HIGHWAY_UNCLASSIFIED:   30,
	}

	highwaysTypes = map[string]HighwayType{
		"motorway":       HIGHWAY_MOTORWAY,
		"motorway_link":  HIGHWAY_MOTORWAY_LINK,
		"trunk":          HIGHWAY_TRUNK,
		"trunk_link":     HIGHWAY_TRUNK_LINK,
		"primary":        HIGHWAY_PRIMARY,
		"primary_link":   HIGHWAY_PRIMARY_LINK,
		"secondary":      HIGHWAY_SECONDARY,
		"secondary_link": HIGHWAY_SECONDARY_LINK,
		"tertiary":       HIGHWAY_TERTIARY,
		"tertiary_link":  HIGHWAY_TERTIARY_LINK,
		"residential":    HIGHWAY_RESIDENTIAL,
		"living_street":  HIGHWAY_LIVING_STREET,
		"service":        HIGHWAY_SERVICE,
		"cycleway":       HIGHWAY_CYCLEWAY,
		"track":          HIGHWAY_TRACK,
		"unclassified":   HIGHWAY_UNCLASSIFIED,
	}

	onewayReversible = map[string]struct{}{
		"reversible":  {},
		"alternating": {},
	}

	roundaboutJunctions = map[string]struct{}{
		"circular":   {},
		"roundabout": {},
	}
)
