package evisync

import (
	"regexp"
	"strconv"

	"github.com/paulmach/osm"
	log "github.com/sirupsen/logrus"
)

const (
	mphToKmh = 1.609344
	kmhToMps = 1.0 / 3.6
)

// osmWay is a highway collected during OSM scan
type osmWay struct {
	ID         osm.WayID
	Highway    HighwayType
	Oneway     bool
	IsReversed bool
	Nodes      []osm.NodeID
	lanes      int
	maxSpeed   float64
}

// osmNode is a node referenced by at least one collected way
type osmNode struct {
	ID         osm.NodeID
	location   [2]float64
	useCount   int
	isSignal   bool
	isEndpoint bool
}

var (
	speedRegExp = regexp.MustCompile(`\d+\.?\d*`)
	lanesRegExp = regexp.MustCompile(`\d+`)
	mphSuffix   = regexp.MustCompile(`mph$`)
)

func newOSMWay(way *osm.Way, highway HighwayType, logger *log.Entry) *osmWay {
	prepared := &osmWay{
		ID:       way.ID,
		Highway:  highway,
		Nodes:    make([]osm.NodeID, 0, len(way.Nodes)),
		lanes:    1,
		maxSpeed: -1,
	}
	for _, node := range way.Nodes {
		prepared.Nodes = append(prepared.Nodes, node.ID)
	}

	onewayText := way.Tags.Find("oneway")
	switch onewayText {
	case "":
		if _, ok := roundaboutJunctions[way.Tags.Find("junction")]; ok {
			prepared.Oneway = true
		}
	case "yes", "1", "true":
		prepared.Oneway = true
	case "no", "0", "false":
		prepared.Oneway = false
	case "-1":
		prepared.Oneway = true
		prepared.IsReversed = true
	default:
		if _, ok := onewayReversible[onewayText]; !ok {
			logger.WithFields(log.Fields{"way_id": way.ID, "oneway": onewayText}).Warn("Unhandled 'oneway' tag value")
		}
	}

	if lanes := lanesRegExp.FindString(way.Tags.Find("lanes")); lanes != "" {
		if lanesNum, err := strconv.Atoi(lanes); err == nil && lanesNum > 0 {
			prepared.lanes = lanesNum
			if !prepared.Oneway && lanesNum > 1 {
				prepared.lanes = lanesNum / 2
			}
		}
	}

	maxSpeed := way.Tags.Find("maxspeed")
	if value := speedRegExp.FindString(maxSpeed); value != "" {
		speed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			logger.WithFields(log.Fields{"way_id": way.ID, "maxspeed": maxSpeed}).Warn("Bad 'maxspeed' tag value")
		} else {
			if mphSuffix.MatchString(maxSpeed) {
				speed *= mphToKmh
			}
			prepared.maxSpeed = speed
		}
	}
	if prepared.maxSpeed < 0 {
		prepared.maxSpeed = defaultSpeedByHighway[highway]
	}
	return prepared
}

// speedMps returns speed limit in m/s
func (way *osmWay) speedMps() float64 {
	return way.maxSpeed * kmhToMps
}
