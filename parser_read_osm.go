package evisync

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// projMercator is the projection parameter of graphs imported from OSM
	projMercator = "+proj=merc"
)

type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

// newOSMScanner guesses file format by extension
func newOSMScanner(filename string, file io.Reader) (OSMScanner, error) {
	switch {
	case strings.HasSuffix(filename, ".pbf"):
		return osmpbf.New(context.Background(), file, 4), nil
	case strings.HasSuffix(filename, ".osm"), strings.HasSuffix(filename, ".xml"):
		return osmxml.New(context.Background(), file), nil
	default:
		return nil, fmt.Errorf("File extension for file '%s' is not handled yet", filename)
	}
}

func (builder *GraphBuilder) acceptHighway(highway string) HighwayType {
	highwayType := getHighwayType(highway)
	if highwayType == 0 || len(builder.highwayTypes) == 0 {
		return highwayType
	}
	for _, allowed := range builder.highwayTypes {
		if allowed == highway {
			return highwayType
		}
	}
	return 0
}

// readOSM builds road graph from OSM extract: every way segment between two junction nodes becomes an edge
func (builder *GraphBuilder) readOSM() (*RoadGraph, error) {
	builder.progress("Opening file: '%s'...", builder.filename)
	file, err := os.Open(builder.filename)
	if err != nil {
		return nil, parseError(err, "Can't open OSM file '%s'", builder.filename)
	}
	defer file.Close()

	/* Process ways */
	st := time.Now()
	ways := []*osmWay{}
	nodesSeen := make(map[osm.NodeID]struct{})
	{
		scannerWays, err := newOSMScanner(builder.filename, file)
		if err != nil {
			return nil, parseError(err, "Can't prepare scanner")
		}
		defer scannerWays.Close()
		for scannerWays.Scan() {
			obj := scannerWays.Object()
			if obj.ObjectID().Type() != osm.TypeWay {
				continue
			}
			way := obj.(*osm.Way)
			highway := builder.acceptHighway(way.Tags.Find("highway"))
			if highway == 0 {
				continue
			}
			preparedWay := newOSMWay(way, highway, builder.logger)
			for _, nodeID := range preparedWay.Nodes {
				nodesSeen[nodeID] = struct{}{}
			}
			ways = append(ways, preparedWay)
		}
		if err := scannerWays.Err(); err != nil {
			return nil, parseError(err, "Scanner error on ways")
		}
	}
	builder.progress("\tProcessing ways... Done in %v (ways: %d)", time.Since(st), len(ways))

	// Seek file to start
	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		return nil, errors.Wrap(err, "Can't repeat seeking after ways scanning")
	}

	/* Process nodes */
	st = time.Now()
	nodes := make(map[osm.NodeID]*osmNode, len(nodesSeen))
	{
		scannerNodes, err := newOSMScanner(builder.filename, file)
		if err != nil {
			return nil, parseError(err, "Can't prepare scanner")
		}
		defer scannerNodes.Close()
		for scannerNodes.Scan() {
			obj := scannerNodes.Object()
			if obj.ObjectID().Type() != osm.TypeNode {
				continue
			}
			node := obj.(*osm.Node)
			if _, ok := nodesSeen[node.ID]; !ok {
				continue
			}
			delete(nodesSeen, node.ID)
			nodes[node.ID] = &osmNode{
				ID:       node.ID,
				location: [2]float64{node.Lon, node.Lat},
				isSignal: node.Tags.Find("highway") == "traffic_signals",
			}
		}
		if err := scannerNodes.Err(); err != nil {
			return nil, parseError(err, "Scanner error on nodes")
		}
	}
	builder.progress("\tProcessing nodes... Done in %v (nodes: %d)", time.Since(st), len(nodes))
	if len(nodesSeen) > 0 {
		builder.logger.WithField("nodes", len(nodesSeen)).Warn("Some nodes referenced by ways are missing in the extract")
	}

	st = time.Now()
	graph := builder.assembleOSM(ways, nodes)
	builder.progress("\tPreparing junctions and edges... Done in %v", time.Since(st))
	return graph, nil
}

func (builder *GraphBuilder) assembleOSM(ways []*osmWay, nodes map[osm.NodeID]*osmNode) *RoadGraph {
	graph := newRoadGraph()
	graph.offset = builder.offset
	graph.location = Location{ProjParameter: projMercator}

	// Drop references to missing nodes, count node use cases
	preparedWays := make([]*osmWay, 0, len(ways))
	for _, way := range ways {
		present := way.Nodes[:0]
		for _, nodeID := range way.Nodes {
			if _, ok := nodes[nodeID]; ok {
				present = append(present, nodeID)
			}
		}
		way.Nodes = present
		if len(way.Nodes) < 2 {
			continue
		}
		for i, nodeID := range way.Nodes {
			node := nodes[nodeID]
			node.useCount++
			if i == 0 || i == len(way.Nodes)-1 {
				node.isEndpoint = true
			}
		}
		preparedWays = append(preparedWays, way)
	}

	junctionFor := func(node *osmNode) *Junction {
		id := fmt.Sprintf("%d", node.ID)
		if junction, ok := graph.junctions[id]; ok {
			return junction
		}
		junctionType := JUNCTION_PRIORITY
		switch {
		case node.isSignal:
			junctionType = JUNCTION_TRAFFIC_LIGHT
		case node.useCount == 1:
			junctionType = JUNCTION_DEAD_END
		}
		x, y := mercatorForward(node.location[0], node.location[1])
		junction := &Junction{
			ID:       id,
			Type:     junctionType,
			Location: orb.Point{x - graph.offset.X(), y - graph.offset.Y()},
		}
		graph.addJunction(junction)
		return junction
	}

	for _, way := range preparedWays {
		segment := 0
		sourceIdx := 0
		for i := 1; i < len(way.Nodes); i++ {
			node := nodes[way.Nodes[i]]
			if i != len(way.Nodes)-1 && node.useCount < 2 && !node.isSignal {
				continue
			}
			geometry := make(orb.LineString, 0, i-sourceIdx+1)
			for _, nodeID := range way.Nodes[sourceIdx : i+1] {
				geometry = append(geometry, orb.Point(nodes[nodeID].location))
			}
			geometry = translateLine(mercatorLine(geometry), graph.offset)
			from := junctionFor(nodes[way.Nodes[sourceIdx]])
			to := junctionFor(node)
			edgeID := fmt.Sprintf("%d#%d", way.ID, segment)
			if way.IsReversed {
				graph.addOSMEdge(edgeID, to, from, reverseLine(geometry), way)
			} else {
				graph.addOSMEdge(edgeID, from, to, geometry, way)
			}
			if !way.Oneway {
				graph.addOSMEdge("-"+edgeID, to, from, reverseLine(geometry), way)
			}
			segment++
			sourceIdx = i
		}
	}
	if len(graph.junctions) == 0 {
		builder.logger.Warn("No junctions have been found in OSM extract")
	}
	return graph
}

func (graph *RoadGraph) addOSMEdge(edgeID string, from, to *Junction, geometry orb.LineString, way *osmWay) {
	edge := &Edge{
		ID:       edgeID,
		From:     from,
		To:       to,
		Priority: int(HIGHWAY_UNCLASSIFIED) - int(way.Highway),
		Lanes:    make([]*Lane, 0, way.lanes),
	}
	length := lineLength(geometry)
	for i := 0; i < way.lanes; i++ {
		lane := graph.completeLane(fmt.Sprintf("%s_%d", edgeID, i), laneAttributes{
			index:  i,
			speed:  way.speedMps(),
			length: length,
			width:  defaultLaneWidth,
			shape:  geometry,
		})
		edge.Lanes = append(edge.Lanes, lane)
		to.IncomingLanes = append(to.IncomingLanes, lane)
	}
	graph.addEdge(edge)
	log.WithFields(log.Fields{"edge_id": edgeID, "lanes": way.lanes}).Trace("OSM edge is prepared")
}
