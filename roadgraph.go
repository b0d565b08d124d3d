package evisync

import (
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"
)

const (
	// defaultLaneWidth is used when lane description has no width attribute
	defaultLaneWidth = 3.2
)

// Lane is a single driving lane of an edge (or an internal lane of a junction)
type Lane struct {
	ID       string
	Index    int
	Speed    float64
	Length   float64
	Width    float64
	Shape    orb.LineString
	Allow    []string
	Disallow []string

	complete bool
}

// Complete returns true when lane attributes have been filled from its owning edge
func (lane *Lane) Complete() bool {
	return lane.complete
}

// laneAttributes is the full set of lane data known once owning edge has been parsed
type laneAttributes struct {
	index    int
	speed    float64
	length   float64
	width    float64
	shape    orb.LineString
	allow    []string
	disallow []string
}

// newLane creates lane from complete data
func newLane(id string, attrs laneAttributes) *Lane {
	lane := &Lane{ID: id}
	lane.fill(attrs)
	return lane
}

// fill completes a stub lane
func (lane *Lane) fill(attrs laneAttributes) {
	lane.Index = attrs.index
	lane.Speed = attrs.speed
	lane.Length = attrs.length
	lane.Width = attrs.width
	lane.Shape = attrs.shape
	lane.Allow = attrs.allow
	lane.Disallow = attrs.disallow
	lane.complete = true
}

// Edge is a directed road between two junctions
type Edge struct {
	ID       string
	From     *Junction
	To       *Junction
	Priority int
	Lanes    []*Lane
}

// Junction is a node of the road network
type Junction struct {
	ID            string
	Type          JunctionType
	Location      orb.Point
	Shape         orb.Ring
	IncomingLanes []*Lane
	InternalLanes []*Lane
}

// Location describes how network coordinates relate to geographic ones
type Location struct {
	NetOffset     orb.Point
	ConvBoundary  orb.Bound
	OrigBoundary  orb.Bound
	ProjParameter string
}

// RoadGraph is an immutable index of junctions, edges and lanes.
// It is built once per scenario and shared read-only between consumers
type RoadGraph struct {
	junctions      map[string]*Junction
	junctionsOrder []*Junction
	edges          map[string]*Edge
	edgesOrder     []*Edge
	lanes          map[string]*Lane
	location       Location
	offset         orb.Point

	routingOnce sync.Once
	routing     *routingIndex
	routingErr  error
}

func newRoadGraph() *RoadGraph {
	return &RoadGraph{
		junctions: make(map[string]*Junction),
		edges:     make(map[string]*Edge),
		lanes:     make(map[string]*Lane),
	}
}

func (graph *RoadGraph) String() string {
	return fmt.Sprintf("RoadGraph(junctions: %d, edges: %d, lanes: %d)", len(graph.junctions), len(graph.edges), len(graph.lanes))
}

// referenceLane returns lane from global index, creating an id-only stub when lane has not been seen yet
func (graph *RoadGraph) referenceLane(id string) *Lane {
	if lane, ok := graph.lanes[id]; ok {
		return lane
	}
	lane := &Lane{ID: id, Index: NoLane}
	graph.lanes[id] = lane
	return lane
}

// completeLane fills (or creates) lane in global index
func (graph *RoadGraph) completeLane(id string, attrs laneAttributes) *Lane {
	lane := graph.referenceLane(id)
	lane.fill(attrs)
	return lane
}

func (graph *RoadGraph) addJunction(junction *Junction) {
	graph.junctions[junction.ID] = junction
	graph.junctionsOrder = append(graph.junctionsOrder, junction)
}

func (graph *RoadGraph) addEdge(edge *Edge) {
	graph.edges[edge.ID] = edge
	graph.edgesOrder = append(graph.edgesOrder, edge)
}

// Junction returns junction by its identifier
func (graph *RoadGraph) Junction(id string) (*Junction, bool) {
	junction, ok := graph.junctions[id]
	return junction, ok
}

// Edge returns edge by its identifier
func (graph *RoadGraph) Edge(id string) (*Edge, bool) {
	edge, ok := graph.edges[id]
	return edge, ok
}

// Lane returns lane by its identifier
func (graph *RoadGraph) Lane(id string) (*Lane, bool) {
	lane, ok := graph.lanes[id]
	return lane, ok
}

// Junctions returns junctions in order of appearance in the source
func (graph *RoadGraph) Junctions() []*Junction {
	return graph.junctionsOrder
}

// Edges returns edges in order of appearance in the source
func (graph *RoadGraph) Edges() []*Edge {
	return graph.edgesOrder
}

// LaneIDs returns sorted identifiers of every known lane
func (graph *RoadGraph) LaneIDs() []string {
	ids := make([]string, 0, len(graph.lanes))
	for id := range graph.lanes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Location returns geo-referencing of the graph
func (graph *RoadGraph) Location() Location {
	return graph.location
}

// Offset returns scene offset which has been subtracted from every coordinate
func (graph *RoadGraph) Offset() orb.Point {
	return graph.offset
}
