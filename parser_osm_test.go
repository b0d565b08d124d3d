package evisync

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="55.75" lon="37.60" version="1"/>
  <node id="5" lat="55.75" lon="37.605" version="1"/>
  <node id="2" lat="55.75" lon="37.61" version="1">
    <tag k="highway" v="traffic_signals"/>
  </node>
  <node id="3" lat="55.75" lon="37.62" version="1"/>
  <node id="4" lat="55.76" lon="37.61" version="1"/>
  <node id="6" lat="55.74" lon="37.60" version="1"/>
  <way id="100" version="1">
    <nd ref="1"/>
    <nd ref="5"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="residential"/>
    <tag k="lanes" v="2"/>
    <tag k="maxspeed" v="30 mph"/>
  </way>
  <way id="200" version="1">
    <nd ref="2"/>
    <nd ref="4"/>
    <tag k="highway" v="service"/>
    <tag k="oneway" v="yes"/>
  </way>
  <way id="300" version="1">
    <nd ref="3"/>
    <nd ref="6"/>
    <tag k="highway" v="footway"/>
  </way>
</osm>
`

func buildSampleOSMGraph(t *testing.T, options ...func(*GraphBuilder)) *RoadGraph {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "sample.osm")
	if err := os.WriteFile(fname, []byte(sampleOSM), 0644); err != nil {
		t.Fatal(err)
	}
	graph, err := BuildRoadGraph(fname, options...)
	if err != nil {
		t.Fatal(err)
	}
	return graph
}

func TestBuildRoadGraphFromOSM(t *testing.T) {
	graph := buildSampleOSMGraph(t)

	if len(graph.Junctions()) != 4 {
		t.Errorf("Number of junctions must be %d, but got %d", 4, len(graph.Junctions()))
	}
	if _, ok := graph.Junction("5"); ok {
		t.Errorf("Shape node must not become a junction")
	}
	if _, ok := graph.Junction("6"); ok {
		t.Errorf("Node of skipped footway must not become a junction")
	}
	if len(graph.Edges()) != 5 {
		t.Errorf("Number of edges must be %d, but got %d", 5, len(graph.Edges()))
	}
	for _, edgeID := range []string{"100#0", "-100#0", "100#1", "-100#1", "200#0"} {
		if _, ok := graph.Edge(edgeID); !ok {
			t.Errorf("Edge '%s' must exist", edgeID)
		}
	}
	if _, ok := graph.Edge("-200#0"); ok {
		t.Errorf("One-way road must not have reverse edge")
	}

	signal, _ := graph.Junction("2")
	if signal.Type != JUNCTION_TRAFFIC_LIGHT {
		t.Errorf("Junction '2' must be %s, but got %s", JUNCTION_TRAFFIC_LIGHT, signal.Type)
	}
	deadEnd, _ := graph.Junction("4")
	if deadEnd.Type != JUNCTION_DEAD_END {
		t.Errorf("Junction '4' must be %s, but got %s", JUNCTION_DEAD_END, deadEnd.Type)
	}

	edge, _ := graph.Edge("100#0")
	if edge.From.ID != "1" || edge.To.ID != "2" {
		t.Errorf("Edge '100#0' must connect '1' -> '2', but got '%s' -> '%s'", edge.From.ID, edge.To.ID)
	}
	if len(edge.Lanes) != 1 {
		t.Fatalf("Two-way road with 2 lanes must have %d lane per direction, but got %d", 1, len(edge.Lanes))
	}
	lane := edge.Lanes[0]
	if len(lane.Shape) != 3 {
		t.Errorf("Lane shape must include shape node: %d points, but got %d", 3, len(lane.Shape))
	}
	if !almostEqual(lane.Speed, 30*mphToKmh*kmhToMps, 1e-9) {
		t.Errorf("Speed must be %f m/s, but got %f", 30*mphToKmh*kmhToMps, lane.Speed)
	}
	if lane.ID != "100#0_0" {
		t.Errorf("Lane id must be '100#0_0', but got '%s'", lane.ID)
	}
	if lane.Length <= 0 {
		t.Errorf("Lane length must be positive, but got %f", lane.Length)
	}
	if len(signal.IncomingLanes) != 2 {
		t.Errorf("Junction '2' must have %d incoming lanes, but got %d", 2, len(signal.IncomingLanes))
	}
	if graph.Location().ProjParameter != projMercator {
		t.Errorf("Projection must be '%s', but got '%s'", projMercator, graph.Location().ProjParameter)
	}

	reverse, _ := graph.Edge("-100#0")
	if reverse.Lanes[0].Shape[0] != lane.Shape[len(lane.Shape)-1] {
		t.Errorf("Reverse edge must start where forward one ends")
	}
}

func TestBuildRoadGraphFromOSMHighwayFilter(t *testing.T) {
	graph := buildSampleOSMGraph(t, WithHighwayTypes([]string{"service"}))
	if len(graph.Edges()) != 1 {
		t.Errorf("Only service road must be imported: %d edge, but got %d", 1, len(graph.Edges()))
	}
}

func TestOSMProjectionMatchesGraph(t *testing.T) {
	graph := buildSampleOSMGraph(t, WithOffset(4185000, 7508000))
	projection, err := NewProjection(graph.Location(), graph.Offset())
	if err != nil {
		t.Fatal(err)
	}
	junction, _ := graph.Junction("3")
	pt := projection.ToLocal(37.62, 55.75)
	if !almostEqual(pt.X(), junction.Location.X(), 1e-6) || !almostEqual(pt.Y(), junction.Location.Y(), 1e-6) {
		t.Errorf("Projected junction must be %v, but got %v", junction.Location, pt)
	}
}
