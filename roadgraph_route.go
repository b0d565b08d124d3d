package evisync

import (
	"time"

	"github.com/LdDl/ch"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type routingIndex struct {
	graph           ch.Graph
	vertexJunctions map[string]int64
	edgeByPair      map[[2]int64]*Edge
}

// edgeCost is the length of the first lane, falling back to distance between junctions
func edgeCost(edge *Edge) float64 {
	if len(edge.Lanes) > 0 && edge.Lanes[0].Length > 0 {
		return edge.Lanes[0].Length
	}
	return planar.Distance(edge.From.Location, edge.To.Location)
}

func (graph *RoadGraph) prepareRouting() (*routingIndex, error) {
	st := time.Now()
	index := &routingIndex{
		graph:           ch.Graph{},
		vertexJunctions: make(map[string]int64, len(graph.junctionsOrder)),
		edgeByPair:      make(map[[2]int64]*Edge),
	}
	for i, junction := range graph.junctionsOrder {
		vertex := int64(i)
		err := index.graph.CreateVertex(vertex)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't create vertex for junction '%s'", junction.ID)
		}
		index.vertexJunctions[junction.ID] = vertex
	}
	for _, edge := range graph.edgesOrder {
		source := index.vertexJunctions[edge.From.ID]
		target := index.vertexJunctions[edge.To.ID]
		if source == target {
			continue
		}
		pair := [2]int64{source, target}
		if existing, ok := index.edgeByPair[pair]; ok && edgeCost(existing) <= edgeCost(edge) {
			continue
		}
		index.edgeByPair[pair] = edge
	}
	for pair, edge := range index.edgeByPair {
		err := index.graph.AddEdge(pair[0], pair[1], edgeCost(edge))
		if err != nil {
			return nil, errors.Wrapf(err, "Can't add edge '%s'", edge.ID)
		}
	}
	index.graph.PrepareContractionHierarchies()
	log.WithField("elapsed", time.Since(st)).Debug("Contraction hierarchies are prepared")
	return index, nil
}

// Route returns sequence of edges of the shortest path between two junctions and its cost.
// Contraction hierarchies are prepared on the first call
func (graph *RoadGraph) Route(fromJunction, toJunction string) ([]*Edge, float64, error) {
	graph.routingOnce.Do(func() {
		graph.routing, graph.routingErr = graph.prepareRouting()
	})
	if graph.routingErr != nil {
		return nil, -1, graph.routingErr
	}
	source, ok := graph.routing.vertexJunctions[fromJunction]
	if !ok {
		return nil, -1, errors.Wrapf(ErrUnknownJunction, "Junction '%s'", fromJunction)
	}
	target, ok := graph.routing.vertexJunctions[toJunction]
	if !ok {
		return nil, -1, errors.Wrapf(ErrUnknownJunction, "Junction '%s'", toJunction)
	}
	if source == target {
		return []*Edge{}, 0, nil
	}
	cost, vertices := graph.routing.graph.ShortestPath(source, target)
	if cost < 0 || len(vertices) < 2 {
		return nil, -1, errors.Wrapf(ErrNoRoute, "From '%s' to '%s'", fromJunction, toJunction)
	}
	path := make([]*Edge, 0, len(vertices)-1)
	for i := 1; i < len(vertices); i++ {
		edge, ok := graph.routing.edgeByPair[[2]int64{vertices[i-1], vertices[i]}]
		if !ok {
			return nil, -1, errors.Wrapf(ErrNoRoute, "Missing edge between vertices %d and %d", vertices[i-1], vertices[i])
		}
		path = append(path, edge)
	}
	return path, cost, nil
}
