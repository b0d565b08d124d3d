package evisync

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	// intersectionProximity is distance to the terminal junction of an edge below which vehicle is treated as approaching intersection
	intersectionProximity = 7.0
)

// LaneFor returns lane of the edge which index suffix matches laneIndex.
// Unknown edge means vehicle is inside a junction: incoming and internal lanes of junctions are searched then
func (graph *RoadGraph) LaneFor(edgeID string, laneIndex int) (*Lane, bool) {
	if edge, ok := graph.edges[edgeID]; ok {
		for _, lane := range edge.Lanes {
			if laneSuffix(lane) == laneIndex {
				return lane, true
			}
		}
		return nil, false
	}
	laneID := fmt.Sprintf("%s_%d", edgeID, laneIndex)
	for _, junction := range graph.junctionsOrder {
		for _, lane := range junction.IncomingLanes {
			if lane.ID == edgeID || lane.ID == laneID {
				return lane, true
			}
		}
		for _, lane := range junction.InternalLanes {
			if lane.ID == edgeID || lane.ID == laneID {
				return lane, true
			}
		}
	}
	return nil, false
}

// laneSuffix extracts numeric suffix after the last '_' of lane identifier. Falls back to lane index
func laneSuffix(lane *Lane) int {
	idx := strings.LastIndex(lane.ID, "_")
	if idx < 0 {
		return lane.Index
	}
	suffix, err := strconv.Atoi(lane.ID[idx+1:])
	if err != nil {
		return lane.Index
	}
	return suffix
}

// IsCloseToIntersection returns true if edge is unknown or position is near terminal junction of the edge.
// laneIndex is accepted for symmetry with LaneFor: proximity is measured to the junction only
func (graph *RoadGraph) IsCloseToIntersection(position orb.Point, edgeID string, laneIndex int) bool {
	edge, ok := graph.edges[edgeID]
	if !ok || edge.To == nil {
		return true
	}
	return planar.Distance(position, edge.To.Location) < intersectionProximity
}

// ClosestShapePoint returns nearest vertex of the shape and its index. First found wins on ties.
// Returns -1 index for empty shape
func ClosestShapePoint(position orb.Point, shape orb.LineString) (orb.Point, int) {
	closestIdx := -1
	closest := orb.Point{}
	minDist := math.Inf(1)
	for i, pt := range shape {
		dist := planar.DistanceSquared(position, pt)
		if dist < minDist {
			minDist = dist
			closest = pt
			closestIdx = i
		}
	}
	return closest, closestIdx
}

// SectionContaining returns index of the shape segment [i, i+1] the position lies on.
// Segment before closestIndex is chosen if its bounding box contains position, segment after it otherwise
func SectionContaining(shape orb.LineString, position orb.Point, closestIndex int) int {
	switch {
	case len(shape) < 2, closestIndex <= 0:
		return 0
	case closestIndex >= len(shape)-1:
		return len(shape) - 2
	}
	before := orb.LineString{shape[closestIndex-1], shape[closestIndex]}
	if before.Bound().Contains(position) {
		return closestIndex - 1
	}
	return closestIndex
}
