package evisync

import (
	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// exportPoint converts scene point to output coordinates: WGS84 for graphs built from OSM, net coordinates otherwise
func (graph *RoadGraph) exportPoint(pt orb.Point) []float64 {
	x, y := pt.X()+graph.offset.X(), pt.Y()+graph.offset.Y()
	if graph.location.ProjParameter == projMercator {
		x, y = mercatorInverse(x, y)
	}
	return []float64{x, y}
}

func (graph *RoadGraph) exportLine(line orb.LineString) [][]float64 {
	pts := make([][]float64, len(line))
	for i := range line {
		pts[i] = graph.exportPoint(line[i])
	}
	return pts
}

// ExportGeoJSON returns FeatureCollection with every lane, every junction and given vehicles
func ExportGeoJSON(graph *RoadGraph, vehicles []VehicleState) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, edge := range graph.Edges() {
		for _, lane := range edge.Lanes {
			if len(lane.Shape) < 2 {
				continue
			}
			feature := geojson.NewLineStringFeature(graph.exportLine(lane.Shape))
			feature.ID = lane.ID
			feature.SetProperty("kind", "lane")
			feature.SetProperty("edge_id", edge.ID)
			feature.SetProperty("index", lane.Index)
			feature.SetProperty("speed", lane.Speed)
			feature.SetProperty("length", lane.Length)
			feature.SetProperty("width", lane.Width)
			fc.AddFeature(feature)
		}
	}
	for _, junction := range graph.Junctions() {
		feature := geojson.NewPointFeature(graph.exportPoint(junction.Location))
		feature.ID = junction.ID
		feature.SetProperty("kind", "junction")
		feature.SetProperty("type", junction.Type.String())
		feature.SetProperty("incoming_lanes", len(junction.IncomingLanes))
		fc.AddFeature(feature)
	}
	for _, vehicle := range vehicles {
		feature := geojson.NewPointFeature(graph.exportPoint(vehicle.Position))
		feature.ID = vehicle.ID
		feature.SetProperty("kind", "vehicle")
		feature.SetProperty("heading", vehicle.Heading)
		feature.SetProperty("speed", vehicle.Speed)
		feature.SetProperty("edge_id", vehicle.EdgeID)
		feature.SetProperty("vehicle_type", vehicle.Type.String())
		fc.AddFeature(feature)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, "Can't marshal road graph to GeoJSON")
	}
	return b, nil
}
