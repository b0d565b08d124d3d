package evisync

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// WKT returns lane shape in scene coordinates
func (lane *Lane) WKT() string {
	return wkt.MarshalString(lane.Shape)
}

// ExportToCSV writes two files: '<name>_lanes.csv' and '<name>_junctions.csv'. Geometry is WKT
func (graph *RoadGraph) ExportToCSV(fname string) error {
	fnameParts := strings.Split(fname, ".csv")
	fnameLanes := fmt.Sprintf(fnameParts[0] + "_lanes.csv")
	fnameJunctions := fmt.Sprintf(fnameParts[0] + "_junctions.csv")

	err := graph.exportLanesToCSV(fnameLanes)
	if err != nil {
		return errors.Wrap(err, "Can't export lanes")
	}

	err = graph.exportJunctionsToCSV(fnameJunctions)
	if err != nil {
		return errors.Wrap(err, "Can't export junctions")
	}
	return nil
}

func (graph *RoadGraph) exportLanesToCSV(fname string) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	err = writer.Write([]string{"id", "edge_id", "from_junction", "to_junction", "index", "speed", "length", "width", "allow", "disallow", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	for _, edge := range graph.Edges() {
		for _, lane := range edge.Lanes {
			err = writer.Write([]string{
				lane.ID,
				edge.ID,
				edge.From.ID,
				edge.To.ID,
				fmt.Sprintf("%d", lane.Index),
				fmt.Sprintf("%f", lane.Speed),
				fmt.Sprintf("%f", lane.Length),
				fmt.Sprintf("%f", lane.Width),
				strings.Join(lane.Allow, " "),
				strings.Join(lane.Disallow, " "),
				lane.WKT(),
			})
			if err != nil {
				return errors.Wrap(err, "Can't write lane")
			}
		}
	}
	return nil
}

func (graph *RoadGraph) exportJunctionsToCSV(fname string) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	err = writer.Write([]string{"id", "type", "incoming_lanes", "internal_lanes", "geom", "shape"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	for _, junction := range graph.Junctions() {
		shape := ""
		if len(junction.Shape) > 0 {
			shape = wkt.MarshalString(orb.Polygon{junction.Shape})
		}
		err = writer.Write([]string{
			junction.ID,
			fmt.Sprintf("%s", junction.Type),
			fmt.Sprintf("%d", len(junction.IncomingLanes)),
			fmt.Sprintf("%d", len(junction.InternalLanes)),
			wkt.MarshalString(junction.Location),
			shape,
		})
		if err != nil {
			return errors.Wrap(err, "Can't write junction")
		}
	}
	return nil
}
