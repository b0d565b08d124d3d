package evisync

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

type sumoLocationXML struct {
	NetOffset     string `xml:"netOffset,attr"`
	ConvBoundary  string `xml:"convBoundary,attr"`
	OrigBoundary  string `xml:"origBoundary,attr"`
	ProjParameter string `xml:"projParameter,attr"`
}

type sumoJunctionXML struct {
	ID       string  `xml:"id,attr"`
	Type     string  `xml:"type,attr"`
	X        float64 `xml:"x,attr"`
	Y        float64 `xml:"y,attr"`
	IncLanes string  `xml:"incLanes,attr"`
	IntLanes string  `xml:"intLanes,attr"`
	Shape    string  `xml:"shape,attr"`
}

type sumoEdgeXML struct {
	ID       string        `xml:"id,attr"`
	From     string        `xml:"from,attr"`
	To       string        `xml:"to,attr"`
	Priority string        `xml:"priority,attr"`
	Function string        `xml:"function,attr"`
	Lanes    []sumoLaneXML `xml:"lane"`
}

type sumoLaneXML struct {
	ID       string  `xml:"id,attr"`
	Index    int     `xml:"index,attr"`
	Speed    float64 `xml:"speed,attr"`
	Length   float64 `xml:"length,attr"`
	Width    string  `xml:"width,attr"`
	Shape    string  `xml:"shape,attr"`
	Allow    string  `xml:"allow,attr"`
	Disallow string  `xml:"disallow,attr"`
}

// sumoNetRaw is what a single pass over net.xml collects. Edges precede junctions in SUMO files,
// so graph assembly starts only after the whole document has been read
type sumoNetRaw struct {
	location  *sumoLocationXML
	junctions []sumoJunctionXML
	edges     []sumoEdgeXML
}

func (builder *GraphBuilder) readSUMO() (*RoadGraph, error) {
	builder.progress("Opening file: '%s'...", builder.filename)
	file, err := os.Open(builder.filename)
	if err != nil {
		return nil, parseError(err, "Can't open road network '%s'", builder.filename)
	}
	defer file.Close()

	st := time.Now()
	raw, err := scanSUMO(file)
	if err != nil {
		return nil, parseError(err, "Can't read road network '%s'", builder.filename)
	}
	builder.progress("\tScanning net... Done in %v (junctions: %d, edges: %d)", time.Since(st), len(raw.junctions), len(raw.edges))

	graph := newRoadGraph()
	graph.offset = builder.offset

	if raw.location != nil {
		location, err := raw.location.prepare()
		if err != nil {
			return nil, parseError(err, "Bad <location> in '%s'", builder.filename)
		}
		graph.location = location
	} else {
		graph.location = Location{ProjParameter: "!"}
	}

	st = time.Now()
	if err := raw.prepareJunctions(graph); err != nil {
		return nil, err
	}
	builder.progress("\tProcessing junctions... Done in %v", time.Since(st))

	st = time.Now()
	if err := raw.prepareEdges(graph); err != nil {
		return nil, err
	}
	builder.progress("\tProcessing edges... Done in %v", time.Since(st))

	incomplete := 0
	for _, lane := range graph.lanes {
		if !lane.complete {
			incomplete++
		}
	}
	if incomplete > 0 {
		builder.logger.WithField("lanes", incomplete).Warn("Some lanes are referenced by junctions only and have no geometry")
	}
	return graph, nil
}

func scanSUMO(reader io.Reader) (*sumoNetRaw, error) {
	raw := &sumoNetRaw{}
	decoder := xml.NewDecoder(reader)
	seenRoot := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "net":
			seenRoot = true
		case "location":
			location := sumoLocationXML{}
			if err := decoder.DecodeElement(&location, &start); err != nil {
				return nil, err
			}
			raw.location = &location
		case "junction":
			junction := sumoJunctionXML{}
			if err := decoder.DecodeElement(&junction, &start); err != nil {
				return nil, err
			}
			raw.junctions = append(raw.junctions, junction)
		case "edge":
			edge := sumoEdgeXML{}
			if err := decoder.DecodeElement(&edge, &start); err != nil {
				return nil, err
			}
			raw.edges = append(raw.edges, edge)
		default:
			if err := decoder.Skip(); err != nil {
				return nil, err
			}
		}
	}
	if !seenRoot {
		return nil, parseError(nil, "No <net> root element")
	}
	return raw, nil
}

// prepareJunctions is the first phase: junctions and id-only stubs of their lanes
func (raw *sumoNetRaw) prepareJunctions(graph *RoadGraph) error {
	for i := range raw.junctions {
		junctionXML := &raw.junctions[i]
		if junctionXML.Type == "internal" {
			continue
		}
		if junctionXML.ID == "" {
			return parseError(nil, "Junction #%d has no id", i)
		}
		shape, err := parseShape(junctionXML.Shape)
		if err != nil {
			return parseError(err, "Bad shape of junction '%s'", junctionXML.ID)
		}
		junction := &Junction{
			ID:       junctionXML.ID,
			Type:     getJunctionType(junctionXML.Type),
			Location: orb.Point{junctionXML.X - graph.offset.X(), junctionXML.Y - graph.offset.Y()},
			Shape:    orb.Ring(translateLine(shape, graph.offset)),
		}
		for _, laneID := range strings.Fields(junctionXML.IncLanes) {
			junction.IncomingLanes = append(junction.IncomingLanes, graph.referenceLane(laneID))
		}
		for _, laneID := range strings.Fields(junctionXML.IntLanes) {
			junction.InternalLanes = append(junction.InternalLanes, graph.referenceLane(laneID))
		}
		graph.addJunction(junction)
	}
	return nil
}

// prepareEdges is the second phase: edges and completion of lane stubs.
// Internal edges (having 'function' attribute) only complete lanes of junctions and are not registered as edges
func (raw *sumoNetRaw) prepareEdges(graph *RoadGraph) error {
	for i := range raw.edges {
		edgeXML := &raw.edges[i]
		lanes := make([]*Lane, 0, len(edgeXML.Lanes))
		for j := range edgeXML.Lanes {
			attrs, err := edgeXML.Lanes[j].attributes(graph.offset)
			if err != nil {
				return parseError(err, "Bad lane '%s' of edge '%s'", edgeXML.Lanes[j].ID, edgeXML.ID)
			}
			lanes = append(lanes, graph.completeLane(edgeXML.Lanes[j].ID, attrs))
		}
		if edgeXML.Function != "" {
			continue
		}
		from, ok := graph.junctions[edgeXML.From]
		if !ok {
			return parseError(nil, "Edge '%s' references unknown junction '%s'", edgeXML.ID, edgeXML.From)
		}
		to, ok := graph.junctions[edgeXML.To]
		if !ok {
			return parseError(nil, "Edge '%s' references unknown junction '%s'", edgeXML.ID, edgeXML.To)
		}
		priority := 0
		if edgeXML.Priority != "" {
			p, err := strconv.Atoi(edgeXML.Priority)
			if err != nil {
				return parseError(err, "Bad priority of edge '%s'", edgeXML.ID)
			}
			priority = p
		}
		graph.addEdge(&Edge{
			ID:       edgeXML.ID,
			From:     from,
			To:       to,
			Priority: priority,
			Lanes:    lanes,
		})
	}
	return nil
}

func (laneXML *sumoLaneXML) attributes(offset orb.Point) (laneAttributes, error) {
	shape, err := parseShape(laneXML.Shape)
	if err != nil {
		return laneAttributes{}, err
	}
	width := defaultLaneWidth
	if laneXML.Width != "" {
		width, err = strconv.ParseFloat(laneXML.Width, 64)
		if err != nil {
			return laneAttributes{}, err
		}
	}
	return laneAttributes{
		index:    laneXML.Index,
		speed:    laneXML.Speed,
		length:   laneXML.Length,
		width:    width,
		shape:    translateLine(shape, offset),
		allow:    strings.Fields(laneXML.Allow),
		disallow: strings.Fields(laneXML.Disallow),
	}, nil
}

func (locationXML *sumoLocationXML) prepare() (Location, error) {
	location := Location{
		ProjParameter: locationXML.ProjParameter,
	}
	if locationXML.NetOffset != "" {
		pt, err := parsePoint(locationXML.NetOffset)
		if err != nil {
			return location, err
		}
		location.NetOffset = pt
	}
	var err error
	if location.ConvBoundary, err = parseBoundary(locationXML.ConvBoundary); err != nil {
		return location, err
	}
	if location.OrigBoundary, err = parseBoundary(locationXML.OrigBoundary); err != nil {
		return location, err
	}
	if location.ProjParameter == "" {
		location.ProjParameter = "!"
	}
	return location, nil
}

// parseShape parses "x1,y1 x2,y2 ..." (optional z is ignored)
func parseShape(str string) (orb.LineString, error) {
	fields := strings.Fields(str)
	shape := make(orb.LineString, 0, len(fields))
	for _, field := range fields {
		pt, err := parsePoint(field)
		if err != nil {
			return nil, err
		}
		shape = append(shape, pt)
	}
	return shape, nil
}

func parsePoint(str string) (orb.Point, error) {
	coords := strings.Split(str, ",")
	if len(coords) < 2 {
		return orb.Point{}, parseError(nil, "Bad point '%s'", str)
	}
	x, err := strconv.ParseFloat(coords[0], 64)
	if err != nil {
		return orb.Point{}, err
	}
	y, err := strconv.ParseFloat(coords[1], 64)
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{x, y}, nil
}

// parseBoundary parses "minX,minY,maxX,maxY"
func parseBoundary(str string) (orb.Bound, error) {
	if str == "" {
		return orb.Bound{}, nil
	}
	parts := strings.Split(str, ",")
	if len(parts) != 4 {
		return orb.Bound{}, parseError(nil, "Bad boundary '%s'", str)
	}
	values := make([]float64, 4)
	for i := range parts {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return orb.Bound{}, err
		}
		values[i] = v
	}
	return orb.Bound{Min: orb.Point{values[0], values[1]}, Max: orb.Point{values[2], values[3]}}, nil
}
