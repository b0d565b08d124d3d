package evisync

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// GraphBuilder holds parameters of road network import
type GraphBuilder struct {
	filename     string
	verbose      bool
	offset       orb.Point
	highwayTypes []string
	logger       *log.Entry
}

func (builder *GraphBuilder) String() string {
	return fmt.Sprintf(`
Road graph builder parameters:
	filename: '%s'
	verbose: %t
	offset: %v
	highway_types: '%s'
	`,
		builder.filename,
		builder.verbose,
		builder.offset,
		strings.Join(builder.highwayTypes, ","),
	)
}

// NewGraphBuilder prepares builder for the given road network description
func NewGraphBuilder(fileName string, options ...func(*GraphBuilder)) *GraphBuilder {
	builder := &GraphBuilder{
		filename: fileName,
		verbose:  false,
		logger:   log.NewEntry(log.StandardLogger()),
	}
	for _, option := range options {
		option(builder)
	}
	return builder
}

// WithVerbose enables progress logging at Info level
func WithVerbose(verbose bool) func(*GraphBuilder) {
	return func(builder *GraphBuilder) {
		builder.verbose = verbose
	}
}

// WithOffset sets scene offset which is subtracted from every coordinate
func WithOffset(x, y float64) func(*GraphBuilder) {
	return func(builder *GraphBuilder) {
		builder.offset = orb.Point{x, y}
	}
}

// WithHighwayTypes restricts OSM import to ways having one of given 'highway' tag values
func WithHighwayTypes(highwayTypes []string) func(*GraphBuilder) {
	return func(builder *GraphBuilder) {
		builder.highwayTypes = highwayTypes
	}
}

func WithGraphLogger(logger *log.Entry) func(*GraphBuilder) {
	return func(builder *GraphBuilder) {
		builder.logger = logger
	}
}

// Build parses road network. Kind of source is guessed by file extension
func (builder *GraphBuilder) Build() (*RoadGraph, error) {
	var (
		graph *RoadGraph
		err   error
	)
	switch {
	case strings.HasSuffix(builder.filename, ".osm.pbf"), strings.HasSuffix(builder.filename, ".osm"), filepath.Ext(builder.filename) == ".pbf":
		graph, err = builder.readOSM()
	default:
		graph, err = builder.readSUMO()
	}
	if err != nil {
		return nil, err
	}
	builder.progress("Road graph is ready: %s", graph)
	return graph, nil
}

// BuildRoadGraph is a shorthand for NewGraphBuilder(...).Build()
func BuildRoadGraph(sourcePath string, options ...func(*GraphBuilder)) (*RoadGraph, error) {
	return NewGraphBuilder(sourcePath, options...).Build()
}

// progress emits import progress at Info level for verbose builds and at Debug otherwise
func (builder *GraphBuilder) progress(format string, args ...interface{}) {
	if builder.verbose {
		builder.logger.Infof(format, args...)
		return
	}
	builder.logger.Debugf(format, args...)
}

func parseError(err error, format string, args ...interface{}) error {
	if err != nil {
		return errors.Wrapf(ErrParse, "%s: %v", fmt.Sprintf(format, args...), err)
	}
	return errors.Wrapf(ErrParse, format, args...)
}
