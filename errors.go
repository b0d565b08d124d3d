package evisync

import (
	"github.com/pkg/errors"
)

var (
	// ErrParse is returned when a road network description is absent or malformed
	ErrParse = errors.New("road network parse error")
	// ErrConnection is returned when the transport to EVI can't be created
	ErrConnection = errors.New("connection error")
	// ErrMalformedFrame marks inbound frames which can't be decoded
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrWorkerClosed is returned by operations on a torn down network worker
	ErrWorkerClosed = errors.New("network worker is closed")
	// ErrUnknownJunction is returned by routing when a junction is not in the graph
	ErrUnknownJunction = errors.New("unknown junction")
	// ErrNoRoute is returned by routing when junctions are not connected
	ErrNoRoute = errors.New("no route")
)
