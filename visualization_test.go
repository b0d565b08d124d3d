package evisync

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestVisualizationRouterPlanar(t *testing.T) {
	sink := &recordingSink{}
	router := NewVisualizationRouter(nil, sink, nil)
	msg := &VisualizationMessage{
		TimeS: 2,
		Content: []VisualizationContent{
			{EntityID: 1, WirelessMessage: &WirelessMessageReceived{SenderID: 4, Location: &WirePosition{PX: 110, PY: 220, Angle: 45}}},
			{EntityID: 2},
			{EntityID: 3, GenericWarning: &GenericWarning{Intensity: 1, Description: "pedestrian"}},
		},
	}
	events := router.Apply(msg, orb.Point{100, 200})
	if len(events) != 2 {
		t.Fatalf("Empty content must be skipped: %d events, but got %d", 2, len(events))
	}
	if len(sink.events) != 2 {
		t.Errorf("Sink must receive %d events, but got %d", 2, len(sink.events))
	}
	wireless := events[0]
	if wireless.Kind != VISUALIZATION_WIRELESS_MESSAGE {
		t.Errorf("Kind must be %s, but got %s", VISUALIZATION_WIRELESS_MESSAGE, wireless.Kind)
	}
	if wireless.Position != (orb.Point{10, 20}) {
		t.Errorf("Position must be offset-corrected to %v, but got %v", orb.Point{10, 20}, wireless.Position)
	}
	if wireless.Heading != 45 || wireless.SenderID != 4 || wireless.TimeS != 2 {
		t.Errorf("Bad wireless event: %+v", wireless)
	}
	if events[1].Description != "pedestrian" {
		t.Errorf("Description must be 'pedestrian', but got '%s'", events[1].Description)
	}
	if router.Apply(nil, orb.Point{}) != nil {
		t.Errorf("Nil message must give no events")
	}
}

func TestVisualizationRouterProjected(t *testing.T) {
	projection, err := NewProjection(Location{
		NetOffset:     orb.Point{-500000, -4982000},
		ProjParameter: "+proj=utm +zone=32 +ellps=WGS84 +datum=WGS84 +units=m +no_defs",
	}, orb.Point{})
	if err != nil {
		t.Fatal(err)
	}
	router := NewVisualizationRouter(projection, nil, nil)
	events := router.Apply(&VisualizationMessage{Content: []VisualizationContent{
		{WirelessMessage: &WirelessMessageReceived{Location: &WirePosition{Lon: 9, Lat: 45, PX: 1e6, PY: 1e6}}},
	}}, orb.Point{})
	if len(events) != 1 {
		t.Fatalf("Number of events must be %d, but got %d", 1, len(events))
	}
	if !almostEqual(events[0].Position.X(), 0, 1e-6) || !almostEqual(events[0].Position.Y(), 950.4, 1) {
		t.Errorf("Position must be projected from WGS84 to about (0, 950.4), but got %v", events[0].Position)
	}
}
