package evisync

import (
	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

type VisualizationKind uint16

const (
	VISUALIZATION_GENERIC_WARNING = VisualizationKind(iota + 1)
	VISUALIZATION_WIRELESS_MESSAGE
)

func (iotaIdx VisualizationKind) String() string {
	return [...]string{"generic_warning", "wireless_message"}[iotaIdx-1]
}

// VisualizationEvent is something to be shown to the driver
type VisualizationEvent struct {
	Kind        VisualizationKind
	EntityID    uint32
	TimeS       float64
	Intensity   float64
	Description string
	SenderID    uint32
	Position    orb.Point
	Heading     float64
}

type VisualizationSink interface {
	Show(event VisualizationEvent)
}

// HapticSink drives vibration motors of a bicycle
type HapticSink interface {
	Feedback(signal HapticSignal)
}

// VisualizationRouter turns visualization messages into events in scene coordinates
type VisualizationRouter struct {
	projection *Projection
	sink       VisualizationSink
	logger     *log.Entry
}

// NewVisualizationRouter. Projection may be nil: wireless message locations are then taken from planar coordinates
func NewVisualizationRouter(projection *Projection, sink VisualizationSink, logger *log.Entry) *VisualizationRouter {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &VisualizationRouter{
		projection: projection,
		sink:       sink,
		logger:     logger,
	}
}

// Apply converts message into events, hands each one to the sink and returns them
func (router *VisualizationRouter) Apply(msg *VisualizationMessage, offset orb.Point) []VisualizationEvent {
	if msg == nil {
		return nil
	}
	events := make([]VisualizationEvent, 0, len(msg.Content))
	for _, content := range msg.Content {
		switch {
		case content.GenericWarning != nil:
			events = append(events, VisualizationEvent{
				Kind:        VISUALIZATION_GENERIC_WARNING,
				EntityID:    content.EntityID,
				TimeS:       msg.TimeS,
				Intensity:   content.GenericWarning.Intensity,
				Description: content.GenericWarning.Description,
			})
		case content.WirelessMessage != nil:
			event := VisualizationEvent{
				Kind:     VISUALIZATION_WIRELESS_MESSAGE,
				EntityID: content.EntityID,
				TimeS:    msg.TimeS,
				SenderID: content.WirelessMessage.SenderID,
			}
			if location := content.WirelessMessage.Location; location != nil {
				event.Heading = location.Angle
				if router.projection != nil {
					event.Position = router.projection.ToLocal(location.Lon, location.Lat)
				} else {
					event.Position = orb.Point{location.PX - offset.X(), location.PY - offset.Y()}
				}
			}
			events = append(events, event)
		default:
			router.logger.WithField("entity_id", content.EntityID).Warn("Empty visualization content")
		}
	}
	if router.sink != nil {
		for _, event := range events {
			router.sink.Show(event)
		}
	}
	return events
}

// LogSink writes events and haptic signals to the log
type LogSink struct {
	Logger *log.Entry
}

func (sink LogSink) Show(event VisualizationEvent) {
	sink.Logger.WithFields(log.Fields{
		"kind":        event.Kind,
		"entity_id":   event.EntityID,
		"time_s":      event.TimeS,
		"intensity":   event.Intensity,
		"description": event.Description,
		"sender_id":   event.SenderID,
		"x":           event.Position.X(),
		"y":           event.Position.Y(),
	}).Info("Visualization event")
}

func (sink LogSink) Feedback(signal HapticSignal) {
	sink.Logger.WithFields(log.Fields{
		"entity_id": signal.EntityID,
		"danger":    signal.Danger,
		"pattern":   signal.Pattern,
		"side":      signal.VibrationSide,
	}).Info("Haptic signal")
}
