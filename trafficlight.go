package evisync

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// SignalState is a traffic light state on the wire
type SignalState uint32

const (
	SIGNAL_STATE_RED = SignalState(iota + 1)
	SIGNAL_STATE_RED_YELLOW
	SIGNAL_STATE_GREEN
	SIGNAL_STATE_YELLOW
	SIGNAL_STATE_OFF = SignalState(0)
)

func (iotaIdx SignalState) String() string {
	if int(iotaIdx) >= 5 {
		return fmt.Sprintf("unknown(%d)", uint32(iotaIdx))
	}
	return [...]string{"off", "red", "red_yellow", "green", "yellow"}[iotaIdx]
}

// LightState is what a traffic light panel shows
type LightState uint16

const (
	LIGHT_GREEN = LightState(iota + 1)
	LIGHT_YELLOW
	LIGHT_RED
	LIGHT_BLINK_YELLOW
	LIGHT_RED_YELLOW
)

func (iotaIdx LightState) String() string {
	return [...]string{"green", "yellow", "red", "blink_yellow", "red_yellow"}[iotaIdx-1]
}

var (
	lightBySignal = map[SignalState]LightState{
		SIGNAL_STATE_OFF:        LIGHT_BLINK_YELLOW,
		SIGNAL_STATE_RED:        LIGHT_RED,
		SIGNAL_STATE_RED_YELLOW: LIGHT_RED_YELLOW,
		SIGNAL_STATE_GREEN:      LIGHT_GREEN,
		SIGNAL_STATE_YELLOW:     LIGHT_YELLOW,
	}
)

// PanelID names a signal of a junction
func PanelID(junctionID uint32, signalIndex int) string {
	return fmt.Sprintf("tl_%d_%d", junctionID, signalIndex)
}

// TrafficLightBoard keeps state of every known traffic light panel
type TrafficLightBoard struct {
	panels     map[string]LightState
	autoPanels bool
	logger     *log.Entry
}

type TrafficLightOption func(*TrafficLightBoard)

// WithAutoPanels creates unknown panels on first update instead of skipping them
func WithAutoPanels(auto bool) TrafficLightOption {
	return func(board *TrafficLightBoard) {
		board.autoPanels = auto
	}
}

func WithTrafficLightLogger(logger *log.Entry) TrafficLightOption {
	return func(board *TrafficLightBoard) {
		board.logger = logger
	}
}

func NewTrafficLightBoard(options ...TrafficLightOption) *TrafficLightBoard {
	board := &TrafficLightBoard{
		panels: make(map[string]LightState),
		logger: log.NewEntry(log.StandardLogger()),
	}
	for _, option := range options {
		option(board)
	}
	return board
}

// AddPanel registers panel, initially blinking yellow. Returns false if it exists already
func (board *TrafficLightBoard) AddPanel(panelID string) bool {
	if _, ok := board.panels[panelID]; ok {
		return false
	}
	board.panels[panelID] = LIGHT_BLINK_YELLOW
	return true
}

// Apply updates panels from the message and returns number of changed panels
func (board *TrafficLightBoard) Apply(msg *TrafficLightMessage) int {
	if msg == nil {
		return 0
	}
	applied := 0
	for _, junction := range msg.Junctions {
		for i, state := range junction.States {
			panelID := PanelID(junction.JunctionID, i)
			light, ok := lightBySignal[SignalState(state)]
			if !ok {
				board.logger.WithFields(log.Fields{"panel": panelID, "state": SignalState(state)}).Warn("Unknown signal state, showing blinking yellow")
				light = LIGHT_BLINK_YELLOW
			}
			if _, known := board.panels[panelID]; !known && !board.autoPanels {
				board.logger.WithField("panel", panelID).Warn("Traffic light panel is not known")
				continue
			}
			board.panels[panelID] = light
			applied++
		}
	}
	return applied
}

// State returns what the panel shows
func (board *TrafficLightBoard) State(panelID string) (LightState, bool) {
	state, ok := board.panels[panelID]
	return state, ok
}

// PanelIDs returns sorted identifiers of known panels
func (board *TrafficLightBoard) PanelIDs() []string {
	ids := make([]string, 0, len(board.panels))
	for id := range board.panels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
