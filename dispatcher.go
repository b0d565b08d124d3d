package evisync

import (
	"time"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

const (
	defaultStepLength = 100 * time.Millisecond
)

// CommandSource is the foreground side of NetworkWorker
type CommandSource interface {
	TakeNewData() bool
	Drain(existence ExistenceState) map[uint32]VehicleState
	HasPending() bool
	Pop() (*Message, bool)
	StageFrame(msg *Message) bool
}

type TickState uint16

const (
	TICK_NO_NEW_DATA = TickState(iota + 1)
	TICK_NEW_DATA_EMPTY
	TICK_NEW_DATA
)

func (iotaIdx TickState) String() string {
	return [...]string{"no_new_data", "new_data_empty", "new_data"}[iotaIdx-1]
}

// Dispatcher runs once per rendered frame: it applies inbound commands, extrapolates
// vehicles between authoritative updates, routes other messages and sends the ego pose
type Dispatcher struct {
	source   CommandSource
	registry *VehicleRegistry
	graph    *RoadGraph
	lights   *TrafficLightBoard
	visuals  *VisualizationRouter
	haptics  HapticSink
	logger   *log.Entry

	ego           EgoSource
	egoID         uint32
	egoType       VehicleType
	egoRegistered bool
	messageID     uint32
	offset        orb.Point

	stepLength   time.Duration
	clock        time.Duration
	sendStep     int64
	sinceUpdate  time.Duration
	waitSteps    int
	extrapolated bool
}

type DispatcherOption func(*Dispatcher)

// WithRoadGraph enables road-aware extrapolation
func WithRoadGraph(graph *RoadGraph) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.graph = graph
	}
}

func WithTrafficLights(board *TrafficLightBoard) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.lights = board
	}
}

func WithVisualization(router *VisualizationRouter) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.visuals = router
	}
}

func WithHaptics(sink HapticSink) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.haptics = sink
	}
}

// WithEgo sets local vehicle which pose is sent to EVI every step
func WithEgo(ego EgoSource, egoID uint32, vehicleType VehicleType) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.ego = ego
		dispatcher.egoID = egoID
		dispatcher.egoType = vehicleType
	}
}

// WithStepLength sets EVI simulation step: ego is sent once per step
func WithStepLength(stepLength time.Duration) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.stepLength = stepLength
	}
}

// WithSceneOffset sets offset added back to outbound positions
func WithSceneOffset(offset orb.Point) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.offset = offset
	}
}

func WithDispatcherLogger(logger *log.Entry) DispatcherOption {
	return func(dispatcher *Dispatcher) {
		dispatcher.logger = logger
	}
}

func NewDispatcher(source CommandSource, registry *VehicleRegistry, options ...DispatcherOption) *Dispatcher {
	dispatcher := &Dispatcher{
		source:     source,
		registry:   registry,
		stepLength: defaultStepLength,
		logger:     log.NewEntry(log.StandardLogger()),
	}
	for _, option := range options {
		option(dispatcher)
	}
	return dispatcher
}

// Tick processes one simulation frame of length dt
func (dispatcher *Dispatcher) Tick(dt time.Duration) TickState {
	dispatcher.clock += dt
	dispatcher.sinceUpdate += dt
	if dispatcher.ego != nil {
		dispatcher.ego.Advance(dt)
	}

	dispatcher.registry.Apply(dispatcher.source.Drain(EXISTENCE_REGISTERING))
	dispatcher.registry.Apply(dispatcher.source.Drain(EXISTENCE_UNREGISTERING))

	state := TICK_NO_NEW_DATA
	if dispatcher.source.TakeNewData() {
		state = TICK_NEW_DATA_EMPTY
		updates := dispatcher.source.Drain(EXISTENCE_UPDATING)
		if len(updates) > 0 {
			state = TICK_NEW_DATA
			dispatcher.reconcile(updates, dt)
		}
	}
	if state != TICK_NEW_DATA && dispatcher.registry.Len() > 0 {
		dispatcher.extrapolate(dt)
	}

	dispatcher.routeMessages()
	dispatcher.syncEgo()
	return state
}

func (dispatcher *Dispatcher) reconcile(updates map[uint32]VehicleState, dt time.Duration) {
	dispatcher.sinceUpdate = 0
	dispatcher.waitSteps--
	if dispatcher.waitSteps < 0 {
		dispatcher.waitSteps = 0
	}
	if dispatcher.waitSteps > 0 {
		dispatcher.logger.WithFields(log.Fields{"wait_steps": dispatcher.waitSteps, "vehicles": len(updates)}).Debug("Update batch superseded by extrapolation")
		dispatcher.registry.Extrapolate(dispatcher.graph, dt)
		return
	}
	if dispatcher.extrapolated {
		dispatcher.registry.Converge(updates)
		dispatcher.extrapolated = false
		return
	}
	dispatcher.registry.Update(updates)
}

func (dispatcher *Dispatcher) extrapolate(dt time.Duration) {
	dispatcher.extrapolated = true
	dispatcher.registry.Extrapolate(dispatcher.graph, dt)
	if dispatcher.sinceUpdate > dispatcher.stepLength*time.Duration(dispatcher.waitSteps) {
		dispatcher.waitSteps++
	}
}

// routeMessages drains non-vehicle messages without blocking the frame
func (dispatcher *Dispatcher) routeMessages() {
	for dispatcher.source.HasPending() {
		msg, ok := dispatcher.source.Pop()
		if !ok {
			return
		}
		switch msg.Kind() {
		case KIND_TRAFFIC_LIGHT:
			if dispatcher.lights != nil {
				dispatcher.lights.Apply(msg.TrafficLight)
			}
		case KIND_VISUALIZATION:
			if dispatcher.visuals != nil {
				dispatcher.visuals.Apply(msg.Visualization, dispatcher.offset)
			}
		case KIND_HAPTIC_SIGNALS:
			if dispatcher.haptics != nil {
				for _, signal := range msg.HapticSignals.Signals {
					dispatcher.haptics.Feedback(signal)
				}
			}
		case KIND_SESSION:
			dispatcher.logSession(msg.Session)
		default:
			dispatcher.logger.WithField("kind", msg.Kind()).Warn("Unexpected message kind")
		}
	}
}

func (dispatcher *Dispatcher) logSession(session *SessionMessage) {
	switch {
	case session.Init != nil:
		dispatcher.logger.WithField("net_file", session.Init.NetFile).Info("Session initialised by EVI")
	case session.Teardown != nil:
		dispatcher.logger.WithField("reason", session.Teardown.Reason).Info("Session teardown requested by EVI")
	case session.TimeReached != nil:
		dispatcher.logger.WithField("time_s", session.TimeReached.TimeS).Debug("EVI time reached")
	}
}

// syncEgo stages ego pose once per step: registration first, updates afterwards
func (dispatcher *Dispatcher) syncEgo() {
	if dispatcher.ego == nil {
		return
	}
	if dispatcher.clock <= dispatcher.stepLength*time.Duration(dispatcher.sendStep) {
		return
	}
	dispatcher.sendStep++
	state := dispatcher.ego.EgoState()
	state.ID = dispatcher.egoID
	state.Ego = true
	state.Type = dispatcher.egoType

	var msg *Message
	if dispatcher.egoRegistered {
		msg = NewUpdateMessage(dispatcher.messageID, state, dispatcher.offset)
	} else {
		msg = NewRegisterMessage(dispatcher.messageID, state, dispatcher.offset)
	}
	if !dispatcher.source.StageFrame(msg) {
		return
	}
	dispatcher.messageID++
	dispatcher.egoRegistered = true
}

// WaitSteps returns current backoff: while it is above one, arriving update batches are superseded by extrapolation
func (dispatcher *Dispatcher) WaitSteps() int {
	return dispatcher.waitSteps
}

// Extrapolated reports whether vehicles have been extrapolated since the last merged update
func (dispatcher *Dispatcher) Extrapolated() bool {
	return dispatcher.extrapolated
}

// Registry returns vehicle registry driven by this dispatcher
func (dispatcher *Dispatcher) Registry() *VehicleRegistry {
	return dispatcher.registry
}
