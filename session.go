package evisync

import (
	"context"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Session wires road graph, EVI connection, vehicle registry and ego together and drives them at frame rate
type Session struct {
	cfg        *Config
	graph      *RoadGraph
	projection *Projection
	worker     *NetworkWorker
	steering   *SteeringListener
	registry   *VehicleRegistry
	lights     *TrafficLightBoard
	dispatcher *Dispatcher
	scene      Scene
	transport  Transport
	logger     *log.Entry
}

type SessionOption func(*Session)

func WithSessionLogger(logger *log.Entry) SessionOption {
	return func(session *Session) {
		session.logger = logger
	}
}

// WithSessionScene replaces headless LogScene
func WithSessionScene(scene Scene) SessionOption {
	return func(session *Session) {
		session.scene = scene
	}
}

// WithSessionTransport uses already established transport instead of dialing configured endpoint
func WithSessionTransport(transport Transport) SessionOption {
	return func(session *Session) {
		session.transport = transport
	}
}

// NewSession prepares every component described by configuration and connects to EVI.
// Road network failures are not fatal: vehicles are then extrapolated without road knowledge
func NewSession(cfg *Config, options ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Bad configuration")
	}
	session := &Session{
		cfg:    cfg,
		logger: log.NewEntry(log.StandardLogger()),
	}
	for _, option := range options {
		option(session)
	}
	if session.scene == nil {
		session.scene = NewLogScene(session.logger.WithField("component", "scene"))
	}
	offset := orb.Point{cfg.Scenario.OffsetX, cfg.Scenario.OffsetY}

	session.loadRoadGraph(offset)

	egoType, _ := ParseEgoVehicleType(cfg.Ego.VehicleType)
	egoState := cfg.EgoState()
	egoState.Type = egoType

	workerOptions := []WorkerOption{
		WithReplyTimeout(cfg.EVI.ReplyTimeout),
		WithWorkerOffset(offset),
		WithWorkerLogger(session.logger.WithField("component", "worker")),
	}
	if session.transport != nil {
		workerOptions = append(workerOptions, WithTransport(session.transport))
	}
	worker, err := NewNetworkWorker(cfg.Endpoint(), workerOptions...)
	if err != nil {
		return nil, err
	}
	session.worker = worker

	var ego EgoSource = &StaticEgo{State: egoState}
	if cfg.Steering.Listen != "" {
		steering, err := ListenSteering(cfg.Steering.Listen, session.logger.WithField("component", "steering"))
		if err != nil {
			worker.Close()
			return nil, err
		}
		session.steering = steering
		egoState.Speed = cfg.Steering.CruiseSpeed
		ego = NewSteeringEgo(steering, egoState)
	}

	session.registry = NewVehicleRegistry(
		egoState.ID,
		session.scene,
		WithRegistryLogger(session.logger.WithField("component", "registry")),
	)
	session.lights = NewTrafficLightBoard(
		WithAutoPanels(true),
		WithTrafficLightLogger(session.logger.WithField("component", "traffic_lights")),
	)
	session.addTrafficLightPanels()

	sink := LogSink{Logger: session.logger.WithField("component", "driver")}
	session.dispatcher = NewDispatcher(
		worker,
		session.registry,
		WithRoadGraph(session.graph),
		WithTrafficLights(session.lights),
		WithVisualization(NewVisualizationRouter(session.projection, sink, session.logger.WithField("component", "visualization"))),
		WithHaptics(sink),
		WithEgo(ego, egoState.ID, egoType),
		WithStepLength(cfg.Simulation.StepLength),
		WithSceneOffset(offset),
		WithDispatcherLogger(session.logger.WithField("component", "dispatcher")),
	)
	session.logger.WithFields(log.Fields{
		"endpoint":  cfg.Endpoint(),
		"ego":       cfg.Ego.Name,
		"ego_id":    egoState.ID,
		"ego_type":  egoType,
		"net_file":  cfg.Scenario.NetFile,
		"steering":  cfg.Steering.Listen,
		"frame_dur": cfg.FrameDuration(),
	}).Info("Session prepared")
	return session, nil
}

func (session *Session) loadRoadGraph(offset orb.Point) {
	netFile := session.cfg.Scenario.NetFile
	if netFile == "" {
		session.logger.Warn("No net file configured, vehicles are extrapolated without road network")
		return
	}
	graph, err := BuildRoadGraph(
		netFile,
		WithVerbose(session.cfg.Scenario.Verbose),
		WithOffset(offset.X(), offset.Y()),
		WithGraphLogger(session.logger.WithField("component", "road_graph")),
	)
	if err != nil {
		session.logger.WithError(err).WithField("net_file", netFile).Error("Can't load road network, vehicles are extrapolated without it")
		return
	}
	session.graph = graph
	projection, err := NewProjection(graph.Location(), graph.Offset())
	if err != nil {
		session.logger.WithError(err).Warn("Can't prepare projection, wireless message locations are taken from planar coordinates")
		return
	}
	session.projection = projection
}

// addTrafficLightPanels creates one panel per incoming lane of every signalized junction with numeric id
func (session *Session) addTrafficLightPanels() {
	if session.graph == nil {
		return
	}
	for _, junction := range session.graph.Junctions() {
		if !junction.Type.IsTrafficLight() {
			continue
		}
		junctionID, err := strconv.ParseUint(junction.ID, 10, 32)
		if err != nil {
			continue
		}
		for i := range junction.IncomingLanes {
			session.lights.AddPanel(PanelID(uint32(junctionID), i))
		}
	}
}

// Run ticks dispatcher at configured frame rate until context is done or connection to EVI is lost
func (session *Session) Run(ctx context.Context) error {
	if session.steering != nil {
		go func() {
			if err := session.steering.Run(ctx); err != nil {
				session.logger.WithError(err).Error("Steering feed stopped")
			}
		}()
	}
	ticker := time.NewTicker(session.cfg.FrameDuration())
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			session.logger.Info("Session stopped")
			return nil
		case <-session.worker.Done():
			return errors.Wrap(ErrWorkerClosed, "Connection to EVI is lost")
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			state := session.dispatcher.Tick(dt)
			if state == TICK_NEW_DATA {
				session.logger.WithFields(log.Fields{"vehicles": session.registry.Len(), "wait_steps": session.dispatcher.WaitSteps()}).Debug("Vehicles updated")
			}
		}
	}
}

// Graph returns loaded road network, nil when there is none
func (session *Session) Graph() *RoadGraph {
	return session.graph
}

func (session *Session) Registry() *VehicleRegistry {
	return session.registry
}

func (session *Session) TrafficLights() *TrafficLightBoard {
	return session.lights
}

// Close tears down EVI connection
func (session *Session) Close() error {
	return session.worker.Close()
}
