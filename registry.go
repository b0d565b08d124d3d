package evisync

import (
	"math/rand"
	"sort"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	paletteSize = 17
)

type trackedVehicle struct {
	state      VehicleState
	object     SceneObject
	generation uint32
}

// VehicleRegistry maps vehicle id to last known (or extrapolated) state and its rendered object.
// Unregistered ids leave a tombstone: updates for them are dropped until the next registration
type VehicleRegistry struct {
	egoID      uint32
	scene      Scene
	vehicles   map[uint32]*trackedVehicle
	tombstones map[uint32]uint32
	palette    []Color
	random     *rand.Rand
	logger     *log.Entry
}

type RegistryOption func(*VehicleRegistry)

func WithRegistryLogger(logger *log.Entry) RegistryOption {
	return func(registry *VehicleRegistry) {
		registry.logger = logger
	}
}

// WithColorSeed makes color assignment reproducible
func WithColorSeed(seed int64) RegistryOption {
	return func(registry *VehicleRegistry) {
		registry.random = rand.New(rand.NewSource(seed))
	}
}

func NewVehicleRegistry(egoID uint32, scene Scene, options ...RegistryOption) *VehicleRegistry {
	registry := &VehicleRegistry{
		egoID:      egoID,
		scene:      scene,
		vehicles:   make(map[uint32]*trackedVehicle),
		tombstones: make(map[uint32]uint32),
		palette:    make([]Color, paletteSize),
		random:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     log.NewEntry(log.StandardLogger()),
	}
	for i := range registry.palette {
		grey := float64(i) / float64(paletteSize-1)
		registry.palette[i] = Color{R: grey, G: grey, B: grey}
	}
	for _, option := range options {
		option(registry)
	}
	return registry
}

// sortedIDs gives deterministic processing order of a command batch
func sortedIDs(commands map[uint32]VehicleState) []uint32 {
	ids := lo.Keys(commands)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (registry *VehicleRegistry) isEgo(state VehicleState) bool {
	return state.Ego || state.ID == registry.egoID
}

// Apply processes a batch of Register/Update/Unregister commands
func (registry *VehicleRegistry) Apply(commands map[uint32]VehicleState) {
	for _, id := range sortedIDs(commands) {
		state := commands[id]
		if registry.isEgo(state) {
			continue
		}
		switch state.Existence {
		case EXISTENCE_REGISTERING:
			registry.register(state)
		case EXISTENCE_UNREGISTERING:
			registry.unregister(state.ID)
		default:
			registry.update(state, false)
		}
	}
}

// Update merges authoritative poses, objects may smooth towards them
func (registry *VehicleRegistry) Update(updates map[uint32]VehicleState) {
	registry.merge(updates, false)
}

// Converge merges authoritative poses placing objects directly
func (registry *VehicleRegistry) Converge(updates map[uint32]VehicleState) {
	registry.merge(updates, true)
}

func (registry *VehicleRegistry) merge(updates map[uint32]VehicleState, snap bool) {
	for _, id := range sortedIDs(updates) {
		state := updates[id]
		if registry.isEgo(state) {
			continue
		}
		registry.update(state, snap)
	}
}

func (registry *VehicleRegistry) register(state VehicleState) {
	if _, ok := registry.vehicles[state.ID]; ok {
		registry.logger.WithField("vehicle_id", state.ID).Debug("Vehicle is registered already, treating registration as update")
		registry.update(state, true)
		return
	}
	generation := uint32(0)
	if previous, ok := registry.tombstones[state.ID]; ok {
		generation = previous + 1
		delete(registry.tombstones, state.ID)
	}
	registry.spawn(state, generation)
}

func (registry *VehicleRegistry) spawn(state VehicleState, generation uint32) {
	state.Existence = EXISTENCE_UPDATING
	state.DoorsOnly = false
	color := registry.palette[registry.random.Intn(len(registry.palette))]
	object, err := registry.scene.Spawn(state, CapabilitiesFor(state.Type), color)
	if err != nil {
		registry.logger.WithError(err).WithField("vehicle_id", state.ID).Error("Can't spawn vehicle")
		return
	}
	object.SnapTo(state)
	registry.vehicles[state.ID] = &trackedVehicle{
		state:      state,
		object:     object,
		generation: generation,
	}
	registry.logger.WithFields(log.Fields{"vehicle_id": state.ID, "generation": generation}).Debug("Vehicle registered")
}

func (registry *VehicleRegistry) unregister(id uint32) {
	tracked, ok := registry.vehicles[id]
	if !ok {
		return
	}
	tracked.object.Free()
	delete(registry.vehicles, id)
	registry.tombstones[id] = tracked.generation
	registry.logger.WithField("vehicle_id", id).Debug("Vehicle unregistered")
}

func (registry *VehicleRegistry) update(state VehicleState, snap bool) {
	tracked, ok := registry.vehicles[state.ID]
	if !ok {
		if _, removed := registry.tombstones[state.ID]; removed {
			return
		}
		if state.DoorsOnly {
			return
		}
		// Registration has been lost: updates create the vehicle
		registry.spawn(state, 0)
		return
	}
	next := tracked.state
	if state.DoorsOnly {
		next.Doors = state.Doors
	} else {
		doors := next.Doors
		vehicleType := next.Type
		next = state
		next.Existence = EXISTENCE_UPDATING
		if !state.Doors.Known {
			next.Doors = doors
		}
		if next.Type == VEHICLE_UNDEFINED {
			next.Type = vehicleType
		}
	}
	tracked.state = next
	if snap {
		tracked.object.SnapTo(next)
	} else {
		tracked.object.MoveTo(next)
	}
}

// Extrapolate advances every tracked vehicle by dt
func (registry *VehicleRegistry) Extrapolate(graph *RoadGraph, dt time.Duration) {
	for _, tracked := range registry.vehicles {
		tracked.state = ExtrapolateStep(tracked.state, dt, graph)
		tracked.object.MoveTo(tracked.state)
	}
}

// State returns current state of tracked vehicle
func (registry *VehicleRegistry) State(id uint32) (VehicleState, bool) {
	tracked, ok := registry.vehicles[id]
	if !ok {
		return VehicleState{}, false
	}
	return tracked.state, true
}

// Generation returns how many times the id has been registered again after removal
func (registry *VehicleRegistry) Generation(id uint32) (uint32, bool) {
	tracked, ok := registry.vehicles[id]
	if !ok {
		return 0, false
	}
	return tracked.generation, true
}

// Len returns number of tracked vehicles
func (registry *VehicleRegistry) Len() int {
	return len(registry.vehicles)
}

// Snapshot returns states of tracked vehicles ordered by id
func (registry *VehicleRegistry) Snapshot() []VehicleState {
	states := lo.MapToSlice(registry.vehicles, func(_ uint32, tracked *trackedVehicle) VehicleState {
		return tracked.state
	})
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states
}
