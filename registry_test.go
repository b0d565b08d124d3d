package evisync

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"
)

type recordingObject struct {
	state VehicleState
	moves int
	snaps int
	freed bool
}

func (object *recordingObject) MoveTo(state VehicleState) {
	object.state = state
	object.moves++
}

func (object *recordingObject) SnapTo(state VehicleState) {
	object.state = state
	object.snaps++
}

func (object *recordingObject) Free() {
	object.freed = true
}

type recordingScene struct {
	spawned []*recordingObject
	types   []VehicleType
}

func (scene *recordingScene) Spawn(state VehicleState, capabilities Capabilities, color Color) (SceneObject, error) {
	object := &recordingObject{state: state}
	scene.spawned = append(scene.spawned, object)
	scene.types = append(scene.types, state.Type)
	return object, nil
}

func newTestRegistry(egoID uint32) (*VehicleRegistry, *recordingScene) {
	scene := &recordingScene{}
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	registry := NewVehicleRegistry(egoID, scene, WithColorSeed(1), WithRegistryLogger(log.NewEntry(logger)))
	return registry, scene
}

func commands(states ...VehicleState) map[uint32]VehicleState {
	batch := make(map[uint32]VehicleState, len(states))
	for _, state := range states {
		batch[state.ID] = state
	}
	return batch
}

func TestRegistryLifecycle(t *testing.T) {
	registry, scene := newTestRegistry(99)

	registry.Apply(commands(VehicleState{ID: 1, Existence: EXISTENCE_REGISTERING, Position: orb.Point{1, 1}, Type: VEHICLE_BICYCLE}))
	if registry.Len() != 1 || len(scene.spawned) != 1 {
		t.Fatalf("One vehicle must be spawned, but got %d tracked / %d spawned", registry.Len(), len(scene.spawned))
	}
	if scene.spawned[0].snaps != 1 {
		t.Errorf("Spawned vehicle must be snapped to its pose once, but got %d", scene.spawned[0].snaps)
	}

	registry.Update(commands(VehicleState{ID: 1, Existence: EXISTENCE_UPDATING, Position: orb.Point{2, 2}}))
	state, _ := registry.State(1)
	if state.Position != (orb.Point{2, 2}) {
		t.Errorf("Position must be %v, but got %v", orb.Point{2, 2}, state.Position)
	}
	if state.Type != VEHICLE_BICYCLE {
		t.Errorf("Vehicle type must be kept: %s, but got %s", VEHICLE_BICYCLE, state.Type)
	}
	if scene.spawned[0].moves != 1 {
		t.Errorf("Update must move the object once, but got %d", scene.spawned[0].moves)
	}

	registry.Converge(commands(VehicleState{ID: 1, Existence: EXISTENCE_UPDATING, Position: orb.Point{3, 3}}))
	if scene.spawned[0].snaps != 2 {
		t.Errorf("Converge must snap the object, but got %d snaps", scene.spawned[0].snaps)
	}

	registry.Apply(commands(VehicleState{ID: 1, Existence: EXISTENCE_UNREGISTERING}))
	if registry.Len() != 0 {
		t.Errorf("Unregistered vehicle must be removed, but %d are tracked", registry.Len())
	}
	if !scene.spawned[0].freed {
		t.Errorf("Object of unregistered vehicle must be freed")
	}
}

func TestRegistryTombstone(t *testing.T) {
	registry, scene := newTestRegistry(99)
	registry.Apply(commands(VehicleState{ID: 1, Existence: EXISTENCE_REGISTERING}))
	registry.Apply(commands(VehicleState{ID: 1, Existence: EXISTENCE_UNREGISTERING}))

	registry.Update(commands(VehicleState{ID: 1, Existence: EXISTENCE_UPDATING, Position: orb.Point{5, 5}}))
	if registry.Len() != 0 || len(scene.spawned) != 1 {
		t.Errorf("Late update of removed vehicle must be dropped, but got %d tracked / %d spawned", registry.Len(), len(scene.spawned))
	}

	registry.Apply(commands(VehicleState{ID: 1, Existence: EXISTENCE_REGISTERING, Position: orb.Point{6, 6}}))
	generation, ok := registry.Generation(1)
	if !ok || generation != 1 {
		t.Errorf("Registered again vehicle must have generation %d, but got %d (tracked: %t)", 1, generation, ok)
	}
	if len(scene.spawned) != 2 {
		t.Errorf("Registered again vehicle must get a new object, but got %d spawned", len(scene.spawned))
	}

	registry.Apply(commands(VehicleState{ID: 1, Existence: EXISTENCE_UNREGISTERING}))
	registry.Apply(commands(VehicleState{ID: 1, Existence: EXISTENCE_REGISTERING}))
	if generation, _ := registry.Generation(1); generation != 2 {
		t.Errorf("Generation must be %d, but got %d", 2, generation)
	}
}

func TestRegistryLostRegistration(t *testing.T) {
	registry, scene := newTestRegistry(99)
	registry.Update(commands(VehicleState{ID: 3, Existence: EXISTENCE_UPDATING, Position: orb.Point{1, 2}}))
	if registry.Len() != 1 || len(scene.spawned) != 1 {
		t.Errorf("Update for unseen vehicle must create it, but got %d tracked", registry.Len())
	}

	registry.Update(commands(VehicleState{ID: 4, Existence: EXISTENCE_UPDATING, DoorsOnly: true, Doors: DoorState{Known: true, Left: true}}))
	if _, ok := registry.State(4); ok {
		t.Errorf("Door-only update for unseen vehicle must not create it")
	}

	registry.Apply(commands(VehicleState{ID: 3, Existence: EXISTENCE_REGISTERING, Position: orb.Point{7, 7}}))
	if len(scene.spawned) != 1 {
		t.Errorf("Registration of tracked vehicle must not spawn again, but got %d spawned", len(scene.spawned))
	}
	if state, _ := registry.State(3); state.Position != (orb.Point{7, 7}) {
		t.Errorf("Registration of tracked vehicle must update it: %v, but got %v", orb.Point{7, 7}, state.Position)
	}
}

func TestRegistryDoors(t *testing.T) {
	registry, _ := newTestRegistry(99)
	registry.Apply(commands(VehicleState{ID: 1, Existence: EXISTENCE_REGISTERING, Position: orb.Point{1, 1}, Speed: 3}))
	registry.Update(commands(VehicleState{ID: 1, Existence: EXISTENCE_UPDATING, DoorsOnly: true, Doors: DoorState{Known: true, Right: true}}))

	state, _ := registry.State(1)
	if state.Position != (orb.Point{1, 1}) || state.Speed != 3 {
		t.Errorf("Door-only update must not move vehicle, but got %v", state)
	}
	if !state.Doors.Right {
		t.Errorf("Right door must be open, but got %+v", state.Doors)
	}

	registry.Update(commands(VehicleState{ID: 1, Existence: EXISTENCE_UPDATING, Position: orb.Point{2, 2}}))
	state, _ = registry.State(1)
	if !state.Doors.Right {
		t.Errorf("Pose update without door flags must keep doors, but got %+v", state.Doors)
	}
}

func TestRegistrySkipsEgo(t *testing.T) {
	egoID := VehicleID("ego-vehicle")
	registry, scene := newTestRegistry(egoID)
	registry.Apply(commands(
		VehicleState{ID: egoID, Existence: EXISTENCE_REGISTERING},
		VehicleState{ID: 8, Existence: EXISTENCE_REGISTERING, Ego: true},
	))
	registry.Update(commands(VehicleState{ID: egoID, Existence: EXISTENCE_UPDATING}))
	if registry.Len() != 0 || len(scene.spawned) != 0 {
		t.Errorf("Ego vehicle must never be tracked, but got %d tracked", registry.Len())
	}
}

func TestRegistryExtrapolate(t *testing.T) {
	registry, scene := newTestRegistry(99)
	registry.Apply(commands(
		VehicleState{ID: 2, Existence: EXISTENCE_REGISTERING, Position: orb.Point{0, 0}, Heading: 0, Speed: 10},
		VehicleState{ID: 1, Existence: EXISTENCE_REGISTERING, Position: orb.Point{0, 0}, Heading: 90, Speed: 10},
	))
	registry.Extrapolate(nil, time.Second)

	snapshot := registry.Snapshot()
	if len(snapshot) != 2 || snapshot[0].ID != 1 || snapshot[1].ID != 2 {
		t.Fatalf("Snapshot must be ordered by id, but got %v", snapshot)
	}
	if !almostEqual(snapshot[0].Position.X(), 10, 1e-9) {
		t.Errorf("Vehicle 1 X must be %f, but got %f", 10.0, snapshot[0].Position.X())
	}
	if !almostEqual(snapshot[1].Position.Y(), 10, 1e-9) {
		t.Errorf("Vehicle 2 Y must be %f, but got %f", 10.0, snapshot[1].Position.Y())
	}
	for _, object := range scene.spawned {
		if object.moves != 1 {
			t.Errorf("Extrapolation must move every object once, but got %d", object.moves)
		}
	}
}
