package evisync

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Color is RGB in [0, 1]
type Color struct {
	R float64
	G float64
	B float64
}

// Scene creates rendered vehicles
type Scene interface {
	Spawn(state VehicleState, capabilities Capabilities, color Color) (SceneObject, error)
}

// SceneObject is a rendered vehicle owned by VehicleRegistry
type SceneObject interface {
	// MoveTo sets target pose, the object may smooth towards it
	MoveTo(state VehicleState)
	// SnapTo places object at pose immediately
	SnapTo(state VehicleState)
	// Free releases the object
	Free()
}

// LogScene is a headless scene: every object only remembers and logs its last pose
type LogScene struct {
	mu      sync.Mutex
	logger  *log.Entry
	objects map[uint32]*LogSceneObject
}

func NewLogScene(logger *log.Entry) *LogScene {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &LogScene{
		logger:  logger,
		objects: make(map[uint32]*LogSceneObject),
	}
}

func (scene *LogScene) Spawn(state VehicleState, capabilities Capabilities, color Color) (SceneObject, error) {
	scene.mu.Lock()
	defer scene.mu.Unlock()
	object := &LogSceneObject{
		scene:        scene,
		state:        state,
		capabilities: capabilities,
		color:        color,
	}
	scene.objects[state.ID] = object
	scene.logger.WithFields(log.Fields{
		"vehicle_id":   state.ID,
		"vehicle_type": state.Type,
		"wheels":       capabilities.Wheels,
	}).Info("Vehicle spawned")
	return object, nil
}

// Len returns number of live objects
func (scene *LogScene) Len() int {
	scene.mu.Lock()
	defer scene.mu.Unlock()
	return len(scene.objects)
}

type LogSceneObject struct {
	scene        *LogScene
	state        VehicleState
	capabilities Capabilities
	color        Color
}

func (object *LogSceneObject) MoveTo(state VehicleState) {
	object.state = state
	object.scene.logger.WithFields(log.Fields{"vehicle_id": state.ID, "x": state.Position.X(), "y": state.Position.Y(), "heading": state.Heading}).Trace("Vehicle moved")
}

func (object *LogSceneObject) SnapTo(state VehicleState) {
	object.state = state
	object.scene.logger.WithFields(log.Fields{"vehicle_id": state.ID, "x": state.Position.X(), "y": state.Position.Y()}).Debug("Vehicle converged")
}

func (object *LogSceneObject) Free() {
	object.scene.mu.Lock()
	defer object.scene.mu.Unlock()
	if current, ok := object.scene.objects[object.state.ID]; ok && current == object {
		delete(object.scene.objects, object.state.ID)
	}
	object.scene.logger.WithField("vehicle_id", object.state.ID).Info("Vehicle freed")
}
