package evisync

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration of a session. Every field has a default, see DefaultConfig()
type Config struct {
	EVI        EVIConfig        `yaml:"evi"`
	Ego        EgoConfig        `yaml:"ego"`
	Scenario   ScenarioConfig   `yaml:"scenario"`
	Simulation SimulationConfig `yaml:"simulation"`
	Steering   SteeringConfig   `yaml:"steering"`
	LogLevel   string           `yaml:"log_level"`
}

type EVIConfig struct {
	// Scheme is one of tcp, ipc, ws, wss
	Scheme       string        `yaml:"scheme"`
	Address      string        `yaml:"address"`
	Port         int           `yaml:"port"`
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
}

type EgoConfig struct {
	Name        string  `yaml:"name"`
	VehicleType string  `yaml:"vehicle_type"`
	X           float64 `yaml:"x"`
	Y           float64 `yaml:"y"`
	Heading     float64 `yaml:"heading"`
	Speed       float64 `yaml:"speed"`
}

type ScenarioConfig struct {
	// NetFile is SUMO .net.xml or OSM .osm/.osm.pbf. Empty means no road graph
	NetFile string  `yaml:"net_file"`
	OffsetX float64 `yaml:"offset_x"`
	OffsetY float64 `yaml:"offset_y"`
	Verbose bool    `yaml:"verbose"`
}

type SimulationConfig struct {
	StepLength time.Duration `yaml:"step_length"`
	FrameRate  int           `yaml:"frame_rate"`
}

type SteeringConfig struct {
	// Listen is UDP address of the companion app feed, e.g. ":15006". Empty disables steering
	Listen      string  `yaml:"listen"`
	CruiseSpeed float64 `yaml:"cruise_speed"`
}

const (
	defaultEVIPort    = 12346
	defaultFrameRate  = 60
	defaultEgoName    = "ego-vehicle"
	defaultCruiseSpd  = 5.0
	defaultLogLevel   = "info"
	defaultEVIScheme  = "tcp"
	defaultEVIAddress = "localhost"
)

func DefaultConfig() *Config {
	return &Config{
		EVI: EVIConfig{
			Scheme:       defaultEVIScheme,
			Address:      defaultEVIAddress,
			Port:         defaultEVIPort,
			ReplyTimeout: defaultReplyTimeout,
		},
		Ego: EgoConfig{
			Name:        defaultEgoName,
			VehicleType: "CAR",
		},
		Simulation: SimulationConfig{
			StepLength: defaultStepLength,
			FrameRate:  defaultFrameRate,
		},
		Steering: SteeringConfig{
			CruiseSpeed: defaultCruiseSpd,
		},
		LogLevel: defaultLogLevel,
	}
}

// LoadConfig reads YAML file on top of defaults
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read config '%s'", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "Can't parse config '%s'", path)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if _, err := ParseEgoVehicleType(cfg.Ego.VehicleType); err != nil {
		return err
	}
	switch cfg.EVI.Scheme {
	case "tcp", "ipc", "ws", "wss":
	default:
		return errors.Errorf("Unsupported EVI scheme '%s'", cfg.EVI.Scheme)
	}
	if strings.TrimSpace(cfg.EVI.Address) == "" {
		return errors.New("EVI address is empty")
	}
	if cfg.EVI.Scheme != "ipc" && (cfg.EVI.Port <= 0 || cfg.EVI.Port > 65535) {
		return errors.Errorf("EVI port %d is out of range", cfg.EVI.Port)
	}
	if cfg.EVI.ReplyTimeout <= 0 {
		return errors.Errorf("Reply timeout must be positive, got %v", cfg.EVI.ReplyTimeout)
	}
	if cfg.Simulation.StepLength <= 0 {
		return errors.Errorf("Step length must be positive, got %v", cfg.Simulation.StepLength)
	}
	if cfg.Simulation.FrameRate <= 0 {
		return errors.Errorf("Frame rate must be positive, got %d", cfg.Simulation.FrameRate)
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(err, "Bad log level")
	}
	return nil
}

// Endpoint builds transport address, e.g. "tcp://localhost:12346" or "ipc:///tmp/evi"
func (cfg *Config) Endpoint() string {
	if cfg.EVI.Scheme == "ipc" {
		return fmt.Sprintf("ipc://%s", cfg.EVI.Address)
	}
	if cfg.EVI.Scheme == "ws" || cfg.EVI.Scheme == "wss" {
		return fmt.Sprintf("%s://%s:%d/", cfg.EVI.Scheme, cfg.EVI.Address, cfg.EVI.Port)
	}
	return fmt.Sprintf("%s://%s:%d", cfg.EVI.Scheme, cfg.EVI.Address, cfg.EVI.Port)
}

// FrameDuration is the length of one rendered frame
func (cfg *Config) FrameDuration() time.Duration {
	return time.Second / time.Duration(cfg.Simulation.FrameRate)
}

// EgoState builds initial ego pose from configuration
func (cfg *Config) EgoState() VehicleState {
	return VehicleState{
		ID:        VehicleID(cfg.Ego.Name),
		Position:  orb.Point{cfg.Ego.X, cfg.Ego.Y},
		Heading:   cfg.Ego.Heading,
		Speed:     cfg.Ego.Speed,
		LaneIndex: NoLane,
		Ego:       true,
	}
}
