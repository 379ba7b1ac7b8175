package config

import (
	"fmt"
	"os"

	"github.com/san-kum/sphsim/internal/sph"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTimestep        = 1.0 / 2000.0
	DefaultStepsPerFrame   = 5
	DefaultParticles       = 1000
	DefaultSmoothingRadius = 0.3
	DefaultDim             = 2
	DefaultBoxMin          = -1.6
	DefaultBoxMax          = 1.6
	DefaultGravity         = -200.0
	DefaultTaitC           = 10.0
	DefaultTaitGamma       = 7.0
	DefaultFrames          = 200
)

type Config struct {
	Name            string  `yaml:"name,omitempty"`
	Timestep        float64 `yaml:"timestep"`
	StepsPerFrame   int     `yaml:"steps_per_frame"`
	NumParticles    int     `yaml:"num_particles"`
	SmoothingRadius float64 `yaml:"smoothing_radius"`
	Dim             int     `yaml:"dim"`
	BoxMin          float64 `yaml:"box_min"`
	BoxMax          float64 `yaml:"box_max"`
	Gravity         float64 `yaml:"gravity"`
	TaitC           float64 `yaml:"tait_c"`
	TaitGamma       float64 `yaml:"tait_gamma"`
	Frames          int     `yaml:"frames"`
	RecordUntil     int     `yaml:"record_until,omitempty"`
	Seed            int64   `yaml:"seed,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Timestep:        DefaultTimestep,
		StepsPerFrame:   DefaultStepsPerFrame,
		NumParticles:    DefaultParticles,
		SmoothingRadius: DefaultSmoothingRadius,
		Dim:             DefaultDim,
		BoxMin:          DefaultBoxMin,
		BoxMax:          DefaultBoxMax,
		Gravity:         DefaultGravity,
		TaitC:           DefaultTaitC,
		TaitGamma:       DefaultTaitGamma,
		Frames:          DefaultFrames,
	}
}

// Load reads a YAML file on top of the defaults, so a file only needs
// the keys it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Params converts the file representation into simulation parameters.
func (c *Config) Params() sph.Params {
	return sph.Params{
		Timestep:        c.Timestep,
		StepsPerFrame:   c.StepsPerFrame,
		NumParticles:    c.NumParticles,
		SmoothingRadius: c.SmoothingRadius,
		Dim:             c.Dim,
		BoxMin:          c.BoxMin,
		BoxMax:          c.BoxMax,
		Gravity:         c.Gravity,
		TaitC:           c.TaitC,
		TaitGamma:       c.TaitGamma,
	}
}

// Validate checks the simulation parameters and the run length.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", c.Frames)
	}
	if c.RecordUntil < 0 {
		return fmt.Errorf("record_until must not be negative, got %d", c.RecordUntil)
	}
	return nil
}

// GetParams returns the tunable parameters by name, for the live view.
func (c *Config) GetParams() map[string]float64 {
	return map[string]float64{
		"gravity":    c.Gravity,
		"tait_c":     c.TaitC,
		"tait_gamma": c.TaitGamma,
		"timestep":   c.Timestep,
		"h":          c.SmoothingRadius,
	}
}

func (c *Config) SetParam(name string, value float64) error {
	switch name {
	case "gravity":
		c.Gravity = value
	case "tait_c":
		c.TaitC = value
	case "tait_gamma":
		c.TaitGamma = value
	case "timestep":
		c.Timestep = value
	case "h":
		c.SmoothingRadius = value
	default:
		return fmt.Errorf("unknown parameter: %s", name)
	}
	return nil
}
