package simulation

import (
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
	"gopkg.in/yaml.v3"
)

// Config lists every tunable of the simulation core.
type Config struct {
	// FixedStepSize is the simulated seconds per step.
	FixedStepSize float64 `json:"fixed_step_size" yaml:"fixed_step_size"`
	// MaxStepsPerCall caps the catch-up work done by one Advance.
	MaxStepsPerCall  int        `json:"max_steps_per_call" yaml:"max_steps_per_call"`
	SolverIterations int        `json:"solver_iterations" yaml:"solver_iterations"`
	Gravity          mgl64.Vec3 `json:"gravity" yaml:"gravity"`
	// LinearDrag and AngularDrag are damping rates in 1/s applied to every movable body.
	LinearDrag  float64 `json:"linear_drag" yaml:"linear_drag"`
	AngularDrag float64 `json:"angular_drag" yaml:"angular_drag"`

	// RestitutionThreshold is the approach speed below which contacts do not bounce.
	RestitutionThreshold float64 `json:"restitution_threshold" yaml:"restitution_threshold"`
	Baumgarte            float64 `json:"baumgarte" yaml:"baumgarte"`
	PenetrationSlop      float64 `json:"penetration_slop" yaml:"penetration_slop"`
	// InstabilityStrikes is how many failed steps a contact pair may cause before its
	// offending body is excluded from collisions for CooldownSteps.
	InstabilityStrikes int    `json:"instability_strikes" yaml:"instability_strikes"`
	CooldownSteps      uint64 `json:"cooldown_steps" yaml:"cooldown_steps"`
	// Workers bounds the narrow phase fan-out; 0 means one per CPU.
	Workers int `json:"workers" yaml:"workers"`

	DefaultMaterial physics.Material `json:"default_material" yaml:"default_material"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		FixedStepSize:        1.0 / 60.0,
		MaxStepsPerCall:      5,
		SolverIterations:     10,
		Gravity:              mgl64.Vec3{0, -9.81, 0},
		RestitutionThreshold: 1.0,
		Baumgarte:            0.2,
		PenetrationSlop:      0.005,
		InstabilityStrikes:   3,
		CooldownSteps:        120,
		Workers:              1,
		DefaultMaterial:      physics.Material{Restitution: 0.2, Friction: 0.5},
	}
}

// Validate checks every field and wraps physics.ErrInvalidInput on failure.
func (c *Config) Validate() error {
	if !(c.FixedStepSize > 0) || !physics.IsFinite(c.FixedStepSize) {
		return fmt.Errorf("fixed_step_size must be positive: %w", physics.ErrInvalidInput)
	}
	if c.MaxStepsPerCall < 1 {
		return fmt.Errorf("max_steps_per_call must be at least 1: %w", physics.ErrInvalidInput)
	}
	if c.SolverIterations < 1 {
		return fmt.Errorf("solver_iterations must be at least 1: %w", physics.ErrInvalidInput)
	}
	if !physics.FiniteVec(c.Gravity) {
		return fmt.Errorf("gravity must be finite: %w", physics.ErrInvalidInput)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"linear_drag", c.LinearDrag},
		{"angular_drag", c.AngularDrag},
		{"restitution_threshold", c.RestitutionThreshold},
		{"penetration_slop", c.PenetrationSlop},
	} {
		if !(f.value >= 0) || !physics.IsFinite(f.value) {
			return fmt.Errorf("%s must be non-negative: %w", f.name, physics.ErrInvalidInput)
		}
	}
	if !(c.Baumgarte >= 0 && c.Baumgarte <= 1) {
		return fmt.Errorf("baumgarte must be within [0,1]: %w", physics.ErrInvalidInput)
	}
	if c.InstabilityStrikes < 1 {
		return fmt.Errorf("instability_strikes must be at least 1: %w", physics.ErrInvalidInput)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %w", physics.ErrInvalidInput)
	}
	if err := c.DefaultMaterial.Validate(); err != nil {
		return fmt.Errorf("default_material: %w", err)
	}
	return nil
}

// DecodeConfig reads YAML from r on top of DefaultConfig and validates the result.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return DecodeConfig(f)
}
