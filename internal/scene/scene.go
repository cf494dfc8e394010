// Package scene describes initial simulation content in YAML or JSON and feeds it into a
// running simulation.
package scene

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/internal/core/pipeline"
	"gopkg.in/yaml.v3"
)

// Scene is a named set of bodies plus the joints, generators and impulses that refer to
// them by name.
type Scene struct {
	Name       string      `json:"name,omitempty" yaml:"name,omitempty"`
	Bodies     []Body      `json:"bodies" yaml:"bodies"`
	Joints     []Joint     `json:"joints,omitempty" yaml:"joints,omitempty"`
	Generators []Generator `json:"generators,omitempty" yaml:"generators,omitempty"`
	Impulses   []Impulse   `json:"impulses,omitempty" yaml:"impulses,omitempty"`
}

type Shape struct {
	Kind        string     `json:"kind" yaml:"kind"`
	Radius      float64    `json:"radius,omitempty" yaml:"radius,omitempty"`
	HalfExtents mgl64.Vec3 `json:"half_extents,omitempty" yaml:"half_extents,omitempty"`
	HalfHeight  float64    `json:"half_height,omitempty" yaml:"half_height,omitempty"`
	Normal      mgl64.Vec3 `json:"normal,omitempty" yaml:"normal,omitempty"`
}

// Rotation is an axis and an angle in degrees.
type Rotation struct {
	Axis  mgl64.Vec3 `json:"axis" yaml:"axis"`
	Angle float64    `json:"angle" yaml:"angle"`
}

type Body struct {
	Name            string            `json:"name" yaml:"name"`
	Shape           Shape             `json:"shape" yaml:"shape"`
	Mass            float64           `json:"mass,omitempty" yaml:"mass,omitempty"`
	Fixed           bool              `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Position        mgl64.Vec3        `json:"position,omitempty" yaml:"position,omitempty"`
	Rotation        *Rotation         `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	LinearVelocity  mgl64.Vec3        `json:"linear_velocity,omitempty" yaml:"linear_velocity,omitempty"`
	AngularVelocity mgl64.Vec3        `json:"angular_velocity,omitempty" yaml:"angular_velocity,omitempty"`
	Acceleration    mgl64.Vec3        `json:"acceleration,omitempty" yaml:"acceleration,omitempty"`
	GravityScale    *float64          `json:"gravity_scale,omitempty" yaml:"gravity_scale,omitempty"`
	Material        *physics.Material `json:"material,omitempty" yaml:"material,omitempty"`
}

// Joint connects body A to body B, or to the world when B is empty. A nil Length keeps
// the anchors at their initial distance.
type Joint struct {
	A       string     `json:"a" yaml:"a"`
	B       string     `json:"b,omitempty" yaml:"b,omitempty"`
	AnchorA mgl64.Vec3 `json:"anchor_a,omitempty" yaml:"anchor_a,omitempty"`
	AnchorB mgl64.Vec3 `json:"anchor_b,omitempty" yaml:"anchor_b,omitempty"`
	Length  *float64   `json:"length,omitempty" yaml:"length,omitempty"`
}

// Generator is a permanent force on a named body. Only "moment" is supported; gravity
// and drag come from the simulation config.
type Generator struct {
	Kind   string     `json:"kind" yaml:"kind"`
	Target string     `json:"target" yaml:"target"`
	Offset mgl64.Vec3 `json:"offset,omitempty" yaml:"offset,omitempty"`
	Force  mgl64.Vec3 `json:"force" yaml:"force"`
}

type Impulse struct {
	Target string     `json:"target" yaml:"target"`
	Vector mgl64.Vec3 `json:"vector" yaml:"vector"`
	Offset mgl64.Vec3 `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// LoadYAML loads a scene from a YAML reader.
func LoadYAML(r io.Reader) (*Scene, error) {
	var s Scene
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return &s, s.Validate()
}

// LoadJSON loads a scene from a JSON reader.
func LoadJSON(r io.Reader) (*Scene, error) {
	var s Scene
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return &s, s.Validate()
}

// Load reads a scene file, choosing the decoder by extension.
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()
	if filepath.Ext(path) == ".json" {
		return LoadJSON(f)
	}
	return LoadYAML(f)
}

// Validate checks names and references. Physical validity is checked on spawn.
func (s *Scene) Validate() error {
	names := make(map[string]struct{}, len(s.Bodies))
	for i, b := range s.Bodies {
		if b.Name == "" {
			return fmt.Errorf("body %d: name is required: %w", i, physics.ErrInvalidInput)
		}
		if _, dup := names[b.Name]; dup {
			return fmt.Errorf("body %q defined twice: %w", b.Name, physics.ErrInvalidInput)
		}
		if _, ok := physics.ParseShapeKind(b.Shape.Kind); !ok {
			return fmt.Errorf("body %q: unknown shape %q: %w", b.Name, b.Shape.Kind, physics.ErrInvalidInput)
		}
		names[b.Name] = struct{}{}
	}
	ref := func(what, name string) error {
		if _, ok := names[name]; !ok {
			return fmt.Errorf("%s refers to unknown body %q: %w", what, name, physics.ErrInvalidInput)
		}
		return nil
	}
	for i, j := range s.Joints {
		if err := ref(fmt.Sprintf("joint %d", i), j.A); err != nil {
			return err
		}
		if j.B != "" {
			if err := ref(fmt.Sprintf("joint %d", i), j.B); err != nil {
				return err
			}
		}
	}
	for i, g := range s.Generators {
		if g.Kind != pipeline.KindMoment.String() {
			return fmt.Errorf("generator %d: unsupported kind %q: %w", i, g.Kind, physics.ErrInvalidInput)
		}
		if err := ref(fmt.Sprintf("generator %d", i), g.Target); err != nil {
			return err
		}
	}
	for i, imp := range s.Impulses {
		if err := ref(fmt.Sprintf("impulse %d", i), imp.Target); err != nil {
			return err
		}
	}
	return nil
}

// Def converts the body to the definition the simulation spawns.
func (b Body) Def() physics.BodyDef {
	kind, _ := physics.ParseShapeKind(b.Shape.Kind)
	def := physics.BodyDef{
		Shape: physics.Shape{
			Kind:        kind,
			Radius:      b.Shape.Radius,
			HalfExtents: b.Shape.HalfExtents,
			HalfHeight:  b.Shape.HalfHeight,
			Normal:      b.Shape.Normal,
		},
		Mass:            b.Mass,
		Fixed:           b.Fixed,
		Position:        b.Position,
		LinearVelocity:  b.LinearVelocity,
		AngularVelocity: b.AngularVelocity,
		Acceleration:    b.Acceleration,
		GravityScale:    b.GravityScale,
		Material:        b.Material,
	}
	if b.Rotation != nil && b.Rotation.Axis.Len() > physics.Epsilon {
		def.Orientation = mgl64.QuatRotate(mgl64.DegToRad(b.Rotation.Angle), b.Rotation.Axis.Normalize())
	}
	return def
}
