package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyID is an opaque, generation-checked handle into the body arena. The zero value
// names no body and stands for the static world in joints.
type BodyID uint64

// NoBody is the zero BodyID.
const NoBody BodyID = 0

func makeBodyID(index, generation uint32) BodyID {
	return BodyID(uint64(generation)<<32 | uint64(index))
}

// Index is the arena slot of the body.
func (id BodyID) Index() uint32 { return uint32(id) }

// Generation distinguishes successive bodies living in the same slot.
func (id BodyID) Generation() uint32 { return uint32(id >> 32) }

// IsZero reports whether id is NoBody.
func (id BodyID) IsZero() bool { return id == NoBody }

// Less orders ids by slot, then generation.
func (id BodyID) Less(other BodyID) bool {
	if id.Index() != other.Index() {
		return id.Index() < other.Index()
	}
	return id.Generation() < other.Generation()
}

func (id BodyID) String() string {
	if id.IsZero() {
		return "world"
	}
	return fmt.Sprintf("body#%d.%d", id.Index(), id.Generation())
}

// PairKey identifies an unordered pair of bodies; A is always the lesser id.
type PairKey struct {
	A, B BodyID
}

// MakePairKey orders a and b.
func MakePairKey(a, b BodyID) PairKey {
	if b.Less(a) {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// Less gives the deterministic constraint resolution order.
func (p PairKey) Less(other PairKey) bool {
	if p.A != other.A {
		return p.A.Less(other.A)
	}
	return p.B.Less(other.B)
}

// Has reports whether id is one of the pair.
func (p PairKey) Has(id BodyID) bool { return p.A == id || p.B == id }

// Material holds the surface response coefficients.
type Material struct {
	Restitution float64 `json:"restitution" yaml:"restitution"`
	Friction    float64 `json:"friction" yaml:"friction"`
}

func (m Material) Validate() error {
	if !(m.Restitution >= 0 && m.Restitution <= 1) {
		return InvalidInputf("restitution must be within [0,1], got %v", m.Restitution)
	}
	if !(m.Friction >= 0) || !IsFinite(m.Friction) {
		return InvalidInputf("friction must be non-negative, got %v", m.Friction)
	}
	return nil
}

// BodyDef describes a body to create.
type BodyDef struct {
	Shape           Shape
	Mass            float64
	Fixed           bool
	Position        mgl64.Vec3
	Orientation     mgl64.Quat // zero value means identity
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	// Acceleration is a constant acceleration applied every step on top of gravity.
	Acceleration mgl64.Vec3
	// GravityScale defaults to 1 when nil.
	GravityScale *float64
	// Material defaults to the engine default when nil.
	Material *Material
}

// Body is a rigid body as stored in the simulation state.
type Body struct {
	ID              BodyID
	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Acceleration    mgl64.Vec3
	GravityScale    float64
	Mass            float64
	InverseMass     float64
	Inertia         mgl64.Mat3
	InverseInertia  mgl64.Mat3
	Shape           Shape
	Material        Material
}

// NewBody validates def and builds the body it describes. The returned body has no ID yet.
func NewBody(def BodyDef, defaults Material) (Body, error) {
	if err := def.Shape.Validate(); err != nil {
		return Body{}, err
	}
	if def.Shape.Kind == ShapePlane && !def.Fixed {
		return Body{}, InvalidInputf("plane shapes require a fixed body")
	}
	if !def.Fixed && (!(def.Mass > 0) || !IsFinite(def.Mass)) {
		return Body{}, InvalidInputf("mass must be positive and finite for movable bodies, got %v", def.Mass)
	}
	if !FiniteVec(def.Position) || !FiniteVec(def.LinearVelocity) ||
		!FiniteVec(def.AngularVelocity) || !FiniteVec(def.Acceleration) {
		return Body{}, InvalidInputf("position, velocities and acceleration must be finite")
	}

	orientation := def.Orientation
	if orientation.W == 0 && orientation.V.Len() == 0 {
		orientation = mgl64.QuatIdent()
	}
	if !FiniteQuat(orientation) {
		return Body{}, InvalidInputf("orientation must be finite")
	}
	orientation = orientation.Normalize()

	material := defaults
	if def.Material != nil {
		material = *def.Material
	}
	if err := material.Validate(); err != nil {
		return Body{}, err
	}

	gravityScale := 1.0
	if def.GravityScale != nil {
		gravityScale = *def.GravityScale
		if !IsFinite(gravityScale) {
			return Body{}, InvalidInputf("gravity scale must be finite")
		}
	}

	b := Body{
		Position:     def.Position,
		Orientation:  orientation,
		Acceleration: def.Acceleration,
		GravityScale: gravityScale,
		Shape:        def.Shape,
		Material:     material,
	}
	if def.Fixed {
		b.Mass = math.Inf(1)
		return b, nil
	}
	b.LinearVelocity = def.LinearVelocity
	b.AngularVelocity = def.AngularVelocity
	b.Mass = def.Mass
	b.InverseMass = 1 / def.Mass
	b.Inertia = def.Shape.Inertia(def.Mass)
	b.InverseInertia = b.Inertia.Inv()
	return b, nil
}

// Fixed reports whether the body has infinite mass.
func (b *Body) Fixed() bool { return b.InverseMass == 0 }

// InverseInertiaWorld is the inverse inertia tensor in world space.
func (b *Body) InverseInertiaWorld() mgl64.Mat3 {
	if b.Fixed() {
		return mgl64.Mat3{}
	}
	return ToWorldFrame(b.Orientation, b.InverseInertia)
}

// VelocityAt is the velocity of the material point at world offset r from the centre.
func (b *Body) VelocityAt(r mgl64.Vec3) mgl64.Vec3 {
	return b.LinearVelocity.Add(b.AngularVelocity.Cross(r))
}

// ApplyImpulse changes the momentum of the body by impulse at world offset r.
func (b *Body) ApplyImpulse(impulse, r mgl64.Vec3) {
	if b.Fixed() {
		return
	}
	b.LinearVelocity = b.LinearVelocity.Add(impulse.Mul(b.InverseMass))
	b.AngularVelocity = b.AngularVelocity.Add(b.InverseInertiaWorld().Mul3x1(r.Cross(impulse)))
}

// WorldPoint transforms a body-space point into world space.
func (b *Body) WorldPoint(local mgl64.Vec3) mgl64.Vec3 {
	return b.Position.Add(b.Orientation.Rotate(local))
}

// AABB returns the world-space bounds of the body shape.
func (b *Body) AABB() (mgl64.Vec3, mgl64.Vec3) {
	return b.Shape.AABB(b.Position, b.Orientation)
}

// Finite reports whether every kinematic quantity is finite.
func (b *Body) Finite() bool {
	return FiniteVec(b.Position) && FiniteQuat(b.Orientation) &&
		FiniteVec(b.LinearVelocity) && FiniteVec(b.AngularVelocity)
}

// LinearMomentum is m·v, zero for fixed bodies.
func (b *Body) LinearMomentum() mgl64.Vec3 {
	if b.Fixed() {
		return mgl64.Vec3{}
	}
	return b.LinearVelocity.Mul(b.Mass)
}

// KineticEnergy is the translational plus rotational kinetic energy.
func (b *Body) KineticEnergy() float64 {
	if b.Fixed() {
		return 0
	}
	linear := 0.5 * b.Mass * b.LinearVelocity.Dot(b.LinearVelocity)
	iw := ToWorldFrame(b.Orientation, b.Inertia)
	angular := 0.5 * b.AngularVelocity.Dot(iw.Mul3x1(b.AngularVelocity))
	return linear + angular
}
