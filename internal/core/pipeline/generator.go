package pipeline

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
)

// Kind tags the variant held by a Generator.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindGravity accelerates bodies by Vector scaled by each body's gravity scale.
	KindGravity
	// KindDrag damps velocities at the rates Linear and Angular (1/s).
	KindDrag
	// KindMoment applies Vector as a force at Offset from the target's centre every step.
	KindMoment
	// KindImpulse changes the target's momentum by Vector once, at Offset.
	KindImpulse
)

func (k Kind) String() string {
	switch k {
	case KindGravity:
		return "gravity"
	case KindDrag:
		return "drag"
	case KindMoment:
		return "moment"
	case KindImpulse:
		return "impulse"
	default:
		return "unknown"
	}
}

// Generator is a force contribution. Field generators (gravity, drag) with a zero Target
// act on every movable body.
type Generator struct {
	Kind   Kind
	Target physics.BodyID
	Vector mgl64.Vec3
	// Offset is the world-space lever arm from the centre of mass.
	Offset  mgl64.Vec3
	Linear  float64
	Angular float64
}

func Gravity(acceleration mgl64.Vec3) Generator {
	return Generator{Kind: KindGravity, Vector: acceleration}
}

func Drag(linear, angular float64) Generator {
	return Generator{Kind: KindDrag, Linear: linear, Angular: angular}
}

func Moment(target physics.BodyID, offset, force mgl64.Vec3) Generator {
	return Generator{Kind: KindMoment, Target: target, Offset: offset, Vector: force}
}

func Impulse(target physics.BodyID, impulse mgl64.Vec3) Generator {
	return Generator{Kind: KindImpulse, Target: target, Vector: impulse}
}

func ImpulseAt(target physics.BodyID, impulse, offset mgl64.Vec3) Generator {
	return Generator{Kind: KindImpulse, Target: target, Vector: impulse, Offset: offset}
}

func (g Generator) String() string {
	return fmt.Sprintf("%s(%s)", g.Kind, g.Target)
}

// Validate checks the fields used by the generator's kind.
func (g Generator) Validate() error {
	if !physics.FiniteVec(g.Vector) || !physics.FiniteVec(g.Offset) {
		return physics.InvalidInputf("%s generator vectors must be finite", g.Kind)
	}
	switch g.Kind {
	case KindGravity:
	case KindDrag:
		if !(g.Linear >= 0) || !(g.Angular >= 0) || !physics.IsFinite(g.Linear) || !physics.IsFinite(g.Angular) {
			return physics.InvalidInputf("drag coefficients must be non-negative, got %v/%v", g.Linear, g.Angular)
		}
	case KindMoment, KindImpulse:
		if g.Target.IsZero() {
			return physics.InvalidInputf("%s generator needs a target body", g.Kind)
		}
	default:
		return physics.InvalidInputf("unknown generator kind %d", g.Kind)
	}
	return nil
}

func (g Generator) applies(b *physics.Body) bool {
	return g.Target.IsZero() || g.Target == b.ID
}

// contribute adds the generator's wrench on b for a step of dt.
func (g Generator) contribute(b *physics.Body, dt float64) physics.Wrench {
	switch g.Kind {
	case KindGravity:
		return physics.Wrench{Force: g.Vector.Mul(b.Mass * b.GravityScale)}
	case KindDrag:
		return physics.Wrench{
			Force:  b.LinearVelocity.Mul(-g.Linear * b.Mass),
			Torque: physics.ToWorldFrame(b.Orientation, b.Inertia).Mul3x1(b.AngularVelocity).Mul(-g.Angular),
		}
	case KindMoment:
		torque, force := physics.Moment{Offset: g.Offset, Force: g.Vector}.Parts()
		return physics.Wrench{Force: force, Torque: torque}
	case KindImpulse:
		// spread over the step so that integration yields exactly Δv = J/m
		return physics.Wrench{
			Force:  g.Vector.Mul(1 / dt),
			Torque: g.Offset.Cross(g.Vector).Mul(1 / dt),
		}
	}
	return physics.Wrench{}
}
