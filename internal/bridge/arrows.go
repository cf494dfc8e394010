package bridge

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
)

type ArrowKind uint8

const (
	ArrowVelocity ArrowKind = iota + 1
	ArrowAcceleration
)

func (k ArrowKind) String() string {
	switch k {
	case ArrowVelocity:
		return "velocity"
	case ArrowAcceleration:
		return "acceleration"
	default:
		return "unknown"
	}
}

// Arrow is a debug vector anchored at a body's centre of mass.
type Arrow struct {
	Body   physics.BodyID
	Kind   ArrowKind
	Origin mgl64.Vec3
	Vector mgl64.Vec3
	// Rotation turns +X onto Vector.
	Rotation mgl64.Quat
}

func (a Arrow) Pitch() float64 { return physics.Pitch(a.Vector) }

func (a Arrow) Yaw() float64 { return physics.Yaw(a.Vector) }

func newArrow(id physics.BodyID, kind ArrowKind, origin, v mgl64.Vec3) (Arrow, bool) {
	if v.Len() < physics.Epsilon {
		return Arrow{}, false
	}
	return Arrow{Body: id, Kind: kind, Origin: origin, Vector: v, Rotation: physics.Direction(v)}, true
}

// arrows lists velocity arrows for moving bodies and acceleration arrows for bodies whose
// velocity changed over the last step.
func arrows(previous, current *physics.Store) []Arrow {
	var out []Arrow
	stepped := current.Steps == previous.Steps+1 && current.Time > previous.Time
	dt := current.Time - previous.Time
	current.Each(func(b *physics.Body) bool {
		if b.Fixed() {
			return true
		}
		if a, ok := newArrow(b.ID, ArrowVelocity, b.Position, b.LinearVelocity); ok {
			out = append(out, a)
		}
		if !stepped {
			return true
		}
		p := previous.Ref(b.ID)
		if p == nil {
			return true
		}
		accel := b.LinearVelocity.Sub(p.LinearVelocity).Mul(1 / dt)
		if a, ok := newArrow(b.ID, ArrowAcceleration, b.Position, accel); ok {
			out = append(out, a)
		}
		return true
	})
	return out
}
