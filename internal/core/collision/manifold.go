// Package collision finds contacts between primitive shapes: a sweep-and-prune broad
// phase followed by exact pairwise tests.
package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
)

// FallbackNormal is used when the contact geometry does not define a direction, such as
// two spheres sharing a centre.
var FallbackNormal = mgl64.Vec3{0, 1, 0}

// Point is one contact point in world space.
type Point struct {
	Position mgl64.Vec3
	Depth    float64
}

// Manifold is the contact between two bodies. Normal is a unit vector pointing from A
// towards B, the direction in which B must move to separate.
type Manifold struct {
	A, B   physics.BodyID
	Normal mgl64.Vec3
	Points []Point
}

// Pair returns the ordered key of the bodies in contact.
func (m Manifold) Pair() physics.PairKey {
	return physics.MakePairKey(m.A, m.B)
}

// Depth is the deepest penetration among the points.
func (m Manifold) Depth() float64 {
	d := 0.0
	for _, p := range m.Points {
		d = math.Max(d, p.Depth)
	}
	return d
}

func (m Manifold) flip() Manifold {
	m.A, m.B = m.B, m.A
	m.Normal = m.Normal.Mul(-1)
	return m
}

func unitOr(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-9 || !physics.FiniteVec(v) {
		return fallback
	}
	return v.Mul(1 / l)
}

func segment(b *physics.Body) (mgl64.Vec3, mgl64.Vec3) {
	axis := b.Orientation.Rotate(mgl64.Vec3{0, b.Shape.HalfHeight, 0})
	return b.Position.Sub(axis), b.Position.Add(axis)
}

func closestOnSegment(p, a, b mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	den := ab.Dot(ab)
	if den < physics.Epsilon {
		return a
	}
	t := mgl64.Clamp(p.Sub(a).Dot(ab)/den, 0, 1)
	return a.Add(ab.Mul(t))
}

// closestSegments returns the closest points between segments p1q1 and p2q2.
func closestSegments(p1, q1, p2, q2 mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	d1, d2 := q1.Sub(p1), q2.Sub(p2)
	r := p1.Sub(p2)
	a, e := d1.Dot(d1), d2.Dot(d2)
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a < physics.Epsilon && e < physics.Epsilon:
		return p1, p2
	case a < physics.Epsilon:
		t = mgl64.Clamp(f/e, 0, 1)
	default:
		c := d1.Dot(r)
		if e < physics.Epsilon {
			s = mgl64.Clamp(-c/a, 0, 1)
		} else {
			b := d1.Dot(d2)
			den := a*e - b*b
			if den > physics.Epsilon {
				s = mgl64.Clamp((b*f-c*e)/den, 0, 1)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = mgl64.Clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = mgl64.Clamp((b-c)/a, 0, 1)
			}
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

func boxAxes(b *physics.Body) [3]mgl64.Vec3 {
	return [3]mgl64.Vec3{
		b.Orientation.Rotate(mgl64.Vec3{1, 0, 0}),
		b.Orientation.Rotate(mgl64.Vec3{0, 1, 0}),
		b.Orientation.Rotate(mgl64.Vec3{0, 0, 1}),
	}
}

func boxVertices(b *physics.Body) [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	h := b.Shape.HalfExtents
	for i := 0; i < 8; i++ {
		local := mgl64.Vec3{h[0], h[1], h[2]}
		for k := 0; k < 3; k++ {
			if i&(1<<k) != 0 {
				local[k] = -local[k]
			}
		}
		out[i] = b.WorldPoint(local)
	}
	return out
}

func insideBox(b *physics.Body, p mgl64.Vec3, tolerance float64) bool {
	local := b.Orientation.Conjugate().Rotate(p.Sub(b.Position))
	for k := 0; k < 3; k++ {
		if math.Abs(local[k]) > b.Shape.HalfExtents[k]+tolerance {
			return false
		}
	}
	return true
}
