// Package integrator advances bodies with semi-implicit Euler: velocities first from the
// net forces, then positions and orientations from the new velocities.
package integrator

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
)

// IntegrateVelocities applies the net forces, plus each body's constant acceleration,
// over dt. Fixed bodies are skipped.
func IntegrateVelocities(s *physics.Store, forces physics.Forces, dt float64) {
	s.Each(func(b *physics.Body) bool {
		if b.Fixed() {
			return true
		}
		w := forces[b.ID]
		accel := w.Force.Mul(b.InverseMass).Add(b.Acceleration)
		b.LinearVelocity = b.LinearVelocity.Add(accel.Mul(dt))
		alpha := b.InverseInertiaWorld().Mul3x1(w.Torque)
		b.AngularVelocity = b.AngularVelocity.Add(alpha.Mul(dt))
		return true
	})
}

// IntegratePositions moves every movable body along its velocity for dt and renormalizes
// its orientation.
func IntegratePositions(s *physics.Store, dt float64) {
	s.Each(func(b *physics.Body) bool {
		if b.Fixed() {
			return true
		}
		b.Position = b.Position.Add(b.LinearVelocity.Mul(dt))
		b.Orientation = Rotate(b.Orientation, b.AngularVelocity, dt)
		return true
	})
}

// Rotate integrates q under angular velocity omega for dt: q + ½·(0,ω)·q·dt, normalized.
func Rotate(q mgl64.Quat, omega mgl64.Vec3, dt float64) mgl64.Quat {
	spin := mgl64.Quat{W: 0, V: omega}.Mul(q).Scale(0.5 * dt)
	next := q.Add(spin)
	if next.Len() < physics.Epsilon {
		return q
	}
	return next.Normalize()
}

// Step is the whole integration of one tick as a pure function: it returns a new store
// advanced by dt and leaves s untouched. If any body ends up non-finite, s itself is
// returned with a NumericInstability error naming the bodies.
func Step(s *physics.Store, dt float64, forces physics.Forces) (*physics.Store, error) {
	next := s.Clone()
	IntegrateVelocities(next, forces, dt)
	IntegratePositions(next, dt)
	if err := CheckFinite(next); err != nil {
		return s, err
	}
	next.Time += dt
	next.Steps++
	return next, nil
}

// CheckFinite returns a NumericInstability error listing every non-finite body.
func CheckFinite(s *physics.Store) error {
	bad := s.NonFinite()
	if len(bad) == 0 {
		return nil
	}
	sort.Slice(bad, func(i, j int) bool { return bad[i].Less(bad[j]) })
	return physics.NewError(physics.ErrorCodeNumericInstability, "step produced non-finite state", nil, bad...)
}
