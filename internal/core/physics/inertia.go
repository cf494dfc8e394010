package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SphereInertia is the tensor of a solid sphere.
func SphereInertia(radius, mass float64) mgl64.Mat3 {
	i := 2.0 / 5.0 * mass * radius * radius
	return mgl64.Diag3(mgl64.Vec3{i, i, i})
}

// BoxInertia is the tensor of a solid cuboid given its half extents.
func BoxInertia(half mgl64.Vec3, mass float64) mgl64.Mat3 {
	x, y, z := 2*half[0], 2*half[1], 2*half[2]
	return mgl64.Diag3(mgl64.Vec3{
		mass / 12 * (y*y + z*z),
		mass / 12 * (x*x + z*z),
		mass / 12 * (x*x + y*y),
	})
}

// CapsuleInertia is the tensor of a solid capsule aligned with the Y axis. Mass is split
// between the cylinder and the two hemispherical caps by volume.
func CapsuleInertia(radius, halfHeight, mass float64) mgl64.Mat3 {
	r2 := radius * radius
	cylVolume := math.Pi * r2 * 2 * halfHeight
	capVolume := 4.0 / 3.0 * math.Pi * r2 * radius
	cylMass := mass * cylVolume / (cylVolume + capVolume)
	capMass := mass - cylMass

	axial := cylMass*r2/2 + capMass*2*r2/5
	side := cylMass*(halfHeight*halfHeight/3+r2/4) +
		capMass*(2*r2/5+halfHeight*halfHeight+3*halfHeight*radius/8)
	return mgl64.Diag3(mgl64.Vec3{side, axial, side})
}

func cylinder(height, radius, mass float64) (side, front float64) {
	side = mass*height*height/12 + mass*radius*radius/4
	front = mass * radius * radius / 2
	return side, front
}

// CylinderX is a solid cylinder whose height runs along X.
func CylinderX(height, radius, mass float64) mgl64.Mat3 {
	side, front := cylinder(height, radius, mass)
	return mgl64.Diag3(mgl64.Vec3{front, side, side})
}

// CylinderY is a solid cylinder whose height runs along Y.
func CylinderY(height, radius, mass float64) mgl64.Mat3 {
	side, front := cylinder(height, radius, mass)
	return mgl64.Diag3(mgl64.Vec3{side, front, side})
}

// CylinderZ is a solid cylinder whose height runs along Z.
func CylinderZ(height, radius, mass float64) mgl64.Mat3 {
	side, front := cylinder(height, radius, mass)
	return mgl64.Diag3(mgl64.Vec3{side, side, front})
}

// AngularAcceleration is the angular acceleration produced by torque on a body with the
// given inertia tensor.
func AngularAcceleration(inertia mgl64.Mat3, torque mgl64.Vec3) mgl64.Vec3 {
	return inertia.Inv().Mul3x1(torque)
}

// Moment is a force applied away from the centre of mass.
type Moment struct {
	// Offset of the application point from the centre of mass
	Offset mgl64.Vec3
	// Force being applied
	Force mgl64.Vec3
}

// Torque is the rotational part of the moment. Only the component of the force
// perpendicular to the offset contributes.
func (m Moment) Torque() mgl64.Vec3 {
	if m.Offset.Len() < Epsilon {
		return mgl64.Vec3{}
	}
	axis := m.Offset.Normalize()
	radial := axis.Mul(m.Force.Dot(axis))
	return m.Offset.Cross(m.Force.Sub(radial))
}

// Parts returns the torque and the translational force of the moment.
func (m Moment) Parts() (torque, force mgl64.Vec3) {
	return m.Torque(), m.Force
}
