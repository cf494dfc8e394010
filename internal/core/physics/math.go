package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the length below which a vector is treated as zero.
const Epsilon = 1e-12

// IsFinite reports whether f is neither NaN nor infinite.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FiniteVec reports whether every component of v is finite.
func FiniteVec(v mgl64.Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// FiniteQuat reports whether every component of q is finite.
func FiniteQuat(q mgl64.Quat) bool {
	return IsFinite(q.W) && FiniteVec(q.V)
}

// RotationMatrix returns the column-major rotation matrix of a unit quaternion.
func RotationMatrix(q mgl64.Quat) mgl64.Mat3 {
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]
	return mgl64.Mat3{
		1 - 2*(y*y+z*z), 2 * (x*y + w*z), 2 * (x*z - w*y),
		2 * (x*y - w*z), 1 - 2*(x*x+z*z), 2 * (y*z + w*x),
		2 * (x*z + w*y), 2 * (y*z - w*x), 1 - 2*(x*x+y*y),
	}
}

// ToWorldFrame rotates a body-frame tensor into world space: R·I·Rᵀ.
func ToWorldFrame(q mgl64.Quat, tensor mgl64.Mat3) mgl64.Mat3 {
	r := RotationMatrix(q)
	return r.Mul3(tensor).Mul3(r.Transpose())
}

// Tangents returns two unit vectors orthogonal to n and to each other.
func Tangents(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var t1 mgl64.Vec3
	if math.Abs(n[0]) >= 0.57735 {
		t1 = mgl64.Vec3{n[1], -n[0], 0}
	} else {
		t1 = mgl64.Vec3{0, n[2], -n[1]}
	}
	t1 = t1.Normalize()
	return t1, n.Cross(t1)
}

// Pitch is the angle between the horizontal XZ plane and v.
func Pitch(v mgl64.Vec3) float64 {
	horizontal := math.Sqrt(v[0]*v[0] + v[2]*v[2])
	return math.Atan2(v[1], horizontal)
}

// Yaw is the horizontal angle from the X axis to v, positive towards -Z.
func Yaw(v mgl64.Vec3) float64 {
	return -math.Atan2(v[2], v[0])
}

// Direction returns the rotation taking +X onto the direction of v (yaw about Y, then
// pitch about Z). A zero vector yields the identity.
func Direction(v mgl64.Vec3) mgl64.Quat {
	if v.Dot(v) < Epsilon {
		return mgl64.QuatIdent()
	}
	yaw := mgl64.QuatRotate(Yaw(v), mgl64.Vec3{0, 1, 0})
	pitch := mgl64.QuatRotate(Pitch(v), mgl64.Vec3{0, 0, 1})
	return yaw.Mul(pitch)
}
