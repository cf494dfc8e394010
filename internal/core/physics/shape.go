package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeKind selects which fields of Shape are meaningful.
type ShapeKind uint8

const (
	ShapeUnknown ShapeKind = iota
	ShapeSphere
	ShapeBox
	ShapeCapsule
	ShapePlane
	// ShapeConvexHull is reserved; spawning one is rejected.
	ShapeConvexHull
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeSphere:
		return "sphere"
	case ShapeBox:
		return "box"
	case ShapeCapsule:
		return "capsule"
	case ShapePlane:
		return "plane"
	case ShapeConvexHull:
		return "convex_hull"
	default:
		return "unknown"
	}
}

// ParseShapeKind is the inverse of ShapeKind.String.
func ParseShapeKind(s string) (ShapeKind, bool) {
	for k := ShapeSphere; k <= ShapeConvexHull; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return ShapeUnknown, false
}

// Shape is a collision primitive in body space.
//
// Sphere uses Radius. Box uses HalfExtents. Capsule uses Radius and HalfHeight, with its
// segment along the local Y axis. Plane uses Normal and is the half-space behind the plane
// through the body origin; planes are only valid on fixed bodies.
type Shape struct {
	Kind        ShapeKind
	Radius      float64
	HalfExtents mgl64.Vec3
	HalfHeight  float64
	Normal      mgl64.Vec3
}

func Sphere(radius float64) Shape {
	return Shape{Kind: ShapeSphere, Radius: radius}
}

func Box(halfExtents mgl64.Vec3) Shape {
	return Shape{Kind: ShapeBox, HalfExtents: halfExtents}
}

func Capsule(radius, halfHeight float64) Shape {
	return Shape{Kind: ShapeCapsule, Radius: radius, HalfHeight: halfHeight}
}

func Plane(normal mgl64.Vec3) Shape {
	return Shape{Kind: ShapePlane, Normal: normal}
}

// Validate rejects degenerate or unsupported shapes.
func (s Shape) Validate() error {
	switch s.Kind {
	case ShapeSphere:
		if !(s.Radius > 0) || !IsFinite(s.Radius) {
			return InvalidInputf("sphere radius must be positive, got %v", s.Radius)
		}
	case ShapeBox:
		for i := 0; i < 3; i++ {
			if !(s.HalfExtents[i] > 0) || !IsFinite(s.HalfExtents[i]) {
				return InvalidInputf("box half extents must be positive, got %v", s.HalfExtents)
			}
		}
	case ShapeCapsule:
		if !(s.Radius > 0) || !IsFinite(s.Radius) {
			return InvalidInputf("capsule radius must be positive, got %v", s.Radius)
		}
		if !(s.HalfHeight >= 0) || !IsFinite(s.HalfHeight) {
			return InvalidInputf("capsule half height must be non-negative, got %v", s.HalfHeight)
		}
	case ShapePlane:
		if !FiniteVec(s.Normal) || s.Normal.Len() < Epsilon {
			return InvalidInputf("plane normal must be a non-zero finite vector, got %v", s.Normal)
		}
	case ShapeConvexHull:
		return InvalidInputf("convex hull shapes are not supported")
	default:
		return InvalidInputf("unknown shape kind %d", s.Kind)
	}
	return nil
}

// Inertia returns the body-frame inertia tensor for a solid shape of the given mass.
func (s Shape) Inertia(mass float64) mgl64.Mat3 {
	switch s.Kind {
	case ShapeSphere:
		return SphereInertia(s.Radius, mass)
	case ShapeBox:
		return BoxInertia(s.HalfExtents, mass)
	case ShapeCapsule:
		return CapsuleInertia(s.Radius, s.HalfHeight, mass)
	default:
		return mgl64.Mat3{}
	}
}

// WorldNormal returns the unit plane normal rotated into world space.
func (s Shape) WorldNormal(q mgl64.Quat) mgl64.Vec3 {
	return q.Rotate(s.Normal).Normalize()
}

// AABB returns the world-space bounds of the shape placed at pos with orientation q.
// Planes are unbounded except along their normal when it is axis aligned.
func (s Shape) AABB(pos mgl64.Vec3, q mgl64.Quat) (mgl64.Vec3, mgl64.Vec3) {
	switch s.Kind {
	case ShapeSphere:
		r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
		return pos.Sub(r), pos.Add(r)
	case ShapeBox:
		rot := RotationMatrix(q)
		var ext mgl64.Vec3
		for row := 0; row < 3; row++ {
			for col := 0; col < 3; col++ {
				ext[row] += math.Abs(rot.At(row, col)) * s.HalfExtents[col]
			}
		}
		return pos.Sub(ext), pos.Add(ext)
	case ShapeCapsule:
		axis := q.Rotate(mgl64.Vec3{0, s.HalfHeight, 0})
		var ext mgl64.Vec3
		for i := 0; i < 3; i++ {
			ext[i] = math.Abs(axis[i]) + s.Radius
		}
		return pos.Sub(ext), pos.Add(ext)
	case ShapePlane:
		inf := math.Inf(1)
		lo := mgl64.Vec3{-inf, -inf, -inf}
		hi := mgl64.Vec3{inf, inf, inf}
		n := s.WorldNormal(q)
		for i := 0; i < 3; i++ {
			if math.Abs(n[i]) > 1-1e-9 {
				if n[i] > 0 {
					hi[i] = pos[i]
				} else {
					lo[i] = pos[i]
				}
			}
		}
		return lo, hi
	default:
		return pos, pos
	}
}
