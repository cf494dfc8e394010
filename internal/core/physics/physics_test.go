package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vecInDelta(t *testing.T, want, got mgl64.Vec3, delta float64) {
	t.Helper()
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want[i], got[i], delta, "component %d of %v vs %v", i, want, got)
	}
}

func sphereDef(mass float64) BodyDef {
	return BodyDef{Shape: Sphere(0.5), Mass: mass}
}

func TestNewBodyValidation(t *testing.T) {
	tests := []struct {
		name string
		def  BodyDef
	}{
		{"zero mass", BodyDef{Shape: Sphere(1), Mass: 0}},
		{"negative mass", BodyDef{Shape: Sphere(1), Mass: -2}},
		{"infinite mass", BodyDef{Shape: Sphere(1), Mass: math.Inf(1)}},
		{"degenerate sphere", BodyDef{Shape: Sphere(0), Mass: 1}},
		{"flat box", BodyDef{Shape: Box(mgl64.Vec3{1, 0, 1}), Mass: 1}},
		{"capsule without radius", BodyDef{Shape: Capsule(0, 1), Mass: 1}},
		{"movable plane", BodyDef{Shape: Plane(mgl64.Vec3{0, 1, 0}), Mass: 1}},
		{"zero plane normal", BodyDef{Shape: Plane(mgl64.Vec3{}), Fixed: true}},
		{"convex hull", BodyDef{Shape: Shape{Kind: ShapeConvexHull}, Mass: 1}},
		{"nan position", BodyDef{Shape: Sphere(1), Mass: 1, Position: mgl64.Vec3{math.NaN(), 0, 0}}},
		{"bad restitution", BodyDef{Shape: Sphere(1), Mass: 1, Material: &Material{Restitution: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBody(tt.def, Material{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
			assert.Equal(t, ErrorCodeInvalidInput, GetErrorCode(err))
		})
	}
}

func TestNewBodyFixed(t *testing.T) {
	b, err := NewBody(BodyDef{
		Shape:          Plane(mgl64.Vec3{0, 2, 0}),
		Fixed:          true,
		LinearVelocity: mgl64.Vec3{1, 2, 3},
	}, Material{Friction: 0.4})
	require.NoError(t, err)

	assert.True(t, b.Fixed())
	assert.True(t, math.IsInf(b.Mass, 1))
	assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity)
	assert.Equal(t, 0.4, b.Material.Friction)
	assert.Equal(t, mgl64.QuatIdent(), b.Orientation)
}

func TestNewBodyNormalizesOrientation(t *testing.T) {
	b, err := NewBody(BodyDef{
		Shape:       Sphere(1),
		Mass:        2,
		Orientation: mgl64.Quat{W: 2, V: mgl64.Vec3{0, 2, 0}},
	}, Material{})
	require.NoError(t, err)
	assert.InDelta(t, 1, b.Orientation.Len(), 1e-12)
	assert.InDelta(t, 0.5, b.InverseMass, 1e-12)
}

func TestStoreGenerations(t *testing.T) {
	s := NewStore()
	b, err := NewBody(sphereDef(1), Material{})
	require.NoError(t, err)

	first := s.Insert(b)
	second := s.Insert(b)
	assert.Equal(t, 2, s.Len())
	require.NoError(t, s.Remove(first))

	err = s.Remove(first)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownBody))

	third := s.Insert(b)
	assert.Equal(t, first.Index(), third.Index())
	assert.NotEqual(t, first, third)
	assert.False(t, s.Contains(first))
	assert.True(t, s.Contains(second))
	assert.True(t, s.Contains(third))
	assert.NoError(t, s.CheckIntegrity())
	assert.Equal(t, []BodyID{third, second}, s.IDs())
}

func TestStoreCopyIsIndependent(t *testing.T) {
	s := NewStore()
	b, err := NewBody(sphereDef(1), Material{})
	require.NoError(t, err)
	id := s.Insert(b)

	c := s.Clone()
	c.Ref(id).Position = mgl64.Vec3{5, 5, 5}
	c.Steps = 7

	orig, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{}, orig.Position)
	assert.Equal(t, uint64(0), s.Steps)
}

func TestStoreIntegrity(t *testing.T) {
	s := NewStore()
	b, err := NewBody(sphereDef(1), Material{})
	require.NoError(t, err)
	id := s.Insert(b)

	s.Ref(id).Orientation = mgl64.Quat{W: 3}
	err = s.CheckIntegrity()
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, ErrorCodeCorruptState, GetErrorCode(err))
}

func TestNonFinite(t *testing.T) {
	s := NewStore()
	b, err := NewBody(sphereDef(1), Material{})
	require.NoError(t, err)
	ok := s.Insert(b)
	bad := s.Insert(b)
	s.Ref(bad).LinearVelocity = mgl64.Vec3{math.Inf(1), 0, 0}

	assert.Equal(t, []BodyID{bad}, s.NonFinite())
	assert.NotContains(t, s.NonFinite(), ok)
}

func TestMomentTorque(t *testing.T) {
	torque := func(offset, force mgl64.Vec3) mgl64.Vec3 {
		return Moment{Offset: offset, Force: force}.Torque()
	}
	x, y, z := mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1}
	one := mgl64.Vec3{1, 1, 1}

	vecInDelta(t, mgl64.Vec3{-1, 1, 0}, torque(z, one), 1e-12)

	// no offset or force
	vecInDelta(t, mgl64.Vec3{}, torque(y, mgl64.Vec3{}), 1e-12)
	vecInDelta(t, mgl64.Vec3{}, torque(mgl64.Vec3{}, y), 1e-12)

	// radial force
	vecInDelta(t, mgl64.Vec3{}, torque(x, x), 1e-12)
	vecInDelta(t, mgl64.Vec3{}, torque(z, z), 1e-12)

	vecInDelta(t, x, torque(y, z), 1e-12)
	vecInDelta(t, z, torque(x, y), 1e-12)
	vecInDelta(t, mgl64.Vec3{0, -1, 0}, torque(x, z), 1e-12)
	vecInDelta(t, x.Mul(2), torque(y, z.Mul(2)), 1e-12)
	vecInDelta(t, x.Mul(2), torque(y.Mul(2), z), 1e-12)

	_, force := Moment{Offset: z, Force: one}.Parts()
	assert.Equal(t, one, force)
}

func TestCylinderInertia(t *testing.T) {
	side, front := 335.0/12.0, 2.5
	tests := []struct {
		name string
		got  mgl64.Mat3
		want mgl64.Vec3
	}{
		{"x", CylinderX(4, 0.5, 20), mgl64.Vec3{front, side, side}},
		{"y", CylinderY(4, 0.5, 20), mgl64.Vec3{side, front, side}},
		{"z", CylinderZ(4, 0.5, 20), mgl64.Vec3{side, side, front}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vecInDelta(t, tt.want, tt.got.Diag(), 1e-9)
			assert.Zero(t, tt.got.At(0, 1))
		})
	}

	unit := CylinderY(1, 1, 1)
	assert.InDelta(t, 1.0/3.0, unit.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, unit.At(1, 1), 1e-12)
}

func TestShapeInertia(t *testing.T) {
	sphere := SphereInertia(1, 5)
	assert.InDelta(t, 2, sphere.At(0, 0), 1e-12)

	box := BoxInertia(mgl64.Vec3{1, 1, 1}, 12)
	assert.InDelta(t, 8, box.At(2, 2), 1e-12)

	// a capsule with no cylinder is a sphere
	capsule := CapsuleInertia(1, 0, 5)
	assert.InDelta(t, 2, capsule.At(0, 0), 1e-12)
	assert.InDelta(t, 2, capsule.At(1, 1), 1e-12)

	acc := AngularAcceleration(SphereInertia(1, 5), mgl64.Vec3{0, 4, 0})
	vecInDelta(t, mgl64.Vec3{0, 2, 0}, acc, 1e-12)
}

func TestVelocityAngles(t *testing.T) {
	x, y, z := mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1}

	assert.InDelta(t, 0, Pitch(x), 1e-12)
	assert.InDelta(t, math.Pi/2, Pitch(y), 1e-12)
	assert.InDelta(t, 0, Pitch(z), 1e-12)

	assert.InDelta(t, 0, Yaw(x), 1e-12)
	assert.InDelta(t, -math.Pi/2, Yaw(z), 1e-12)
	assert.InDelta(t, math.Pi/2, Yaw(z.Mul(-1)), 1e-12)
	assert.InDelta(t, math.Pi/4, Yaw(mgl64.Vec3{1, 0, -1}), 1e-12)

	got := Direction(mgl64.Vec3{1, 0, 1})
	want := mgl64.QuatRotate(-math.Pi/4, y)
	assert.InDelta(t, 1, math.Abs(got.Dot(want)), 1e-12)

	vecInDelta(t, mgl64.Vec3{1, 1, 0}.Normalize(), Direction(mgl64.Vec3{1, 1, 0}).Rotate(x), 1e-12)
}

func TestBoxAABBRotated(t *testing.T) {
	q := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1})
	lo, hi := Box(mgl64.Vec3{1, 1, 1}).AABB(mgl64.Vec3{}, q)
	vecInDelta(t, mgl64.Vec3{-math.Sqrt2, -math.Sqrt2, -1}, lo, 1e-9)
	vecInDelta(t, mgl64.Vec3{math.Sqrt2, math.Sqrt2, 1}, hi, 1e-9)
}

func TestErrorFormatting(t *testing.T) {
	err := UnknownBody("despawn", makeBodyID(3, 2))
	assert.Equal(t, "despawn: unknown body [body#3.2]", err.Error())
	assert.False(t, err.IsFatal())
	assert.Equal(t, "unknown_body_id", err.Code.String())
}
