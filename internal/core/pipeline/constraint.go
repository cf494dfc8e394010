package pipeline

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/collision"
	"github.com/simscript/simscript/internal/core/physics"
)

// Constraint is resolved by the sequential impulse solver. The two implementations are
// *Contact, rebuilt every step, and *DistanceJoint, which persists until removed.
type Constraint interface {
	Pair() physics.PairKey
	// Prepare caches the per-step terms. It runs once before the solver iterations.
	Prepare(s *physics.Store, dt float64, params Params)
	// Solve applies one corrective impulse pass to the body velocities.
	Solve(s *physics.Store)

	sealed()
}

// Params are the solver constants shared by all constraints.
type Params struct {
	Baumgarte            float64
	PenetrationSlop      float64
	RestitutionThreshold float64
}

// effectiveMass is the inverse of the impulse-to-velocity response along n at offsets
// ra and rb. A zero response (two immovable bodies) yields zero.
func effectiveMass(a, b *physics.Body, ra, rb, n mgl64.Vec3) float64 {
	k := inverseMass(a) + inverseMass(b)
	if a != nil && !a.Fixed() {
		rn := ra.Cross(n)
		k += a.InverseInertiaWorld().Mul3x1(rn).Cross(ra).Dot(n)
	}
	if b != nil && !b.Fixed() {
		rn := rb.Cross(n)
		k += b.InverseInertiaWorld().Mul3x1(rn).Cross(rb).Dot(n)
	}
	if k < physics.Epsilon {
		return 0
	}
	return 1 / k
}

func inverseMass(b *physics.Body) float64 {
	if b == nil {
		return 0
	}
	return b.InverseMass
}

func velocityAt(b *physics.Body, r mgl64.Vec3) mgl64.Vec3 {
	if b == nil {
		return mgl64.Vec3{}
	}
	return b.VelocityAt(r)
}

func applyPair(a, b *physics.Body, ra, rb, impulse mgl64.Vec3) {
	if a != nil {
		a.ApplyImpulse(impulse.Mul(-1), ra)
	}
	if b != nil {
		b.ApplyImpulse(impulse, rb)
	}
}

type contactPoint struct {
	ra, rb         mgl64.Vec3
	normalMass     float64
	tangentMass    [2]float64
	bias           float64
	normalImpulse  float64
	tangentImpulse [2]float64
}

// Contact is a transient constraint built from a collision manifold.
type Contact struct {
	Manifold    collision.Manifold
	Restitution float64
	Friction    float64

	tangents [2]mgl64.Vec3
	points   []contactPoint
	a, b     *physics.Body
}

// NewContact combines the materials of a and b: restitution takes the larger value,
// friction the geometric mean.
func NewContact(m collision.Manifold, a, b *physics.Body) *Contact {
	return &Contact{
		Manifold:    m,
		Restitution: math.Max(a.Material.Restitution, b.Material.Restitution),
		Friction:    math.Sqrt(a.Material.Friction * b.Material.Friction),
	}
}

func (c *Contact) Pair() physics.PairKey { return c.Manifold.Pair() }

func (c *Contact) sealed() {}

// NormalImpulse is the total impulse applied along the normal during the last solve.
func (c *Contact) NormalImpulse() float64 {
	total := 0.0
	for _, p := range c.points {
		total += p.normalImpulse
	}
	return total
}

func (c *Contact) Prepare(s *physics.Store, dt float64, params Params) {
	c.a, c.b = s.Ref(c.Manifold.A), s.Ref(c.Manifold.B)
	c.points = c.points[:0]
	if c.a == nil || c.b == nil {
		return
	}

	n := c.Manifold.Normal
	c.tangents[0], c.tangents[1] = physics.Tangents(n)
	for _, mp := range c.Manifold.Points {
		p := contactPoint{
			ra: mp.Position.Sub(c.a.Position),
			rb: mp.Position.Sub(c.b.Position),
		}
		p.normalMass = effectiveMass(c.a, c.b, p.ra, p.rb, n)
		for i, t := range c.tangents {
			p.tangentMass[i] = effectiveMass(c.a, c.b, p.ra, p.rb, t)
		}

		vn := c.b.VelocityAt(p.rb).Sub(c.a.VelocityAt(p.ra)).Dot(n)
		bounce := 0.0
		if vn < -params.RestitutionThreshold {
			bounce = -c.Restitution * vn
		}
		push := params.Baumgarte / dt * math.Max(mp.Depth-params.PenetrationSlop, 0)
		p.bias = math.Max(bounce, push)
		c.points = append(c.points, p)
	}
}

func (c *Contact) Solve(_ *physics.Store) {
	if c.a == nil || c.b == nil {
		return
	}
	n := c.Manifold.Normal
	for i := range c.points {
		p := &c.points[i]

		for k, t := range c.tangents {
			dv := c.b.VelocityAt(p.rb).Sub(c.a.VelocityAt(p.ra))
			lambda := -dv.Dot(t) * p.tangentMass[k]
			limit := c.Friction * p.normalImpulse
			old := p.tangentImpulse[k]
			p.tangentImpulse[k] = mgl64.Clamp(old+lambda, -limit, limit)
			applyPair(c.a, c.b, p.ra, p.rb, t.Mul(p.tangentImpulse[k]-old))
		}

		dv := c.b.VelocityAt(p.rb).Sub(c.a.VelocityAt(p.ra))
		lambda := (p.bias - dv.Dot(n)) * p.normalMass
		old := p.normalImpulse
		p.normalImpulse = math.Max(old+lambda, 0)
		applyPair(c.a, c.b, p.ra, p.rb, n.Mul(p.normalImpulse-old))
	}
}

// MaxJointExtent bounds joint lengths and anchor offsets so the position bias stays finite.
const MaxJointExtent = 1e9

// JointID names a persistent joint.
type JointID uint64

// DistanceJoint keeps two anchor points at a fixed distance. B may be physics.NoBody, in
// which case AnchorB is a fixed world point.
type DistanceJoint struct {
	ID JointID
	A  physics.BodyID
	B  physics.BodyID
	// AnchorA and AnchorB are in body space; AnchorB is in world space when B is the world.
	AnchorA mgl64.Vec3
	AnchorB mgl64.Vec3
	Length  float64

	a, b    *physics.Body
	ra, rb  mgl64.Vec3
	n       mgl64.Vec3
	mass    float64
	bias    float64
	impulse float64
}

func (j *DistanceJoint) Pair() physics.PairKey { return physics.MakePairKey(j.A, j.B) }

func (j *DistanceJoint) sealed() {}

// Validate checks the joint against the bodies present in s.
func (j *DistanceJoint) Validate(s *physics.Store) error {
	if j.A.IsZero() || !s.Contains(j.A) {
		return physics.UnknownBody("joint", j.A)
	}
	if !j.B.IsZero() && !s.Contains(j.B) {
		return physics.UnknownBody("joint", j.B)
	}
	if j.A == j.B {
		return physics.InvalidInputf("joint connects %s to itself", j.A)
	}
	if !(j.Length >= 0) || j.Length > MaxJointExtent {
		return physics.InvalidInputf("joint length must be within [0,%g], got %v", MaxJointExtent, j.Length)
	}
	if !physics.FiniteVec(j.AnchorA) || !physics.FiniteVec(j.AnchorB) ||
		j.AnchorA.Len() > MaxJointExtent || j.AnchorB.Len() > MaxJointExtent {
		return physics.InvalidInputf("joint anchors must be finite and within %g of the origin", MaxJointExtent)
	}
	return nil
}

// Anchors returns the world positions of both anchors.
func (j *DistanceJoint) Anchors(s *physics.Store) (mgl64.Vec3, mgl64.Vec3, bool) {
	a := s.Ref(j.A)
	if a == nil {
		return mgl64.Vec3{}, mgl64.Vec3{}, false
	}
	pb := j.AnchorB
	if !j.B.IsZero() {
		b := s.Ref(j.B)
		if b == nil {
			return mgl64.Vec3{}, mgl64.Vec3{}, false
		}
		pb = b.WorldPoint(j.AnchorB)
	}
	return a.WorldPoint(j.AnchorA), pb, true
}

func (j *DistanceJoint) Prepare(s *physics.Store, dt float64, params Params) {
	j.a, j.b = nil, nil
	j.impulse = 0
	pa, pb, ok := j.Anchors(s)
	if !ok {
		return
	}
	j.a = s.Ref(j.A)
	if !j.B.IsZero() {
		j.b = s.Ref(j.B)
		j.rb = pb.Sub(j.b.Position)
	} else {
		j.rb = mgl64.Vec3{}
	}
	j.ra = pa.Sub(j.a.Position)

	d := pb.Sub(pa)
	dist := d.Len()
	if dist < 1e-9 {
		j.n = collision.FallbackNormal
	} else {
		j.n = d.Mul(1 / dist)
	}
	j.mass = effectiveMass(j.a, j.b, j.ra, j.rb, j.n)
	j.bias = -params.Baumgarte / dt * (dist - j.Length)
}

func (j *DistanceJoint) Solve(_ *physics.Store) {
	if j.a == nil {
		return
	}
	dv := velocityAt(j.b, j.rb).Sub(j.a.VelocityAt(j.ra))
	lambda := (j.bias - dv.Dot(j.n)) * j.mass
	j.impulse += lambda
	applyPair(j.a, j.b, j.ra, j.rb, j.n.Mul(lambda))
}
