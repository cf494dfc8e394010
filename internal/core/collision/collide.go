package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
)

// Collide tests two bodies for contact. The returned manifold keeps a as A and b as B.
func Collide(a, b *physics.Body) (Manifold, bool) {
	if a.Shape.Kind > b.Shape.Kind {
		m, ok := collide(b, a)
		if !ok {
			return Manifold{}, false
		}
		return m.flip(), true
	}
	return collide(a, b)
}

// collide requires a.Shape.Kind <= b.Shape.Kind.
func collide(a, b *physics.Body) (Manifold, bool) {
	m := Manifold{A: a.ID, B: b.ID}
	var ok bool

	switch a.Shape.Kind {
	case physics.ShapeSphere:
		switch b.Shape.Kind {
		case physics.ShapeSphere:
			ok = spheres(&m, a.Position, a.Shape.Radius, b.Position, b.Shape.Radius)
		case physics.ShapeBox:
			ok = sphereBox(&m, a.Position, a.Shape.Radius, b)
		case physics.ShapeCapsule:
			p, q := segment(b)
			closest := closestOnSegment(a.Position, p, q)
			ok = spheres(&m, a.Position, a.Shape.Radius, closest, b.Shape.Radius)
		case physics.ShapePlane:
			ok = spherePlane(&m, a.Position, a.Shape.Radius, b)
		}
	case physics.ShapeBox:
		switch b.Shape.Kind {
		case physics.ShapeBox:
			ok = boxes(&m, a, b)
		case physics.ShapeCapsule:
			ok = boxCapsule(&m, a, b)
		case physics.ShapePlane:
			ok = boxPlane(&m, a, b)
		}
	case physics.ShapeCapsule:
		switch b.Shape.Kind {
		case physics.ShapeCapsule:
			p1, q1 := segment(a)
			p2, q2 := segment(b)
			c1, c2 := closestSegments(p1, q1, p2, q2)
			ok = spheres(&m, c1, a.Shape.Radius, c2, b.Shape.Radius)
		case physics.ShapePlane:
			ok = capsulePlane(&m, a, b)
		}
	}
	if !ok {
		return Manifold{}, false
	}
	return m, true
}

// spheres fills m for spheres at ca and cb. The normal points from ca to cb.
func spheres(m *Manifold, ca mgl64.Vec3, ra float64, cb mgl64.Vec3, rb float64) bool {
	d := cb.Sub(ca)
	dist := d.Len()
	depth := ra + rb - dist
	if depth <= 0 {
		return false
	}
	m.Normal = unitOr(d, FallbackNormal)
	m.Points = []Point{{
		Position: ca.Add(m.Normal.Mul(ra - depth/2)),
		Depth:    depth,
	}}
	return true
}

// sphereBox fills m with the contact of a sphere (A) against a box (B).
func sphereBox(m *Manifold, centre mgl64.Vec3, radius float64, box *physics.Body) bool {
	h := box.Shape.HalfExtents
	local := box.Orientation.Conjugate().Rotate(centre.Sub(box.Position))

	var closest mgl64.Vec3
	inside := true
	for k := 0; k < 3; k++ {
		closest[k] = mgl64.Clamp(local[k], -h[k], h[k])
		if closest[k] != local[k] {
			inside = false
		}
	}

	var outward mgl64.Vec3
	var depth float64
	if inside {
		// push out through the nearest face
		axis, best := 0, math.Inf(1)
		for k := 0; k < 3; k++ {
			if d := h[k] - math.Abs(local[k]); d < best {
				axis, best = k, d
			}
		}
		outward[axis] = 1
		if local[axis] < 0 {
			outward[axis] = -1
		}
		closest[axis] = outward[axis] * h[axis]
		depth = best + radius
	} else {
		diff := local.Sub(closest)
		dist := diff.Len()
		if dist >= radius {
			return false
		}
		outward = unitOr(diff, FallbackNormal)
		depth = radius - dist
	}

	// box to sphere is outward, sphere to box is the reverse
	m.Normal = box.Orientation.Rotate(outward).Mul(-1)
	m.Points = []Point{{Position: box.WorldPoint(closest), Depth: depth}}
	return true
}

func planeOf(plane *physics.Body) (mgl64.Vec3, mgl64.Vec3) {
	return plane.Position, plane.Shape.WorldNormal(plane.Orientation)
}

// spherePlane fills m with a sphere (A) resting against a plane (B).
func spherePlane(m *Manifold, centre mgl64.Vec3, radius float64, plane *physics.Body) bool {
	origin, n := planeOf(plane)
	dist := centre.Sub(origin).Dot(n)
	depth := radius - dist
	if depth <= 0 {
		return false
	}
	m.Normal = n.Mul(-1)
	m.Points = []Point{{Position: centre.Sub(n.Mul(radius)), Depth: depth}}
	return true
}

func boxPlane(m *Manifold, box, plane *physics.Body) bool {
	origin, n := planeOf(plane)
	for _, v := range boxVertices(box) {
		if dist := v.Sub(origin).Dot(n); dist < 0 {
			m.Points = append(m.Points, Point{Position: v, Depth: -dist})
		}
	}
	if len(m.Points) == 0 {
		return false
	}
	m.Normal = n.Mul(-1)
	return true
}

func capsulePlane(m *Manifold, capsule, plane *physics.Body) bool {
	origin, n := planeOf(plane)
	p, q := segment(capsule)
	r := capsule.Shape.Radius
	ends := []mgl64.Vec3{p}
	if capsule.Shape.HalfHeight > 0 {
		ends = append(ends, q)
	}
	for _, c := range ends {
		if depth := r - c.Sub(origin).Dot(n); depth > 0 {
			m.Points = append(m.Points, Point{Position: c.Sub(n.Mul(r)), Depth: depth})
		}
	}
	if len(m.Points) == 0 {
		return false
	}
	m.Normal = n.Mul(-1)
	return true
}

// boxCapsule tests the capsule as spheres at both ends, falling back to the segment point
// nearest the box centre. Points sharing the deepest normal are kept.
func boxCapsule(m *Manifold, box, capsule *physics.Body) bool {
	p, q := segment(capsule)
	r := capsule.Shape.Radius

	var hits []Manifold
	for _, c := range []mgl64.Vec3{p, q} {
		var hit Manifold
		if sphereBox(&hit, c, r, box) {
			hits = append(hits, hit)
		}
	}
	if len(hits) == 0 {
		var hit Manifold
		if !sphereBox(&hit, closestOnSegment(box.Position, p, q), r, box) {
			return false
		}
		hits = append(hits, hit)
	}

	deepest := hits[0]
	for _, h := range hits[1:] {
		if h.Depth() > deepest.Depth() {
			deepest = h
		}
	}
	// sphereBox normals point from capsule to box
	m.Normal = deepest.Normal.Mul(-1)
	for _, h := range hits {
		if h.Normal.Dot(deepest.Normal) > 0.95 {
			m.Points = append(m.Points, h.Points...)
		}
	}
	return true
}
