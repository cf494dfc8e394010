package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
)

const (
	// edge axes must beat the best face axis by this factor to be chosen
	edgeBias     = 0.95
	insideMargin = 1e-6
)

func projectedRadius(h mgl64.Vec3, axes [3]mgl64.Vec3, l mgl64.Vec3) float64 {
	return h[0]*math.Abs(axes[0].Dot(l)) + h[1]*math.Abs(axes[1].Dot(l)) + h[2]*math.Abs(axes[2].Dot(l))
}

// supportEdge returns the endpoints of the edge of box along axis edge that lies furthest
// in direction n.
func supportEdge(b *physics.Body, axes [3]mgl64.Vec3, edge int, n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	h := b.Shape.HalfExtents
	centre := b.Position
	for k := 0; k < 3; k++ {
		if k == edge {
			continue
		}
		s := h[k]
		if axes[k].Dot(n) < 0 {
			s = -s
		}
		centre = centre.Add(axes[k].Mul(s))
	}
	half := axes[edge].Mul(h[edge])
	return centre.Sub(half), centre.Add(half)
}

// boxes runs the separating axis test over the 15 candidate axes of two boxes.
func boxes(m *Manifold, a, b *physics.Body) bool {
	axesA, axesB := boxAxes(a), boxAxes(b)
	d := b.Position.Sub(a.Position)

	best := math.Inf(1)
	var normal mgl64.Vec3
	edgeA, edgeB := -1, -1

	test := func(l mgl64.Vec3, ea, eb int) bool {
		length := l.Len()
		if length < 1e-9 {
			return true
		}
		l = l.Mul(1 / length)
		dist := l.Dot(d)
		overlap := projectedRadius(a.Shape.HalfExtents, axesA, l) +
			projectedRadius(b.Shape.HalfExtents, axesB, l) - math.Abs(dist)
		if overlap < 0 {
			return false
		}
		limit := best
		if ea >= 0 {
			limit = best * edgeBias
		}
		if overlap < limit {
			best = overlap
			if dist < 0 {
				l = l.Mul(-1)
			}
			normal = l
			edgeA, edgeB = ea, eb
		}
		return true
	}

	for i := 0; i < 3; i++ {
		if !test(axesA[i], -1, -1) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		if !test(axesB[i], -1, -1) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !test(axesA[i].Cross(axesB[j]), i, j) {
				return false
			}
		}
	}

	m.Normal = unitOr(normal, FallbackNormal)

	if edgeA >= 0 {
		p1, q1 := supportEdge(a, axesA, edgeA, m.Normal)
		p2, q2 := supportEdge(b, axesB, edgeB, m.Normal.Mul(-1))
		c1, c2 := closestSegments(p1, q1, p2, q2)
		m.Points = []Point{{Position: c1.Add(c2).Mul(0.5), Depth: best}}
		return true
	}

	for _, v := range boxVertices(b) {
		if insideBox(a, v, insideMargin) {
			m.Points = append(m.Points, Point{Position: v, Depth: best})
		}
	}
	for _, v := range boxVertices(a) {
		if insideBox(b, v, insideMargin) {
			m.Points = append(m.Points, Point{Position: v, Depth: best})
		}
	}
	if len(m.Points) == 0 {
		// no vertex inside the other box: use the vertex of B reaching deepest into A
		deepest := math.Inf(1)
		var at mgl64.Vec3
		for _, v := range boxVertices(b) {
			if p := v.Dot(m.Normal); p < deepest {
				deepest, at = p, v
			}
		}
		m.Points = []Point{{Position: at, Depth: best}}
	}
	return true
}
