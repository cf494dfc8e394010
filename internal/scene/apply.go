package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/internal/core/pipeline"
)

// Target is what a scene is applied to.
type Target interface {
	Spawn(def physics.BodyDef) (physics.BodyID, error)
	Body(id physics.BodyID) (physics.Body, bool)
	AddJoint(j pipeline.DistanceJoint) (pipeline.JointID, error)
	AddGenerator(g pipeline.Generator) error
	ApplyImpulseAt(id physics.BodyID, impulse, offset mgl64.Vec3) error
}

// Apply spawns the bodies in declaration order, then adds joints, generators and queued
// impulses. It returns the ids of the spawned bodies by name. On error, whatever was
// applied before the failure stays in the target.
func (s *Scene) Apply(t Target) (map[string]physics.BodyID, error) {
	ids := make(map[string]physics.BodyID, len(s.Bodies))
	for _, b := range s.Bodies {
		id, err := t.Spawn(b.Def())
		if err != nil {
			return ids, fmt.Errorf("spawn %q: %w", b.Name, err)
		}
		ids[b.Name] = id
	}

	for i, j := range s.Joints {
		joint := pipeline.DistanceJoint{
			A:       ids[j.A],
			B:       ids[j.B],
			AnchorA: j.AnchorA,
			AnchorB: j.AnchorB,
		}
		if j.Length != nil {
			joint.Length = *j.Length
		} else {
			joint.Length = restLength(t, joint)
		}
		if _, err := t.AddJoint(joint); err != nil {
			return ids, fmt.Errorf("joint %d: %w", i, err)
		}
	}

	for i, g := range s.Generators {
		if err := t.AddGenerator(pipeline.Moment(ids[g.Target], g.Offset, g.Force)); err != nil {
			return ids, fmt.Errorf("generator %d: %w", i, err)
		}
	}

	for i, imp := range s.Impulses {
		if err := t.ApplyImpulseAt(ids[imp.Target], imp.Vector, imp.Offset); err != nil {
			return ids, fmt.Errorf("impulse %d: %w", i, err)
		}
	}
	return ids, nil
}

// restLength is the current distance between the joint anchors.
func restLength(t Target, j pipeline.DistanceJoint) float64 {
	a, ok := t.Body(j.A)
	if !ok {
		return 0
	}
	pa := a.WorldPoint(j.AnchorA)
	pb := j.AnchorB
	if !j.B.IsZero() {
		b, ok := t.Body(j.B)
		if !ok {
			return 0
		}
		pb = b.WorldPoint(j.AnchorB)
	}
	return pa.Sub(pb).Len()
}
