package physics

import "github.com/go-gl/mathgl/mgl64"

// Wrench is the net force and torque acting on a body for one step.
type Wrench struct {
	Force  mgl64.Vec3
	Torque mgl64.Vec3
}

// Add returns the sum of two wrenches.
func (w Wrench) Add(o Wrench) Wrench {
	return Wrench{Force: w.Force.Add(o.Force), Torque: w.Torque.Add(o.Torque)}
}

// Forces maps bodies to the wrench accumulated for the current step. Bodies absent
// from the map receive no external force.
type Forces map[BodyID]Wrench

// Add accumulates w onto the wrench of id.
func (f Forces) Add(id BodyID, w Wrench) {
	f[id] = f[id].Add(w)
}
