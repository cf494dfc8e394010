package bridge

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/pkg/encoding"
	"github.com/simscript/simscript/pkg/generic"
)

// BodyView is the render-facing pose of one body.
type BodyView struct {
	ID             physics.BodyID `json:"id"`
	Position       mgl64.Vec3     `json:"position"`
	Orientation    mgl64.Quat     `json:"orientation"`
	LinearVelocity mgl64.Vec3     `json:"linear_velocity"`
}

// Snapshot is the committed state interpolated by Alpha between the last two steps.
type Snapshot struct {
	Step   uint64     `json:"step"`
	Time   float64    `json:"time"`
	Alpha  float64    `json:"alpha"`
	Bodies []BodyView `json:"bodies"`
}

const (
	snapshotHeaderSize = 8 + 8 + 8 + 4
	bodyViewSize       = 8 + 3*8 + 4*8 + 3*8
)

var writers = generic.NewResetPool(
	func() *encoding.Writer { return encoding.NewWriter(snapshotHeaderSize + 16*bodyViewSize) },
	func(w *encoding.Writer) { w.Reset() },
)

func (s *Snapshot) encode(w *encoding.Writer) {
	w.Uint64(s.Step)
	w.Floats(s.Time, s.Alpha)
	w.Uint32(uint32(len(s.Bodies)))
	for i := range s.Bodies {
		v := &s.Bodies[i]
		w.Uint64(uint64(v.ID))
		w.Floats(v.Position[0], v.Position[1], v.Position[2])
		w.Floats(v.Orientation.W, v.Orientation.V[0], v.Orientation.V[1], v.Orientation.V[2])
		w.Floats(v.LinearVelocity[0], v.LinearVelocity[1], v.LinearVelocity[2])
	}
}

// MarshalBinary encodes the snapshot as little-endian fields in declaration order.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	w := writers.Get()
	defer writers.Put(w)
	s.encode(w)
	return append([]byte(nil), w.Bytes()...), nil
}

func (s *Snapshot) UnmarshalBinary(data []byte) error {
	r := encoding.NewReader(data)
	step, err := r.Uint64()
	if err != nil {
		return fmt.Errorf("snapshot header: %w", err)
	}
	var out Snapshot
	out.Step = step
	if err = r.Floats(&out.Time, &out.Alpha); err != nil {
		return fmt.Errorf("snapshot header: %w", err)
	}
	n, err := r.Uint32()
	if err != nil {
		return fmt.Errorf("snapshot header: %w", err)
	}
	if r.Remaining() != int(n)*bodyViewSize {
		return fmt.Errorf("snapshot of %d bodies needs %d bytes, got %d: %w",
			n, int(n)*bodyViewSize, r.Remaining(), encoding.ErrShortBuffer)
	}
	out.Bodies = make([]BodyView, n)
	for i := range out.Bodies {
		v := &out.Bodies[i]
		id, _ := r.Uint64()
		v.ID = physics.BodyID(id)
		err = r.Floats(
			&v.Position[0], &v.Position[1], &v.Position[2],
			&v.Orientation.W, &v.Orientation.V[0], &v.Orientation.V[1], &v.Orientation.V[2],
			&v.LinearVelocity[0], &v.LinearVelocity[1], &v.LinearVelocity[2],
		)
		if err != nil {
			return fmt.Errorf("snapshot body %d: %w", i, err)
		}
	}
	*s = out
	return nil
}

// Digest hashes the binary encoding. Equal digests mean bit-identical snapshots.
func (s *Snapshot) Digest() uint64 {
	w := writers.Get()
	defer writers.Put(w)
	s.encode(w)
	return xxhash.Sum64(w.Bytes())
}

// Find returns the view of id.
func (s *Snapshot) Find(id physics.BodyID) (BodyView, bool) {
	for _, v := range s.Bodies {
		if v.ID == id {
			return v, true
		}
	}
	return BodyView{}, false
}

func lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// slerp interpolates along the shorter arc.
func slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}

// interpolate blends the committed pair. Bodies missing from previous are shown at their
// current pose.
func interpolate(previous, current *physics.Store, alpha float64) Snapshot {
	snap := Snapshot{
		Step:   current.Steps,
		Time:   current.Time,
		Alpha:  alpha,
		Bodies: make([]BodyView, 0, current.Len()),
	}
	current.Each(func(b *physics.Body) bool {
		view := BodyView{
			ID:             b.ID,
			Position:       b.Position,
			Orientation:    b.Orientation,
			LinearVelocity: b.LinearVelocity,
		}
		if p := previous.Ref(b.ID); p != nil && previous.Steps < current.Steps {
			view.Position = lerp(p.Position, b.Position, alpha)
			view.Orientation = slerp(p.Orientation, b.Orientation, alpha)
			view.LinearVelocity = lerp(p.LinearVelocity, b.LinearVelocity, alpha)
		}
		snap.Bodies = append(snap.Bodies, view)
		return true
	})
	return snap
}
