package physics

import (
	"fmt"
	"math"
)

type slot struct {
	body       Body
	generation uint32
	alive      bool
}

// Store is the authoritative simulation state: a slot arena of bodies plus the
// simulation clock readings of the last committed step.
//
// Bodies are iterated in slot order, which is the canonical deterministic order.
// Store is not safe for concurrent use.
type Store struct {
	slots []slot
	free  []uint32
	live  int

	Time  float64
	Steps uint64
}

// State is a detached copy of a Store.
type State struct {
	Time   float64
	Steps  uint64
	Bodies []Body
}

func NewStore() *Store {
	return &Store{}
}

// Insert stores b under a fresh id and returns it.
func (s *Store) Insert(b Body) BodyID {
	var index uint32
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		index = uint32(len(s.slots))
		s.slots = append(s.slots, slot{})
	}
	sl := &s.slots[index]
	sl.generation++
	sl.alive = true
	b.ID = makeBodyID(index, sl.generation)
	sl.body = b
	s.live++
	return b.ID
}

// Remove deletes the body. Unknown or stale ids yield an UnknownBodyID error.
func (s *Store) Remove(id BodyID) error {
	sl := s.lookup(id)
	if sl == nil {
		return UnknownBody("remove", id)
	}
	sl.alive = false
	sl.body = Body{}
	s.free = append(s.free, id.Index())
	s.live--
	return nil
}

func (s *Store) lookup(id BodyID) *slot {
	if id.IsZero() {
		return nil
	}
	index := id.Index()
	if int(index) >= len(s.slots) {
		return nil
	}
	sl := &s.slots[index]
	if !sl.alive || sl.generation != id.Generation() {
		return nil
	}
	return sl
}

// Contains reports whether id names a live body.
func (s *Store) Contains(id BodyID) bool {
	return s.lookup(id) != nil
}

// Get returns a copy of the body.
func (s *Store) Get(id BodyID) (Body, bool) {
	sl := s.lookup(id)
	if sl == nil {
		return Body{}, false
	}
	return sl.body, true
}

// Ref returns a mutable pointer to the body, valid until the next Insert.
func (s *Store) Ref(id BodyID) *Body {
	sl := s.lookup(id)
	if sl == nil {
		return nil
	}
	return &sl.body
}

// Len is the number of live bodies.
func (s *Store) Len() int { return s.live }

// Each calls fn for every live body in slot order until fn returns false.
func (s *Store) Each(fn func(b *Body) bool) {
	for i := range s.slots {
		if !s.slots[i].alive {
			continue
		}
		if !fn(&s.slots[i].body) {
			return
		}
	}
}

// IDs returns the live ids in slot order.
func (s *Store) IDs() []BodyID {
	out := make([]BodyID, 0, s.live)
	s.Each(func(b *Body) bool {
		out = append(out, b.ID)
		return true
	})
	return out
}

// Bodies returns copies of the live bodies in slot order.
func (s *Store) Bodies() []Body {
	out := make([]Body, 0, s.live)
	s.Each(func(b *Body) bool {
		out = append(out, *b)
		return true
	})
	return out
}

// State detaches a copy of the store contents.
func (s *Store) State() State {
	return State{Time: s.Time, Steps: s.Steps, Bodies: s.Bodies()}
}

// CopyFrom makes s an exact copy of src, reusing s's buffers.
func (s *Store) CopyFrom(src *Store) {
	s.slots = append(s.slots[:0], src.slots...)
	s.free = append(s.free[:0], src.free...)
	s.live = src.live
	s.Time = src.Time
	s.Steps = src.Steps
}

// Clone returns an independent copy.
func (s *Store) Clone() *Store {
	c := NewStore()
	c.CopyFrom(s)
	return c
}

// NonFinite lists bodies whose kinematic state contains NaN or Inf.
func (s *Store) NonFinite() []BodyID {
	var out []BodyID
	s.Each(func(b *Body) bool {
		if !b.Finite() {
			out = append(out, b.ID)
		}
		return true
	})
	return out
}

// CheckIntegrity verifies the arena bookkeeping and per-body invariants. A failure means
// the state can no longer be trusted.
func (s *Store) CheckIntegrity() error {
	live := 0
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.alive {
			continue
		}
		live++
		b := &sl.body
		if b.ID != makeBodyID(uint32(i), sl.generation) {
			return s.corrupt(fmt.Sprintf("slot %d holds mismatched id %s", i, b.ID), b.ID)
		}
		if b.Fixed() {
			if !math.IsInf(b.Mass, 1) {
				return s.corrupt("fixed body with finite mass", b.ID)
			}
		} else if !(b.Mass > 0) || math.Abs(b.Mass*b.InverseMass-1) > 1e-9 {
			return s.corrupt("movable body with invalid mass", b.ID)
		}
		if math.Abs(b.Orientation.Len()-1) > 1e-6 {
			return s.corrupt("orientation is not normalized", b.ID)
		}
	}
	if live != s.live {
		return s.corrupt(fmt.Sprintf("live count %d, found %d", s.live, live))
	}
	for _, index := range s.free {
		if int(index) >= len(s.slots) || s.slots[index].alive {
			return s.corrupt(fmt.Sprintf("free list references live or missing slot %d", index))
		}
	}
	return nil
}

func (s *Store) corrupt(msg string, bodies ...BodyID) error {
	return NewError(ErrorCodeCorruptState, msg, ErrCorruptState, bodies...)
}
