// Package pipeline accumulates per-step forces and resolves contacts and joints with a
// sequential impulse solver.
package pipeline

import (
	"context"
	"slices"
	"sort"

	"github.com/simscript/simscript/internal/core/collision"
	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/pkg/concurrent"
	"github.com/simscript/simscript/pkg/sequence"
)

// Config holds the solver and stability knobs.
type Config struct {
	Iterations         int
	Params             Params
	InstabilityStrikes int
	CooldownSteps      uint64
	Workers            int
}

// Pipeline owns the registered generators, the pending impulse queue, the persistent
// joints and the instability bookkeeping. It is not safe for concurrent use.
type Pipeline struct {
	cfg Config
	log log.Log

	generators []Generator
	pending    sequence.Queue[Generator]

	joints    map[JointID]*DistanceJoint
	nextJoint JointID

	strikes  map[physics.PairKey]int
	cooldown map[physics.BodyID]uint64
}

func New(cfg Config, logger log.Log) (*Pipeline, error) {
	if cfg.Iterations < 1 {
		return nil, physics.InvalidInputf("solver iterations must be at least 1, got %d", cfg.Iterations)
	}
	if cfg.InstabilityStrikes < 1 {
		cfg.InstabilityStrikes = 1
	}
	return &Pipeline{
		cfg:      cfg,
		log:      logger,
		joints:   make(map[JointID]*DistanceJoint),
		strikes:  make(map[physics.PairKey]int),
		cooldown: make(map[physics.BodyID]uint64),
	}, nil
}

// Register adds a permanent generator. Generators contribute in registration order.
func (p *Pipeline) Register(g Generator) error {
	if g.Kind == KindImpulse {
		return physics.InvalidInputf("impulses are one-shot and must be queued")
	}
	if err := g.Validate(); err != nil {
		return err
	}
	p.generators = append(p.generators, g)
	p.log.Debug("generator registered", log.Stringer("generator", g))
	return nil
}

// Generators returns the registered generators in order.
func (p *Pipeline) Generators() []Generator {
	return append([]Generator(nil), p.generators...)
}

// Forget removes every generator targeting id, along with its queued impulses and its
// instability bookkeeping.
func (p *Pipeline) Forget(id physics.BodyID) {
	kept := p.generators[:0]
	for _, g := range p.generators {
		if g.Target != id {
			kept = append(kept, g)
		}
	}
	p.generators = kept

	for _, g := range p.pending.Drain() {
		if g.Target != id {
			p.pending.Enqueue(g)
		}
	}

	for pair := range p.strikes {
		if pair.Has(id) {
			delete(p.strikes, pair)
		}
	}
	delete(p.cooldown, id)
}

// QueueImpulse appends a one-shot impulse applied during the next step.
func (p *Pipeline) QueueImpulse(g Generator) error {
	if g.Kind != KindImpulse {
		return physics.InvalidInputf("%s generators must be registered, not queued", g.Kind)
	}
	if err := g.Validate(); err != nil {
		return err
	}
	p.pending.Enqueue(g)
	return nil
}

// Pending is the number of queued impulses.
func (p *Pipeline) Pending() int { return p.pending.Len() }

// Accumulate sums the field generators in registration order and then drains the pending
// impulses in FIFO order. Fixed bodies receive nothing.
func (p *Pipeline) Accumulate(s *physics.Store, dt float64) physics.Forces {
	forces := make(physics.Forces, s.Len())
	s.Each(func(b *physics.Body) bool {
		if b.Fixed() {
			return true
		}
		for _, g := range p.generators {
			if g.applies(b) {
				forces.Add(b.ID, g.contribute(b, dt))
			}
		}
		return true
	})

	for _, g := range p.pending.Drain() {
		b := s.Ref(g.Target)
		if b == nil {
			p.log.Debug("dropping impulse for missing body", log.Stringer("body", g.Target))
			continue
		}
		if b.Fixed() {
			continue
		}
		forces.Add(b.ID, g.contribute(b, dt))
	}
	return forces
}

// CoolingDown reports whether id is excluded from collision detection and joint solving
// at step.
func (p *Pipeline) CoolingDown(id physics.BodyID, step uint64) bool {
	until, ok := p.cooldown[id]
	return ok && step < until
}

// Detect runs the broad phase and the narrow phase and returns the contacts sorted by
// pair. Bodies in cooldown are ignored. The result does not depend on the worker count.
func (p *Pipeline) Detect(ctx context.Context, s *physics.Store) ([]*Contact, error) {
	for id, until := range p.cooldown {
		if s.Steps >= until || !s.Contains(id) {
			delete(p.cooldown, id)
		}
	}

	proxies := make([]collision.Proxy, 0, s.Len())
	s.Each(func(b *physics.Body) bool {
		if !p.CoolingDown(b.ID, s.Steps) {
			proxies = append(proxies, collision.ProxyOf(b))
		}
		return true
	})
	pairs := collision.BroadPhase(proxies)

	found, err := concurrent.FlattenOrdered(ctx, pairs, p.cfg.Workers,
		func(_ context.Context, pair physics.PairKey) ([]*Contact, error) {
			a, b := s.Ref(pair.A), s.Ref(pair.B)
			m, ok := collision.Collide(a, b)
			if !ok {
				return nil, nil
			}
			return []*Contact{NewContact(m, a, b)}, nil
		})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Resolve runs the solver over the joints and the given contacts. Each iteration solves
// every joint before any contact, each group in pair order. Joints touching a body in
// cooldown are skipped. Only velocities change.
func (p *Pipeline) Resolve(s *physics.Store, contacts []*Contact, dt float64) {
	joints := p.Joints()
	constraints := make([]Constraint, 0, len(joints)+len(contacts))
	for _, j := range joints {
		if p.CoolingDown(j.A, s.Steps) || (!j.B.IsZero() && p.CoolingDown(j.B, s.Steps)) {
			continue
		}
		constraints = append(constraints, j)
	}
	sorted := append([]*Contact(nil), contacts...)
	sort.SliceStable(sorted, func(i, k int) bool { return sorted[i].Pair().Less(sorted[k].Pair()) })
	for _, c := range sorted {
		constraints = append(constraints, c)
	}
	if len(constraints) == 0 {
		return
	}

	for _, c := range constraints {
		c.Prepare(s, dt, p.cfg.Params)
	}
	for it := 0; it < p.cfg.Iterations; it++ {
		for _, c := range constraints {
			c.Solve(s)
		}
	}
}

// AddJoint validates j against s and stores it.
func (p *Pipeline) AddJoint(s *physics.Store, j DistanceJoint) (JointID, error) {
	if err := j.Validate(s); err != nil {
		return 0, err
	}
	p.nextJoint++
	j.ID = p.nextJoint
	p.joints[j.ID] = &j
	p.log.Debug("joint added",
		log.Uint64("joint", uint64(j.ID)),
		log.Stringer("a", j.A),
		log.Stringer("b", j.B),
		log.Float64("length", j.Length),
	)
	return j.ID, nil
}

func (p *Pipeline) RemoveJoint(id JointID) error {
	if _, ok := p.joints[id]; !ok {
		return physics.InvalidInputf("unknown joint %d", id)
	}
	delete(p.joints, id)
	return nil
}

// Joints returns the live joints sorted by pair, then id.
func (p *Pipeline) Joints() []*DistanceJoint {
	out := make([]*DistanceJoint, 0, len(p.joints))
	for _, j := range p.joints {
		out = append(out, j)
	}
	return sequence.From(out).Sort(func(a, b *DistanceJoint) bool {
		if a.Pair() != b.Pair() {
			return a.Pair().Less(b.Pair())
		}
		return a.ID < b.ID
	}).Collect()
}

// Prune drops joints attached to bodies no longer in s and returns their ids.
func (p *Pipeline) Prune(s *physics.Store) []JointID {
	var removed []JointID
	for _, j := range p.Joints() {
		if !s.Contains(j.A) || (!j.B.IsZero() && !s.Contains(j.B)) {
			delete(p.joints, j.ID)
			removed = append(removed, j.ID)
		}
	}
	return removed
}

// Strike records a numeric failure at step for each body in bodies, charged to every
// contact and joint pair touching it, or to the body-world pair when it had neither. A
// body whose pair reaches the strike limit enters cooldown; those bodies are returned.
func (p *Pipeline) Strike(step uint64, bodies []physics.BodyID, contacts []*Contact) []physics.BodyID {
	joints := p.Joints()
	var cooled []physics.BodyID
	for _, id := range bodies {
		pairs := sequence.Map(
			sequence.From(contacts).Filter(func(c *Contact) bool { return c.Pair().Has(id) }),
			func(c *Contact) physics.PairKey { return c.Pair() },
		).Collect()
		for _, j := range joints {
			if pair := j.Pair(); pair.Has(id) && !slices.Contains(pairs, pair) {
				pairs = append(pairs, pair)
			}
		}
		if len(pairs) == 0 {
			pairs = []physics.PairKey{physics.MakePairKey(id, physics.NoBody)}
		}

		for _, pair := range pairs {
			p.strikes[pair]++
			if p.strikes[pair] < p.cfg.InstabilityStrikes {
				continue
			}
			delete(p.strikes, pair)
			if !p.CoolingDown(id, step) {
				p.cooldown[id] = step + p.cfg.CooldownSteps
				cooled = append(cooled, id)
				p.log.Warn("body excluded from collisions",
					log.Stringer("body", id),
					log.Uint64("until_step", step+p.cfg.CooldownSteps),
				)
			}
		}
	}
	return cooled
}

// Reset clears pending impulses, joints and instability state. Registered generators stay.
func (p *Pipeline) Reset() {
	p.pending.Clear()
	p.joints = make(map[JointID]*DistanceJoint)
	p.strikes = make(map[physics.PairKey]int)
	p.cooldown = make(map[physics.BodyID]uint64)
}
