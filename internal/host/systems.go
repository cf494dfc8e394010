package host

import (
	"context"
	"errors"

	"github.com/simscript/simscript/internal/bridge"
	"github.com/simscript/simscript/internal/core/observability/log"
)

// PhysicsSystem feeds frame time to the simulation bridge.
type PhysicsSystem struct {
	bridge *bridge.Bridge
	log    log.Log
	steps  uint64
}

func NewPhysicsSystem(b *bridge.Bridge, logger log.Log) *PhysicsSystem {
	return &PhysicsSystem{bridge: b, log: logger}
}

func (p *PhysicsSystem) Name() string       { return "physics" }
func (p *PhysicsSystem) Priority() Priority { return PriorityHighest }
func (p *PhysicsSystem) Phase() Phase       { return PhaseFixedUpdate }

func (p *PhysicsSystem) Update(ctx context.Context, frame Frame) error {
	n, err := p.bridge.UpdateContext(ctx, frame.DeltaTime)
	p.steps += uint64(n)
	return err
}

// Steps is the number of simulation steps committed through this system.
func (p *PhysicsSystem) Steps() uint64 { return p.steps }

// Sink receives a snapshot every frame.
type Sink interface {
	Broadcast(ctx context.Context, snap bridge.Snapshot) error
}

// BroadcastSystem pushes the interpolated snapshot to every sink after the simulation
// has advanced.
type BroadcastSystem struct {
	bridge *bridge.Bridge
	sinks  []Sink
	every  uint64
}

// NewBroadcastSystem sends on every frame whose number is a multiple of every.
func NewBroadcastSystem(b *bridge.Bridge, every uint64, sinks ...Sink) *BroadcastSystem {
	if every == 0 {
		every = 1
	}
	return &BroadcastSystem{bridge: b, sinks: sinks, every: every}
}

func (s *BroadcastSystem) Name() string       { return "broadcast" }
func (s *BroadcastSystem) Priority() Priority { return PriorityNormal }
func (s *BroadcastSystem) Phase() Phase       { return PhaseLateUpdate }

func (s *BroadcastSystem) Update(ctx context.Context, frame Frame) error {
	if frame.Number%s.every != 0 || len(s.sinks) == 0 {
		return nil
	}
	snap := s.bridge.Snapshot()
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Broadcast(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
