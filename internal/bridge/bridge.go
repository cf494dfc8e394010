// Package bridge is the host-facing adapter of the simulation core. It serializes
// commands against frame updates and projects committed state into render snapshots.
package bridge

import (
	"context"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/events/bus"
	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/internal/core/pipeline"
	"github.com/simscript/simscript/internal/core/simulation"
)

// EventSource tags events published by the bridge.
const EventSource = "bridge"

// SpawnRecord describes a body to spawn.
type SpawnRecord = physics.BodyDef

// Bridge wraps an Engine for use from a host frame loop and any number of command
// sources. All methods are safe for concurrent use; commands take effect between steps.
type Bridge struct {
	mu     sync.Mutex
	engine *simulation.Engine
	bus    bus.EventBus
	log    log.Log
}

// New creates a bridge. eventBus may be nil, in which case reports are only logged.
func New(engine *simulation.Engine, eventBus bus.EventBus, logger log.Log) *Bridge {
	return &Bridge{
		engine: engine,
		bus:    eventBus,
		log:    logger,
	}
}

// locked runs fn under the lock and publishes the reports it produced once unlocked.
func (b *Bridge) locked(fn func(e *simulation.Engine) error) error {
	b.mu.Lock()
	err := fn(b.engine)
	reports := b.engine.DrainReports()
	b.mu.Unlock()

	b.publish(reports)
	return err
}

func (b *Bridge) publish(reports []simulation.Report) {
	if b.bus == nil || len(reports) == 0 {
		return
	}
	events := make([]bus.Event, 0, len(reports))
	for _, r := range reports {
		events = append(events, bus.NewEvent(simulation.EventReport, EventSource, r))
		if r.Severity == simulation.SeverityFatal {
			events = append(events, bus.NewEvent(simulation.EventHalted, EventSource, r))
		}
	}
	if err := b.bus.PublishBatch(events...); err != nil {
		b.log.Warn("report handlers failed", log.Int("reports", len(reports)), log.Error(err))
	}
}

func (b *Bridge) Spawn(rec SpawnRecord) (physics.BodyID, error) {
	var id physics.BodyID
	err := b.locked(func(e *simulation.Engine) (err error) {
		id, err = e.Spawn(rec)
		return err
	})
	return id, err
}

func (b *Bridge) Despawn(id physics.BodyID) error {
	return b.locked(func(e *simulation.Engine) error {
		return e.Despawn(id)
	})
}

// ApplyImpulse queues an impulse through the centre of mass for the next step.
func (b *Bridge) ApplyImpulse(id physics.BodyID, impulse mgl64.Vec3) error {
	return b.ApplyImpulseAt(id, impulse, mgl64.Vec3{})
}

// ApplyImpulseAt queues an impulse at a world-space offset from the centre of mass.
func (b *Bridge) ApplyImpulseAt(id physics.BodyID, impulse, offset mgl64.Vec3) error {
	return b.locked(func(e *simulation.Engine) error {
		return e.QueueImpulse(id, impulse, offset)
	})
}

func (b *Bridge) AddGenerator(g pipeline.Generator) error {
	return b.locked(func(e *simulation.Engine) error {
		return e.AddGenerator(g)
	})
}

func (b *Bridge) AddJoint(j pipeline.DistanceJoint) (pipeline.JointID, error) {
	var id pipeline.JointID
	err := b.locked(func(e *simulation.Engine) (err error) {
		id, err = e.AddJoint(j)
		return err
	})
	return id, err
}

func (b *Bridge) RemoveJoint(id pipeline.JointID) error {
	return b.locked(func(e *simulation.Engine) error {
		return e.RemoveJoint(id)
	})
}

// Update is the per-frame callback. It advances the simulation by hostDt of wall time and
// returns the number of steps committed.
func (b *Bridge) Update(hostDt float64) (int, error) {
	return b.UpdateContext(context.Background(), hostDt)
}

func (b *Bridge) UpdateContext(ctx context.Context, hostDt float64) (int, error) {
	var steps int
	err := b.locked(func(e *simulation.Engine) (err error) {
		steps, err = e.AdvanceContext(ctx, hostDt)
		return err
	})
	return steps, err
}

// Snapshot returns the render view of the committed state, ordered by body id.
func (b *Bridge) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	previous, current := b.engine.Committed()
	return interpolate(previous, current, b.engine.Alpha())
}

// Arrows returns the debug vectors of the current commit.
func (b *Bridge) Arrows() []Arrow {
	b.mu.Lock()
	defer b.mu.Unlock()
	previous, current := b.engine.Committed()
	return arrows(previous, current)
}

// State returns a detached copy of the current committed state.
func (b *Bridge) State() physics.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.State()
}

func (b *Bridge) Body(id physics.BodyID) (physics.Body, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Body(id)
}

func (b *Bridge) Joints() []pipeline.DistanceJoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Joints()
}

// Halted returns the fatal error that stopped the simulation, if any.
func (b *Bridge) Halted() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Halted()
}

func (b *Bridge) Config() simulation.Config {
	return b.engine.Config()
}
