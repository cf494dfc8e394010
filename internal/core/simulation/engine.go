// Package simulation ties the clock, the force and constraint pipeline and the
// integrator into a fixed-step engine with atomic step commits.
package simulation

import (
	"context"
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/clock"
	"github.com/simscript/simscript/internal/core/integrator"
	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/internal/core/pipeline"
)

// Engine owns the simulation state. Three stores rotate through the roles of previous
// commit, current commit and step scratch, so a failed step leaves both commits intact.
//
// Engine is not safe for concurrent use; the bridge serializes access.
type Engine struct {
	cfg      Config
	log      log.Log
	clock    *clock.Clock
	pipeline *pipeline.Pipeline

	previous *physics.Store
	current  *physics.Store
	scratch  *physics.Store

	contacts []*pipeline.Contact
	reports  []Report
	halted   error
}

func New(cfg Config, logger log.Log) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clk, err := clock.New(cfg.FixedStepSize, cfg.MaxStepsPerCall)
	if err != nil {
		return nil, err
	}
	pipe, err := pipeline.New(pipeline.Config{
		Iterations: cfg.SolverIterations,
		Params: pipeline.Params{
			Baumgarte:            cfg.Baumgarte,
			PenetrationSlop:      cfg.PenetrationSlop,
			RestitutionThreshold: cfg.RestitutionThreshold,
		},
		InstabilityStrikes: cfg.InstabilityStrikes,
		CooldownSteps:      cfg.CooldownSteps,
		Workers:            cfg.Workers,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err = pipe.Register(pipeline.Gravity(cfg.Gravity)); err != nil {
		return nil, err
	}
	if cfg.LinearDrag > 0 || cfg.AngularDrag > 0 {
		if err = pipe.Register(pipeline.Drag(cfg.LinearDrag, cfg.AngularDrag)); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		cfg:      cfg,
		log:      logger,
		clock:    clk,
		pipeline: pipe,
		previous: physics.NewStore(),
		current:  physics.NewStore(),
		scratch:  physics.NewStore(),
	}
	logger.Info("simulation engine created",
		log.Float64("fixed_step_size", cfg.FixedStepSize),
		log.Int("max_steps_per_call", cfg.MaxStepsPerCall),
		log.Int("solver_iterations", cfg.SolverIterations),
		log.Vec3("gravity", cfg.Gravity),
	)
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Halted returns the fatal error that stopped the engine, if any.
func (e *Engine) Halted() error { return e.halted }

func (e *Engine) checkHalted() error {
	if e.halted == nil {
		return nil
	}
	return physics.NewError(physics.ErrorCodeHalted, "simulation halted", e.halted)
}

// fail records a report for err and returns it.
func (e *Engine) fail(op string, err error) error {
	r := newReport(op, e.current.Steps, err)
	e.reports = append(e.reports, r)
	switch r.Severity {
	case SeverityFatal:
		e.log.Error("simulation failure", log.String("op", op), log.Error(err))
	case SeverityWarning:
		e.log.Warn("simulation warning", log.String("op", op), log.Error(err))
	default:
		e.log.Debug("command rejected", log.String("op", op), log.Error(err))
	}
	return err
}

// DrainReports returns and clears the reports recorded since the last call.
func (e *Engine) DrainReports() []Report {
	out := e.reports
	e.reports = nil
	return out
}

// Spawn validates def and adds the body to the current state.
func (e *Engine) Spawn(def physics.BodyDef) (physics.BodyID, error) {
	if err := e.checkHalted(); err != nil {
		return physics.NoBody, err
	}
	b, err := physics.NewBody(def, e.cfg.DefaultMaterial)
	if err != nil {
		return physics.NoBody, e.fail("spawn", err)
	}
	id := e.current.Insert(b)
	e.log.Debug("body spawned",
		log.Stringer("body", id),
		log.Stringer("shape", def.Shape.Kind),
		log.Vec3("position", b.Position),
	)
	return id, nil
}

// Despawn removes the body together with its joints, generators and queued impulses.
func (e *Engine) Despawn(id physics.BodyID) error {
	if err := e.checkHalted(); err != nil {
		return err
	}
	if err := e.current.Remove(id); err != nil {
		return e.fail("despawn", physics.UnknownBody("despawn", id))
	}
	e.pipeline.Forget(id)
	for _, j := range e.pipeline.Prune(e.current) {
		e.log.Debug("joint removed with body", log.Uint64("joint", uint64(j)), log.Stringer("body", id))
	}
	return nil
}

// QueueImpulse schedules a one-shot impulse at a world-space offset from the centre of
// mass, applied during the next step.
func (e *Engine) QueueImpulse(id physics.BodyID, impulse, offset mgl64.Vec3) error {
	if err := e.checkHalted(); err != nil {
		return err
	}
	if !e.current.Contains(id) {
		return e.fail("apply_impulse", physics.UnknownBody("apply_impulse", id))
	}
	if err := e.pipeline.QueueImpulse(pipeline.ImpulseAt(id, impulse, offset)); err != nil {
		return e.fail("apply_impulse", err)
	}
	return nil
}

// AddGenerator registers a permanent force generator.
func (e *Engine) AddGenerator(g pipeline.Generator) error {
	if err := e.checkHalted(); err != nil {
		return err
	}
	if !g.Target.IsZero() && !e.current.Contains(g.Target) {
		return e.fail("add_generator", physics.UnknownBody("add_generator", g.Target))
	}
	if err := e.pipeline.Register(g); err != nil {
		return e.fail("add_generator", err)
	}
	return nil
}

func (e *Engine) AddJoint(j pipeline.DistanceJoint) (pipeline.JointID, error) {
	if err := e.checkHalted(); err != nil {
		return 0, err
	}
	id, err := e.pipeline.AddJoint(e.current, j)
	if err != nil {
		return 0, e.fail("add_joint", err)
	}
	return id, nil
}

func (e *Engine) RemoveJoint(id pipeline.JointID) error {
	if err := e.checkHalted(); err != nil {
		return err
	}
	if err := e.pipeline.RemoveJoint(id); err != nil {
		return e.fail("remove_joint", err)
	}
	return nil
}

func (e *Engine) Joints() []pipeline.DistanceJoint {
	joints := e.pipeline.Joints()
	out := make([]pipeline.DistanceJoint, len(joints))
	for i, j := range joints {
		out[i] = *j
	}
	return out
}

// Advance feeds hostDt to the clock and runs the steps that fall due. It returns the
// number of steps committed. A numeric failure discards the failing step and skips the
// rest of this call.
func (e *Engine) Advance(hostDt float64) (int, error) {
	return e.AdvanceContext(context.Background(), hostDt)
}

func (e *Engine) AdvanceContext(ctx context.Context, hostDt float64) (int, error) {
	if err := e.checkHalted(); err != nil {
		return 0, err
	}
	due, err := e.clock.Advance(hostDt)
	if err != nil {
		return 0, e.fail("advance", err)
	}
	for i := 0; i < due; i++ {
		if err = e.step(ctx); err != nil {
			return i, err
		}
	}
	return due, nil
}

// Step runs exactly one fixed step, bypassing the clock.
func (e *Engine) Step(ctx context.Context) error {
	if err := e.checkHalted(); err != nil {
		return err
	}
	return e.step(ctx)
}

func (e *Engine) step(ctx context.Context) error {
	dt := e.cfg.FixedStepSize
	next := e.scratch
	next.CopyFrom(e.current)

	forces := e.pipeline.Accumulate(next, dt)
	integrator.IntegrateVelocities(next, forces, dt)
	contacts, err := e.pipeline.Detect(ctx, next)
	if err != nil {
		return e.fail("step", err)
	}
	e.pipeline.Resolve(next, contacts, dt)
	integrator.IntegratePositions(next, dt)

	if err = integrator.CheckFinite(next); err != nil {
		var simErr *physics.Error
		if errors.As(err, &simErr) {
			cooled := e.pipeline.Strike(e.current.Steps, simErr.Bodies, contacts)
			if len(cooled) > 0 {
				simErr.WithContext("cooldown", cooled)
			}
		}
		return e.fail("step", err)
	}

	next.Time = e.current.Time + dt
	next.Steps = e.current.Steps + 1
	if err = next.CheckIntegrity(); err != nil {
		e.halted = err
		return e.fail("step", err)
	}

	e.previous, e.current, e.scratch = e.current, next, e.previous
	e.contacts = contacts
	return nil
}

// Alpha is the render interpolation fraction between the previous and current commits.
func (e *Engine) Alpha() float64 { return e.clock.Alpha() }

// Clock exposes the step accumulator for inspection.
func (e *Engine) Clock() *clock.Clock { return e.clock }

// Committed returns the previous and current committed stores. Callers must not modify
// them or keep them across calls that mutate the engine.
func (e *Engine) Committed() (previous, current *physics.Store) {
	return e.previous, e.current
}

// State returns a detached copy of the current committed state.
func (e *Engine) State() physics.State {
	return e.current.State()
}

func (e *Engine) Body(id physics.BodyID) (physics.Body, bool) {
	return e.current.Get(id)
}

// Contacts returns the number of contacts resolved by the last committed step.
func (e *Engine) Contacts() int { return len(e.contacts) }
