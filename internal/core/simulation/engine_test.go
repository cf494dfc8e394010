package simulation

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/internal/core/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(cfg, log.NewNop())
	require.NoError(t, err)
	return e
}

func ball(y float64) physics.BodyDef {
	return physics.BodyDef{Shape: physics.Sphere(0.5), Mass: 1, Position: mgl64.Vec3{0, y, 0}}
}

func ground() physics.BodyDef {
	return physics.BodyDef{Shape: physics.Plane(mgl64.Vec3{0, 1, 0}), Fixed: true}
}

func TestFreeFall(t *testing.T) {
	e := newEngine(t, nil)
	id, err := e.Spawn(ball(10))
	require.NoError(t, err)

	dt := e.Config().FixedStepSize
	for i := 0; i < 60; i++ {
		n, err := e.Advance(dt)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}

	b, ok := e.Body(id)
	require.True(t, ok)
	// semi-implicit Euler: y_n = y_0 - g·dt²·n(n+1)/2
	want := 10 - 9.81*dt*dt*60*61/2
	assert.InDelta(t, want, b.Position.Y(), 1e-9)
	assert.InDelta(t, 10-9.81/2, b.Position.Y(), 0.1)
	assert.InDelta(t, -9.81, b.LinearVelocity.Y(), 1e-9)

	state := e.State()
	assert.Equal(t, uint64(60), state.Steps)
	assert.InDelta(t, 1.0, state.Time, 1e-9)
}

func TestFixedBodiesNeverMove(t *testing.T) {
	e := newEngine(t, nil)
	floor, err := e.Spawn(ground())
	require.NoError(t, err)
	wall, err := e.Spawn(physics.BodyDef{
		Shape:    physics.Box(mgl64.Vec3{1, 1, 1}),
		Fixed:    true,
		Position: mgl64.Vec3{0, 0.5, 0},
	})
	require.NoError(t, err)
	_, err = e.Spawn(ball(3))
	require.NoError(t, err)
	require.NoError(t, e.QueueImpulse(wall, mgl64.Vec3{100, 0, 0}, mgl64.Vec3{}))

	for i := 0; i < 120; i++ {
		_, err = e.Advance(e.Config().FixedStepSize)
		require.NoError(t, err)
	}

	f, _ := e.Body(floor)
	w, _ := e.Body(wall)
	assert.Equal(t, mgl64.Vec3{}, f.Position)
	assert.Equal(t, mgl64.Vec3{0, 0.5, 0}, w.Position)
	assert.Equal(t, mgl64.Vec3{}, w.LinearVelocity)
	assert.Equal(t, mgl64.QuatIdent(), w.Orientation)
}

func TestBallRestsOnGround(t *testing.T) {
	e := newEngine(t, func(c *Config) { c.MaxStepsPerCall = 600 })
	_, err := e.Spawn(ground())
	require.NoError(t, err)
	id, err := e.Spawn(ball(2))
	require.NoError(t, err)

	n, err := e.Advance(5)
	require.NoError(t, err)
	assert.Equal(t, 300, n)

	b, _ := e.Body(id)
	assert.InDelta(t, 0.5, b.Position.Y(), 0.02)
	assert.InDelta(t, 0, b.LinearVelocity.Y(), 0.05)
	assert.Equal(t, 1, e.Contacts())
}

func TestDespawnTwice(t *testing.T) {
	e := newEngine(t, nil)
	id, err := e.Spawn(ball(0))
	require.NoError(t, err)
	require.NoError(t, e.Despawn(id))

	for i := 0; i < 2; i++ {
		err = e.Despawn(id)
		require.Error(t, err)
		assert.True(t, errors.Is(err, physics.ErrUnknownBody))
	}

	reports := e.DrainReports()
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, physics.ErrorCodeUnknownBody, r.Code)
		assert.Equal(t, SeverityError, r.Severity)
		assert.Equal(t, "despawn", r.Op)
		assert.Equal(t, []physics.BodyID{id}, r.Bodies)
	}
	assert.Empty(t, e.DrainReports())
}

func TestDespawnDropsJointsAndGenerators(t *testing.T) {
	e := newEngine(t, nil)
	a, err := e.Spawn(ball(5))
	require.NoError(t, err)
	b, err := e.Spawn(ball(7))
	require.NoError(t, err)

	_, err = e.AddJoint(pipeline.DistanceJoint{A: a, B: b, Length: 2})
	require.NoError(t, err)
	require.NoError(t, e.AddGenerator(pipeline.Moment(a, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0})))
	require.Len(t, e.Joints(), 1)

	require.NoError(t, e.Despawn(a))
	assert.Empty(t, e.Joints())

	_, err = e.Advance(e.Config().FixedStepSize)
	require.NoError(t, err)

	err = e.AddGenerator(pipeline.Moment(a, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}))
	assert.True(t, errors.Is(err, physics.ErrUnknownBody))
}

func TestInvalidCommandsAreNoOps(t *testing.T) {
	e := newEngine(t, nil)
	id, err := e.Spawn(ball(1))
	require.NoError(t, err)
	before := e.State()

	n, err := e.Advance(-1)
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, physics.ErrInvalidInput))

	_, err = e.Advance(math.NaN())
	assert.True(t, errors.Is(err, physics.ErrInvalidInput))

	_, err = e.Spawn(physics.BodyDef{Shape: physics.Sphere(1), Mass: -1})
	assert.True(t, errors.Is(err, physics.ErrInvalidInput))

	err = e.QueueImpulse(id, mgl64.Vec3{math.Inf(1), 0, 0}, mgl64.Vec3{})
	assert.True(t, errors.Is(err, physics.ErrInvalidInput))

	err = e.QueueImpulse(id+1, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{})
	assert.True(t, errors.Is(err, physics.ErrUnknownBody))

	assert.Equal(t, before, e.State())
	assert.Len(t, e.DrainReports(), 5)
}

func TestImpulseChangesVelocityOnce(t *testing.T) {
	e := newEngine(t, func(c *Config) { c.Gravity = mgl64.Vec3{} })
	id, err := e.Spawn(physics.BodyDef{Shape: physics.Sphere(0.5), Mass: 2})
	require.NoError(t, err)
	require.NoError(t, e.QueueImpulse(id, mgl64.Vec3{4, 0, 0}, mgl64.Vec3{}))

	require.NoError(t, e.Step(context.Background()))
	require.NoError(t, e.Step(context.Background()))

	b, _ := e.Body(id)
	assert.InDelta(t, 2, b.LinearVelocity.X(), 1e-12)
}

func TestNumericInstabilityKeepsState(t *testing.T) {
	e := newEngine(t, func(c *Config) {
		c.Gravity = mgl64.Vec3{}
		c.InstabilityStrikes = 2
		c.CooldownSteps = 10
	})
	id, err := e.Spawn(physics.BodyDef{Shape: physics.Sphere(0.5), Mass: 1e-3})
	require.NoError(t, err)
	require.NoError(t, e.Step(context.Background()))
	before := e.State()

	for i := 0; i < 2; i++ {
		require.NoError(t, e.QueueImpulse(id, mgl64.Vec3{1e308, 0, 0}, mgl64.Vec3{}))
		n, err := e.Advance(e.Config().FixedStepSize * 3)
		assert.Zero(t, n)
		require.Error(t, err)
		assert.True(t, errors.Is(err, physics.ErrNumericInstability))
	}
	assert.Equal(t, before, e.State())
	assert.Nil(t, e.Halted())

	reports := e.DrainReports()
	require.Len(t, reports, 2)
	assert.Equal(t, SeverityWarning, reports[0].Severity)
	assert.Equal(t, []physics.BodyID{id}, reports[0].Bodies)

	var simErr *physics.Error
	require.True(t, errors.As(reports[1].Err, &simErr))
	assert.Equal(t, []physics.BodyID{id}, simErr.Context["cooldown"])

	// the impulse was consumed by the failed step
	n, err := e.Advance(e.Config().FixedStepSize)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	b, _ := e.Body(id)
	assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity)
}

func TestDegenerateJointCoolsDown(t *testing.T) {
	e := newEngine(t, func(c *Config) {
		c.InstabilityStrikes = 1
		c.CooldownSteps = 5
	})
	bad, err := e.Spawn(ball(0))
	require.NoError(t, err)
	other, err := e.Spawn(ball(100))
	require.NoError(t, err)
	_, err = e.AddJoint(pipeline.DistanceJoint{A: bad, Length: 1})
	require.NoError(t, err)
	// stretch the joint so far that its bias overflows
	e.current.Ref(bad).Position = mgl64.Vec3{1e308, 0, 0}

	dt := e.Config().FixedStepSize
	failures := 0
	for i := 0; i < 120; i++ {
		if _, err := e.Advance(dt); err != nil {
			require.True(t, errors.Is(err, physics.ErrNumericInstability))
			failures++
		}
	}
	assert.Nil(t, e.Halted())

	steps := e.State().Steps
	assert.NotZero(t, failures)
	assert.Equal(t, uint64(120-failures), steps)
	assert.GreaterOrEqual(t, steps, uint64(90))

	b, ok := e.Body(other)
	require.True(t, ok)
	n := float64(steps)
	assert.InDelta(t, 100-9.81*dt*dt*n*(n+1)/2, b.Position.Y(), 1e-6)

	reports := e.DrainReports()
	require.Len(t, reports, failures)
	var simErr *physics.Error
	require.True(t, errors.As(reports[0].Err, &simErr))
	assert.Equal(t, []physics.BodyID{bad}, simErr.Context["cooldown"])
}

func TestCorruptStateHalts(t *testing.T) {
	e := newEngine(t, nil)
	floor, err := e.Spawn(ground())
	require.NoError(t, err)
	_, err = e.Spawn(ball(4))
	require.NoError(t, err)

	_, current := e.Committed()
	current.Ref(floor).Mass = 1

	err = e.Step(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, physics.ErrCorruptState))
	require.Error(t, e.Halted())

	reports := e.DrainReports()
	require.Len(t, reports, 1)
	assert.Equal(t, SeverityFatal, reports[0].Severity)

	_, err = e.Advance(1)
	assert.True(t, errors.Is(err, physics.ErrHalted))
	_, err = e.Spawn(ball(1))
	assert.True(t, errors.Is(err, physics.ErrHalted))
	assert.True(t, errors.Is(e.Despawn(floor), physics.ErrHalted))
	assert.True(t, physics.IsFatal(err))
}

func TestCommittedBuffersRotate(t *testing.T) {
	e := newEngine(t, nil)
	id, err := e.Spawn(ball(10))
	require.NoError(t, err)

	require.NoError(t, e.Step(context.Background()))
	require.NoError(t, e.Step(context.Background()))

	prev, cur := e.Committed()
	assert.Equal(t, uint64(1), prev.Steps)
	assert.Equal(t, uint64(2), cur.Steps)
	p, _ := prev.Get(id)
	c, _ := cur.Get(id)
	assert.Greater(t, p.Position.Y(), c.Position.Y())
}

func TestDeterministicAcrossWorkers(t *testing.T) {
	run := func(workers int) physics.State {
		e := newEngine(t, func(c *Config) {
			c.Workers = workers
			c.MaxStepsPerCall = 1000
		})
		_, err := e.Spawn(ground())
		require.NoError(t, err)
		for i := 0; i < 12; i++ {
			_, err = e.Spawn(physics.BodyDef{
				Shape:    physics.Box(mgl64.Vec3{0.4, 0.4, 0.4}),
				Mass:     1,
				Position: mgl64.Vec3{float64(i%4) * 0.7, 1 + float64(i/4)*0.9, float64(i%3) * 0.3},
			})
			require.NoError(t, err)
		}
		_, err = e.Advance(3)
		require.NoError(t, err)
		return e.State()
	}

	assert.Equal(t, run(1), run(4))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero step", func(c *Config) { c.FixedStepSize = 0 }},
		{"no steps", func(c *Config) { c.MaxStepsPerCall = 0 }},
		{"no iterations", func(c *Config) { c.SolverIterations = 0 }},
		{"nan gravity", func(c *Config) { c.Gravity = mgl64.Vec3{math.NaN(), 0, 0} }},
		{"negative drag", func(c *Config) { c.LinearDrag = -1 }},
		{"baumgarte", func(c *Config) { c.Baumgarte = 2 }},
		{"strikes", func(c *Config) { c.InstabilityStrikes = 0 }},
		{"workers", func(c *Config) { c.Workers = -1 }},
		{"material", func(c *Config) { c.DefaultMaterial.Friction = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), physics.ErrInvalidInput))
			_, err := New(cfg, log.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(`
fixed_step_size: 0.01
solver_iterations: 4
gravity: [0, -1.62, 0]
linear_drag: 0.1
default_material:
  restitution: 0.8
  friction: 0.1
`))
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.FixedStepSize)
	assert.Equal(t, 4, cfg.SolverIterations)
	assert.Equal(t, mgl64.Vec3{0, -1.62, 0}, cfg.Gravity)
	assert.Equal(t, 0.1, cfg.LinearDrag)
	assert.Equal(t, physics.Material{Restitution: 0.8, Friction: 0.1}, cfg.DefaultMaterial)
	assert.Equal(t, DefaultConfig().MaxStepsPerCall, cfg.MaxStepsPerCall)

	empty, err := DecodeConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), empty)

	_, err = DecodeConfig(strings.NewReader("fixed_step_size: -1"))
	assert.True(t, errors.Is(err, physics.ErrInvalidInput))

	_, err = DecodeConfig(strings.NewReader("gravity: {"))
	assert.Error(t, err)
}

func BenchmarkStep(b *testing.B) {
	for _, bc := range []struct {
		name    string
		workers int
	}{{"serial", 1}, {"parallel", 4}} {
		b.Run(bc.name, func(b *testing.B) {
			cfg := DefaultConfig()
			cfg.Workers = bc.workers
			e, err := New(cfg, log.NewNop())
			require.NoError(b, err)
			_, err = e.Spawn(ground())
			require.NoError(b, err)
			for i := 0; i < 200; i++ {
				def := ball(1 + float64(i/20))
				def.Position[0] = float64(i%20) * 1.1
				_, err = e.Spawn(def)
				require.NoError(b, err)
			}

			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := e.Step(ctx); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
