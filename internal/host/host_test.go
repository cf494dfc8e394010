package host

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/simscript/simscript/internal/bridge"
	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/internal/core/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(calls *[]string, name string, phase Phase, priority Priority) *Func {
	return NewFunc(name, phase, priority, func(context.Context, Frame) error {
		*calls = append(*calls, name)
		return nil
	})
}

func TestExecutionOrder(t *testing.T) {
	h := New(log.NewNop())
	var calls []string

	require.NoError(t, h.Register(recorder(&calls, "late", PhaseLateUpdate, PriorityHighest)))
	require.NoError(t, h.Register(recorder(&calls, "fixed-low", PhaseFixedUpdate, PriorityLow)))
	require.NoError(t, h.Register(recorder(&calls, "fixed-high", PhaseFixedUpdate, PriorityHigh)))
	require.NoError(t, h.Register(recorder(&calls, "fixed-low-2", PhaseFixedUpdate, PriorityLow)))
	require.NoError(t, h.Register(recorder(&calls, "pre", PhasePreUpdate, PriorityLowest)))

	want := []string{"pre", "fixed-high", "fixed-low", "fixed-low-2", "late"}
	assert.Equal(t, want, h.ExecutionOrder())

	require.NoError(t, h.Frame(context.Background(), 0.01))
	assert.Equal(t, want, calls)

	err := h.Register(recorder(&calls, "pre", PhaseUpdate, PriorityLow))
	assert.True(t, errors.Is(err, ErrDuplicateSystem))

	assert.True(t, h.Unregister("fixed-high"))
	assert.False(t, h.Unregister("fixed-high"))
	assert.Equal(t, []string{"pre", "fixed-low", "fixed-low-2", "late"}, h.ExecutionOrder())
}

func TestFrameErrors(t *testing.T) {
	h := New(log.NewNop())
	var ran []string
	boom := errors.New("boom")

	require.NoError(t, h.Register(NewFunc("flaky", PhaseUpdate, PriorityHigh, func(context.Context, Frame) error {
		return boom
	})))
	require.NoError(t, h.Register(recorder(&ran, "after", PhaseUpdate, PriorityLow)))

	err := h.Frame(context.Background(), 0.01)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, []string{"after"}, ran)

	m, ok := h.Metrics("flaky")
	require.True(t, ok)
	assert.Equal(t, uint64(1), m.ExecutionCount)
	assert.Equal(t, uint64(1), m.ErrorCount)
	assert.Equal(t, boom, m.LastError)

	// non-fatal errors do not stop a run
	require.NoError(t, h.RunFrames(context.Background(), 3, 0.01))
	assert.Equal(t, uint64(4), h.Frames())
}

func TestFatalErrorStopsRun(t *testing.T) {
	h := New(log.NewNop())
	var ran []string
	require.NoError(t, h.Register(NewFunc("corrupt", PhaseFixedUpdate, PriorityHighest, func(context.Context, Frame) error {
		return physics.NewError(physics.ErrorCodeCorruptState, "broken", physics.ErrCorruptState)
	})))
	require.NoError(t, h.Register(recorder(&ran, "late", PhaseLateUpdate, PriorityNormal)))

	err := h.RunFrames(context.Background(), 10, 0.01)
	require.Error(t, err)
	assert.True(t, physics.IsFatal(err))
	assert.Equal(t, uint64(1), h.Frames())
	assert.Empty(t, ran)
}

type captureSink struct {
	mu    sync.Mutex
	snaps []bridge.Snapshot
}

func (c *captureSink) Broadcast(_ context.Context, snap bridge.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, snap)
	return nil
}

func newBridge(t *testing.T) *bridge.Bridge {
	t.Helper()
	e, err := simulation.New(simulation.DefaultConfig(), log.NewNop())
	require.NoError(t, err)
	return bridge.New(e, nil, log.NewNop())
}

func TestPhysicsAndBroadcast(t *testing.T) {
	b := newBridge(t)
	id, err := b.Spawn(bridge.SpawnRecord{Shape: physics.Sphere(0.5), Mass: 1, Position: mgl64.Vec3{0, 10, 0}})
	require.NoError(t, err)

	sink := &captureSink{}
	phys := NewPhysicsSystem(b, log.NewNop())
	h := New(log.NewNop())
	require.NoError(t, h.Register(NewBroadcastSystem(b, 2, sink)))
	require.NoError(t, h.Register(phys))

	require.NoError(t, h.RunFrames(context.Background(), 60, 1.0/60.0))
	assert.Equal(t, uint64(60), phys.Steps())
	assert.Equal(t, uint64(60), b.State().Steps)

	require.Len(t, sink.snaps, 30)
	last := sink.snaps[29]
	assert.Equal(t, uint64(60), last.Step)
	view, ok := last.Find(id)
	require.True(t, ok)
	assert.Less(t, view.Position.Y(), 10.0)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := New(log.NewNop())
	var mu sync.Mutex
	var deltas []float64
	require.NoError(t, h.Register(NewFunc("probe", PhaseUpdate, PriorityNormal, func(_ context.Context, f Frame) error {
		mu.Lock()
		deltas = append(deltas, f.DeltaTime)
		mu.Unlock()
		return nil
	})))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.NoError(t, h.Run(ctx, 5*time.Millisecond))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, deltas)
	for _, dt := range deltas {
		assert.Greater(t, dt, 0.0)
	}
	assert.Error(t, h.Run(context.Background(), 0))
}
