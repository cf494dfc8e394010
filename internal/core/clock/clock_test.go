package clock

import (
	"errors"
	"math"
	"testing"

	"github.com/simscript/simscript/internal/core/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const step = 1.0 / 60.0

func newClock(t *testing.T, maxSteps int) *Clock {
	t.Helper()
	c, err := New(step, maxSteps)
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name     string
		step     float64
		maxSteps int
	}{
		{"zero step", 0, 5},
		{"negative step", -1, 5},
		{"nan step", math.NaN(), 5},
		{"inf step", math.Inf(1), 5},
		{"zero cap", step, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.step, tt.maxSteps)
			assert.True(t, errors.Is(err, physics.ErrInvalidInput))
		})
	}
}

func TestAdvanceFractionalSteps(t *testing.T) {
	c := newClock(t, 10)

	steps, err := c.Advance(step * 3.5)
	require.NoError(t, err)
	assert.Equal(t, 3, steps)
	assert.InDelta(t, 0.5*step, c.Residual(), 1e-12)
	assert.InDelta(t, 0.5, c.Alpha(), 1e-9)

	steps, err = c.Advance(step * 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)
	assert.InDelta(t, 0, c.Residual(), 1e-12)
}

func TestAdvanceExactMultiples(t *testing.T) {
	c := newClock(t, 100)
	total := 0
	for i := 0; i < 60; i++ {
		steps, err := c.Advance(step)
		require.NoError(t, err)
		total += steps
	}
	assert.Equal(t, 60, total)

	steps, err := c.Advance(step * 3)
	require.NoError(t, err)
	assert.Equal(t, 3, steps)
}

func TestAdvanceInsufficient(t *testing.T) {
	c := newClock(t, 5)
	steps, err := c.Advance(step / 4)
	require.NoError(t, err)
	assert.Zero(t, steps)
	assert.InDelta(t, 0.25, c.Alpha(), 1e-9)
}

func TestAdvanceRejectsBadInput(t *testing.T) {
	for _, dt := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		c := newClock(t, 5)
		_, err := c.Advance(step / 2)
		require.NoError(t, err)

		steps, err := c.Advance(dt)
		assert.Zero(t, steps)
		require.Error(t, err)
		assert.True(t, errors.Is(err, physics.ErrInvalidInput))
		assert.Equal(t, physics.ErrorCodeInvalidInput, physics.GetErrorCode(err))
		assert.InDelta(t, step/2, c.Residual(), 1e-15, "residual must be unchanged for %v", dt)
	}
}

func TestAdvanceCapsCatchUp(t *testing.T) {
	c := newClock(t, 5)

	steps, err := c.Advance(step * 12.25)
	require.NoError(t, err)
	assert.Equal(t, 5, steps)
	assert.InDelta(t, 0.25*step, c.Residual(), 1e-12)
	assert.InDelta(t, 7*step, c.Dropped(), 1e-12)

	// the discarded time is not replayed
	steps, err = c.Advance(0)
	require.NoError(t, err)
	assert.Zero(t, steps)
}

func TestAlphaRange(t *testing.T) {
	c := newClock(t, 3)
	for i := 0; i < 500; i++ {
		_, err := c.Advance(0.0137)
		require.NoError(t, err)
		alpha := c.Alpha()
		assert.GreaterOrEqual(t, alpha, 0.0)
		assert.Less(t, alpha, 1.0)
	}
}

func TestReset(t *testing.T) {
	c := newClock(t, 1)
	_, err := c.Advance(step * 4.5)
	require.NoError(t, err)
	c.Reset()
	assert.Zero(t, c.Residual())
	assert.Zero(t, c.Dropped())
}
