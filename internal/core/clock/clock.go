// Package clock converts variable host frame time into a whole number of fixed
// simulation steps.
package clock

import (
	"math"

	"github.com/simscript/simscript/internal/core/physics"
)

// Clock is a fixed-timestep accumulator. It is not safe for concurrent use.
type Clock struct {
	step     float64
	maxSteps int
	residual float64
	dropped  float64
	epsilon  float64
}

// New creates a clock emitting steps of stepSize seconds, at most maxSteps per Advance.
func New(stepSize float64, maxSteps int) (*Clock, error) {
	if !(stepSize > 0) || !physics.IsFinite(stepSize) {
		return nil, physics.InvalidInputf("fixed step size must be positive and finite, got %v", stepSize)
	}
	if maxSteps < 1 {
		return nil, physics.InvalidInputf("max steps per call must be at least 1, got %d", maxSteps)
	}
	return &Clock{
		step:     stepSize,
		maxSteps: maxSteps,
		epsilon:  stepSize * 1e-9,
	}, nil
}

// Advance accumulates hostDt and returns how many fixed steps are now due. A negative or
// non-finite hostDt emits no steps, leaves the residual untouched and returns an
// InvalidInput error.
//
// Steps beyond the per-call cap are discarded; only the fraction of a step survives.
func (c *Clock) Advance(hostDt float64) (int, error) {
	if !physics.IsFinite(hostDt) || hostDt < 0 {
		return 0, physics.InvalidInputf("host dt must be finite and non-negative, got %v", hostDt)
	}

	c.residual += hostDt
	steps := 0
	for c.residual+c.epsilon >= c.step {
		c.residual -= c.step
		steps++
		if steps == c.maxSteps {
			break
		}
	}
	if c.residual < 0 {
		c.residual = 0
	}

	if c.residual+c.epsilon >= c.step {
		excess := math.Floor((c.residual + c.epsilon) / c.step)
		c.residual -= excess * c.step
		if c.residual < 0 {
			c.residual = 0
		}
		c.dropped += excess * c.step
	}
	return steps, nil
}

// Alpha is the fraction of a step accumulated but not yet simulated, in [0,1).
func (c *Clock) Alpha() float64 {
	alpha := c.residual / c.step
	if alpha >= 1 {
		return math.Nextafter(1, 0)
	}
	return alpha
}

// Residual is the accumulated time not yet consumed by a step.
func (c *Clock) Residual() float64 { return c.residual }

func (c *Clock) StepSize() float64 { return c.step }

func (c *Clock) MaxSteps() int { return c.maxSteps }

// Dropped is the total simulated time discarded by the step cap.
func (c *Clock) Dropped() float64 { return c.dropped }

// Reset clears the residual and the dropped-time counter.
func (c *Clock) Reset() {
	c.residual = 0
	c.dropped = 0
}
