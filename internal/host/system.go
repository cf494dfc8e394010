// Package host drives the simulation from a frame loop. Systems run once per frame in
// phase order, and by priority within a phase.
package host

import (
	"context"
	"fmt"
	"time"
)

// System is a per-frame processor.
type System interface {
	Name() string
	Priority() Priority
	Phase() Phase
	// Update runs the system for one frame.
	Update(ctx context.Context, frame Frame) error
}

// Priority orders systems within a phase; higher runs first.
type Priority uint16

const (
	PriorityLowest  Priority = 200
	PriorityLow     Priority = 500
	PriorityNormal  Priority = 600
	PriorityHigh    Priority = 1000
	PriorityHighest Priority = 1300
)

// Phase defines when a system runs within a frame.
type Phase uint8

const (
	PhasePreUpdate Phase = iota
	PhaseUpdate
	PhaseFixedUpdate
	PhaseLateUpdate
)

var phases = []Phase{PhasePreUpdate, PhaseUpdate, PhaseFixedUpdate, PhaseLateUpdate}

func (p Phase) String() string {
	switch p {
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhaseFixedUpdate:
		return "fixed_update"
	case PhaseLateUpdate:
		return "late_update"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Frame describes the frame being processed.
type Frame struct {
	Number    uint64
	DeltaTime float64
	Elapsed   time.Duration
}

// Metrics provides runtime metrics for a system.
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastExecutionTime    time.Time
}

func (m *Metrics) record(start time.Time, err error) {
	took := time.Since(start)
	m.ExecutionCount++
	m.TotalExecutionTime += took
	m.AverageExecutionTime = m.TotalExecutionTime / time.Duration(m.ExecutionCount)
	if took > m.MaxExecutionTime {
		m.MaxExecutionTime = took
	}
	m.LastExecutionTime = start
	if err != nil {
		m.ErrorCount++
		m.LastError = err
	}
}

// Func adapts a function to the System interface.
type Func struct {
	name     string
	phase    Phase
	priority Priority
	fn       func(ctx context.Context, frame Frame) error
}

func NewFunc(name string, phase Phase, priority Priority, fn func(ctx context.Context, frame Frame) error) *Func {
	return &Func{name: name, phase: phase, priority: priority, fn: fn}
}

func (f *Func) Name() string       { return f.name }
func (f *Func) Priority() Priority { return f.priority }
func (f *Func) Phase() Phase       { return f.phase }

func (f *Func) Update(ctx context.Context, frame Frame) error {
	return f.fn(ctx, frame)
}
