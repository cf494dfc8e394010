package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/simscript/simscript/internal/core/observability/log"
	"github.com/simscript/simscript/internal/core/physics"
	"github.com/simscript/simscript/pkg/sequence"
)

var ErrDuplicateSystem = errors.New("host: system already registered")

type entry struct {
	system  System
	item    *sequence.PriorityItem[*entry]
	metrics Metrics
}

// Host owns the registered systems and the frame counter.
type Host struct {
	mu      sync.Mutex
	log     log.Log
	queues  map[Phase]*sequence.PriorityQueue[*entry]
	entries map[string]*entry
	order   [][]*entry

	frame   uint64
	elapsed time.Duration
}

func New(logger log.Log) *Host {
	h := &Host{
		log:     logger,
		queues:  make(map[Phase]*sequence.PriorityQueue[*entry]),
		entries: make(map[string]*entry),
	}
	for _, p := range phases {
		h.queues[p] = sequence.NewPriorityQueue[*entry]()
	}
	return h
}

// Register adds s. Systems of equal priority run in registration order.
func (h *Host) Register(s System) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.entries[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSystem, s.Name())
	}
	q, ok := h.queues[s.Phase()]
	if !ok {
		return fmt.Errorf("host: system %s has unknown %s", s.Name(), s.Phase())
	}
	e := &entry{system: s}
	e.item = q.Enqueue(e, int(s.Priority()))
	h.entries[s.Name()] = e
	h.order = nil
	h.log.Debug("system registered",
		log.String("system", s.Name()),
		log.Stringer("phase", s.Phase()),
		log.Int("priority", int(s.Priority())),
	)
	return nil
}

func (h *Host) Unregister(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[name]
	if !ok {
		return false
	}
	h.queues[e.system.Phase()].Remove(e.item)
	delete(h.entries, name)
	h.order = nil
	return true
}

func (h *Host) schedule() [][]*entry {
	if h.order == nil {
		h.order = make([][]*entry, len(phases))
		for i, p := range phases {
			h.order[i] = h.queues[p].Sorted()
		}
	}
	return h.order
}

// ExecutionOrder lists system names in the order a frame runs them.
func (h *Host) ExecutionOrder() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var names []string
	for _, phase := range h.schedule() {
		for _, e := range phase {
			names = append(names, e.system.Name())
		}
	}
	return names
}

func (h *Host) Metrics(name string) (Metrics, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[name]
	if !ok {
		return Metrics{}, false
	}
	return e.metrics, true
}

// Frames is the number of frames run so far.
func (h *Host) Frames() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame
}

// Frame runs every system once with deltaTime seconds of host time. Errors from
// individual systems do not stop the frame; they are joined and returned. A fatal
// simulation error stops the frame immediately.
func (h *Host) Frame(ctx context.Context, deltaTime float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.frame++
	h.elapsed += time.Duration(deltaTime * float64(time.Second))
	frame := Frame{Number: h.frame, DeltaTime: deltaTime, Elapsed: h.elapsed}

	var errs []error
	for _, phase := range h.schedule() {
		for _, e := range phase {
			start := time.Now()
			err := e.system.Update(ctx, frame)
			e.metrics.record(start, err)
			if err == nil {
				continue
			}
			if physics.IsFatal(err) {
				h.log.Error("system failed fatally",
					log.String("system", e.system.Name()),
					log.Uint64("frame", frame.Number),
					log.Error(err),
				)
				return fmt.Errorf("%s: %w", e.system.Name(), err)
			}
			h.log.Debug("system error",
				log.String("system", e.system.Name()),
				log.Uint64("frame", frame.Number),
				log.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", e.system.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// RunFrames runs n frames of deltaTime back to back. Only fatal errors and
// cancellation stop it early.
func (h *Host) RunFrames(ctx context.Context, n int, deltaTime float64) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.Frame(ctx, deltaTime); err != nil && physics.IsFatal(err) {
			return err
		}
	}
	return nil
}

// Run runs one frame per interval tick, feeding the measured wall time as the frame
// delta, until ctx is done or a fatal error occurs.
func (h *Host) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("host: interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.log.Info("host loop started", log.Duration("interval", interval))
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			h.log.Info("host loop stopped", log.Uint64("frames", h.Frames()))
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := h.Frame(ctx, dt); err != nil && physics.IsFatal(err) {
				return err
			}
		}
	}
}
