package concurrent

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers normalizes a requested worker count: zero or less means one per CPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// Chunks splits n items into at most parts contiguous [start,end) ranges of near equal size.
func Chunks(n, parts int) [][2]int {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	out := make([][2]int, 0, parts)
	size, rem := n/parts, n%parts
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < rem {
			end++
		}
		out = append(out, [2]int{start, end})
		start = end
	}
	return out
}

// OrderedMap applies mapFn to every element of in using up to workers goroutines and
// returns the results in input order. The first error cancels ctx for the remaining
// calls and is returned.
func OrderedMap[T any, R any](ctx context.Context, in []T, workers int, mapFn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(in))
	if len(in) == 0 {
		return out, nil
	}

	workers = Workers(workers)
	if workers == 1 {
		for i, v := range in {
			r, err := mapFn(ctx, v)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, span := range Chunks(len(in), workers) {
		span := span
		g.Go(func() error {
			for i := span[0]; i < span[1]; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				r, err := mapFn(gctx, in[i])
				if err != nil {
					return err
				}
				out[i] = r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FlattenOrdered runs OrderedMap with a function yielding several results per element and
// concatenates them, preserving input order.
func FlattenOrdered[T any, R any](ctx context.Context, in []T, workers int, mapFn func(context.Context, T) ([]R, error)) ([]R, error) {
	parts, err := OrderedMap(ctx, in, workers, mapFn)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]R, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// Each runs action for every element with up to workers goroutines and waits for all of
// them, returning the first error.
func Each[T any](ctx context.Context, in []T, workers int, action func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))
	for _, v := range in {
		v := v
		g.Go(func() error {
			return action(gctx, v)
		})
	}
	return g.Wait()
}
