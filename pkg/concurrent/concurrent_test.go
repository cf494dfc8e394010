package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunks(t *testing.T) {
	assert.Nil(t, Chunks(0, 4))
	assert.Equal(t, [][2]int{{0, 3}, {3, 5}, {5, 7}}, Chunks(7, 3))
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, Chunks(2, 8))
	assert.Equal(t, [][2]int{{0, 5}}, Chunks(5, 0))
}

func TestOrderedMapPreservesOrder(t *testing.T) {
	in := make([]int, 1000)
	for i := range in {
		in[i] = i
	}
	for _, workers := range []int{1, 3, 8, 0} {
		out, err := OrderedMap(context.Background(), in, workers, func(_ context.Context, v int) (int, error) {
			return v * v, nil
		})
		require.NoError(t, err)
		for i, v := range out {
			require.Equal(t, i*i, v)
		}
	}
}

func TestOrderedMapError(t *testing.T) {
	boom := errors.New("boom")
	in := []int{1, 2, 3, 4, 5, 6}
	_, err := OrderedMap(context.Background(), in, 2, func(_ context.Context, v int) (int, error) {
		if v == 4 {
			return 0, boom
		}
		return v, nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestFlattenOrdered(t *testing.T) {
	out, err := FlattenOrdered(context.Background(), []int{1, 2, 3}, 4, func(_ context.Context, v int) ([]int, error) {
		res := make([]int, v)
		for i := range res {
			res[i] = v
		}
		return res, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2, 3, 3, 3}, out)
}

func TestEach(t *testing.T) {
	var sum atomic.Int64
	err := Each(context.Background(), []int64{1, 2, 3, 4}, 2, func(_ context.Context, v int64) error {
		sum.Add(v)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum.Load())
}
