package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	var q Queue[int]
	for i := 0; i < 20; i++ {
		q.Enqueue(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	// wrap around the ring
	for i := 20; i < 30; i++ {
		q.Enqueue(i)
	}
	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 5, head)

	all := q.Drain()
	require.Len(t, all, 25)
	for i, v := range all {
		assert.Equal(t, i+5, v)
	}
	assert.True(t, q.IsEmpty())

	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestQueueClear(t *testing.T) {
	q := NewQueue[string](2)
	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")
	q.Clear()
	assert.Zero(t, q.Len())
	q.Enqueue("d")
	v, _ := q.Dequeue()
	assert.Equal(t, "d", v)
}

func TestPriorityQueueStable(t *testing.T) {
	pq := NewPriorityQueue[string]()
	pq.Enqueue("low", 1)
	pq.Enqueue("first", 5)
	removed := pq.Enqueue("gone", 5)
	pq.Enqueue("second", 5)
	pq.Enqueue("mid", 3)

	assert.True(t, pq.Remove(removed))
	assert.False(t, pq.Remove(removed))
	assert.Equal(t, []string{"first", "second", "mid", "low"}, pq.Sorted())
	assert.Equal(t, 4, pq.Len())

	var got []string
	for !pq.IsEmpty() {
		v, _ := pq.Dequeue()
		got = append(got, v)
	}
	assert.Equal(t, []string{"first", "second", "mid", "low"}, got)
}

func TestIterator(t *testing.T) {
	it := From([]int{5, 3, 8, 1, 4})
	even := it.Filter(func(v int) bool { return v%2 == 0 })
	assert.Equal(t, []int{8, 4}, even.Collect())
	assert.Equal(t, []int{1, 3, 4, 5, 8}, it.Sort(func(a, b int) bool { return a < b }).Collect())
	assert.True(t, it.Any(func(v int) bool { return v == 1 }))
	assert.Equal(t, 5, it.Count())

	doubled := Map(it, func(v int) int { return v * 2 })
	assert.Equal(t, []int{10, 6, 16, 2, 8}, doubled.Collect())

	pairs := FlatMap(From([]int{1, 2}), func(v int) []int { return []int{v, -v} })
	assert.Equal(t, []int{1, -1, 2, -2}, pairs.Collect())
}
