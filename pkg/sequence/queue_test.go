package sequence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriorityQueueOrdering(t *testing.T) {
	pq := NewPriorityQueue[int](func(a, b int) bool { return a < b })

	for _, v := range []int{5, 1, 4, 2, 3} {
		pq.Enqueue(v)
	}

	require.Equal(t, 5, pq.Len())

	head, ok := pq.Peek()
	require.True(t, ok)
	require.Equal(t, 1, head)

	for want := 1; want <= 5; want++ {
		got, ok := pq.Dequeue()
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok = pq.Dequeue()
	require.False(t, ok)
	require.True(t, pq.IsEmpty())
}

func TestRingEviction(t *testing.T) {
	r := NewRing[int](3)

	r.Append(1)
	r.Append(2)
	require.Equal(t, []int{1, 2}, r.Snapshot())

	r.Append(3)
	r.Append(4) // evicts 1
	require.Equal(t, 3, r.Len())
	require.Equal(t, []int{2, 3, 4}, r.Snapshot())

	r.Append(5)
	require.Equal(t, []int{3, 4, 5}, r.Snapshot())

	r.Reset()
	require.Equal(t, 0, r.Len())
	require.Empty(t, r.Snapshot())
	require.Equal(t, 3, r.Cap())
}

func TestIteratorSortFilter(t *testing.T) {
	it := From([]int{4, 1, 3, 2})

	sorted := it.Sort(func(a, b int) bool { return a < b }).Collect()
	require.Equal(t, []int{1, 2, 3, 4}, sorted)

	even := From([]int{4, 1, 3, 2}).Filter(func(v int) bool { return v%2 == 0 })
	require.Equal(t, 2, even.Count())
}
