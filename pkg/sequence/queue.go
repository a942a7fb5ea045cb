package sequence

import "container/heap"

type innerQueue[T any] struct {
	items []T
	less  func(a, b T) bool
}

func (q *innerQueue[T]) Len() int { return len(q.items) }

func (q *innerQueue[T]) Less(i, j int) bool {
	return q.less(q.items[i], q.items[j])
}

func (q *innerQueue[T]) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *innerQueue[T]) Push(x any) {
	q.items = append(q.items, x.(T))
}

func (q *innerQueue[T]) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	var zero T
	old[n-1] = zero // avoid memory leak
	q.items = old[0 : n-1]
	return item
}

// PriorityQueue is a heap-backed queue ordered by the provided less function.
// The element for which less reports true against all others is dequeued first.
// Not safe for concurrent use; callers synchronize externally.
type PriorityQueue[T any] struct {
	q innerQueue[T]
}

func NewPriorityQueue[T any](less func(a, b T) bool) *PriorityQueue[T] {
	pq := &PriorityQueue[T]{q: innerQueue[T]{less: less}}
	heap.Init(&pq.q)
	return pq
}

func (pq *PriorityQueue[T]) Enqueue(value T) {
	heap.Push(&pq.q, value)
}

func (pq *PriorityQueue[T]) Dequeue() (T, bool) {
	if pq.q.Len() == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&pq.q).(T), true
}

func (pq *PriorityQueue[T]) Peek() (T, bool) {
	if pq.q.Len() == 0 {
		var zero T
		return zero, false
	}
	return pq.q.items[0], true
}

func (pq *PriorityQueue[T]) Len() int {
	return pq.q.Len()
}

func (pq *PriorityQueue[T]) IsEmpty() bool {
	return pq.q.Len() == 0
}
