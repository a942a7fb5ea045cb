package sequence

// Ring is a fixed-capacity FIFO buffer. When full, appending evicts the oldest
// element. Not safe for concurrent use; callers synchronize externally.
type Ring[T any] struct {
	items []T
	head  int
	size  int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Append adds v, evicting the oldest element if the ring is full.
func (r *Ring[T]) Append(v T) {
	tail := (r.head + r.size) % len(r.items)
	r.items[tail] = v
	if r.size == len(r.items) {
		r.head = (r.head + 1) % len(r.items)
	} else {
		r.size++
	}
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.items) }

// Snapshot returns the elements oldest-first as a fresh slice.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.items[(r.head+i)%len(r.items)])
	}
	return out
}

// Reset drops all elements without releasing the backing array.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.size = 0
}
