// Package collection provides utility data structures.
package collection

// Queue is a FIFO queue backed by a slice.
type Queue[T any] struct {
	items []T
	head  int
}

func NewQueue[T any](items ...T) *Queue[T] {
	q := &Queue[T]{}
	for _, item := range items {
		q.Push(item)
	}
	return q
}

func (q *Queue[T]) Push(v T) {
	q.items = append(q.items, v)
}

// Pop removes the front element. It returns false when the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}

	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// compact once the consumed prefix dominates the backing array
	if q.head > 32 && q.head*2 >= len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}

	return v, true
}

func (q *Queue[T]) Len() int {
	return len(q.items) - q.head
}

// Drain pops elements until the queue is empty or yield returns false.
// Elements pushed by yield are visited too.
func (q *Queue[T]) Drain(yield func(T) bool) {
	for {
		v, ok := q.Pop()
		if !ok || !yield(v) {
			return
		}
	}
}
