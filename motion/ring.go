package motion

// ring is a fixed capacity FIFO that overwrites its oldest entry when full.
type ring[T any] struct {
	cnt, i int
	data   []T
}

func newRing[T any](size int) *ring[T] {
	size = max(size, 0)
	return &ring[T]{data: make([]T, size)}
}

func (rb *ring[T]) Len() int {
	return rb.cnt
}

func (rb *ring[T]) Push(x T) {
	if len(rb.data) == 0 {
		return
	}
	if rb.cnt == len(rb.data) {
		rb.i = (rb.i + 1) % len(rb.data)
		rb.cnt--
	}
	rb.data[(rb.i+rb.cnt)%len(rb.data)] = x
	rb.cnt++
}

// Slice returns the contents oldest first.
func (rb *ring[T]) Slice() []T {
	out := make([]T, rb.cnt)
	for n := range out {
		out[n] = rb.data[(rb.i+n)%len(rb.data)]
	}
	return out
}

func (rb *ring[T]) Clear() {
	var zero T
	for n := range rb.data {
		rb.data[n] = zero
	}
	rb.cnt, rb.i = 0, 0
}
