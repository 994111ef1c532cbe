package vigilance

// ring is a fixed capacity FIFO, the oldest item is overwritten first.
type ring[T any] struct {
	items []T
	start int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) Push(item T) {
	if len(r.items) == 0 {
		return
	}

	end := (r.start + r.size) % len(r.items)
	r.items[end] = item

	if r.size < len(r.items) {
		r.size++

		return
	}

	r.start = (r.start + 1) % len(r.items)
}

func (r *ring[T]) Len() int {
	return r.size
}

// Last returns up to n items, oldest first. n < 0 returns everything.
func (r *ring[T]) Last(n int) []T {
	if n < 0 || n > r.size {
		n = r.size
	}

	ret := make([]T, 0, n)

	for i := r.size - n; i < r.size; i++ {
		ret = append(ret, r.items[(r.start+i)%len(r.items)])
	}

	return ret
}
