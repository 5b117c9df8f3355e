package session

// ring - ограниченный буфер: при переполнении вытесняются самые старые элементы
type ring[T any] struct {
	items []T
	start int
	n     int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if r.n < len(r.items) {
		r.items[(r.start+r.n)%len(r.items)] = v
		r.n++
		return
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % len(r.items)
}

func (r *ring[T]) len() int { return r.n }

// last возвращает до max самых новых элементов от старых к новым; max < 1 трактуется как 1
func (r *ring[T]) last(max int) []T {
	if max < 1 {
		max = 1
	}
	if max > r.n {
		max = r.n
	}
	out := make([]T, max)
	from := r.n - max
	for i := range out {
		out[i] = r.items[(r.start+from+i)%len(r.items)]
	}
	return out
}
