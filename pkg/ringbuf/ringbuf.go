package ringbuf

// Ringbuf keeps the last n values added to it.
type Ringbuf[T any] struct {
	buf []T
	p   int
	s   int
}

func NewRingbuf[T any](size int) *Ringbuf[T] {
	return &Ringbuf[T]{
		s: size,
	}
}

func (r *Ringbuf[T]) Add(v T) {
	if r.s <= 0 {
		return
	}
	if len(r.buf) < r.s {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.p] = v
	r.p = (r.p + 1) % r.s
}

// Len returns the number of values held, at most the size.
func (r *Ringbuf[T]) Len() int {
	return len(r.buf)
}

// Values returns the held values from oldest to newest.
func (r *Ringbuf[T]) Values() []T {
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.p:]...)
	return append(out, r.buf[:r.p]...)
}

// Mean returns the average of the held values, NaN when empty.
func Mean[T ~int | ~float64](r *Ringbuf[T]) float64 {
	var sum float64
	for _, v := range r.buf {
		sum += float64(v)
	}
	return sum / float64(len(r.buf))
}
