package utils

// Ring is a fixed-capacity FIFO buffer. Pushing onto a full ring overwrites
// the oldest element. Not safe for concurrent use.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v and reports whether an old element was dropped.
func (r *Ring[T]) Push(v T) bool {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return false
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return true
}

func (r *Ring[T]) Len() int { return r.size }
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Items returns a copy, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Newest returns up to n elements, newest first. n <= 0 means all.
func (r *Ring[T]) Newest(n int) []T {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+r.size-1-i)%len(r.buf)]
	}
	return out
}

// Update applies fn to the first element, newest first, for which match
// returns true. It reports whether one was found.
func (r *Ring[T]) Update(match func(T) bool, fn func(*T)) bool {
	for i := r.size - 1; i >= 0; i-- {
		idx := (r.start + i) % len(r.buf)
		if match(r.buf[idx]) {
			fn(&r.buf[idx])
			return true
		}
	}
	return false
}
