package audio

import "sync/atomic"

// ring is a fixed-capacity sample buffer with a single writer (the
// capture callback) and readers that only touch sample data while the
// stream is stopped. The write count is published atomically so the
// fill level can be peeked mid-capture.
type ring struct {
	buf []float32
	n   atomic.Int64 // total samples ever written, monotonic
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]float32, capacity)}
}

// push appends one sample, overwriting the oldest once full. Writer
// only; does not allocate.
func (r *ring) push(v float32) {
	n := r.n.Load()
	r.buf[n%int64(len(r.buf))] = v
	r.n.Store(n + 1)
}

// size reports how many samples are currently held. Safe from any
// goroutine.
func (r *ring) size() int {
	n := r.n.Load()
	if n > int64(len(r.buf)) {
		return len(r.buf)
	}
	return int(n)
}

// reset discards all samples. Must not race with push.
func (r *ring) reset() {
	r.n.Store(0)
}

// tail copies samples written since cursor into out without pausing
// the writer. Returns the advanced cursor and the count copied. A
// reader that falls behind is skipped ahead to the newest len(out)
// samples. Meant for lossy monitoring taps; reads may tear near a
// wrap.
func (r *ring) tail(cursor int64, out []float32) (int64, int) {
	n := r.n.Load()
	if len(out) == 0 || n <= cursor {
		return n, 0
	}
	capacity := int64(len(r.buf))
	if n-cursor > int64(len(out)) {
		cursor = n - int64(len(out))
	}
	if n-cursor > capacity {
		cursor = n - capacity
	}
	count := int(n - cursor)
	for i := 0; i < count; i++ {
		out[i] = r.buf[(cursor+int64(i))%capacity]
	}
	return n, count
}

// drain copies out the held samples oldest-first. Must not race with
// push; call only after the stream is stopped.
func (r *ring) drain() []float32 {
	n := r.n.Load()
	capacity := int64(len(r.buf))
	if n == 0 {
		return nil
	}
	if n <= capacity {
		out := make([]float32, n)
		copy(out, r.buf[:n])
		return out
	}
	// wrapped: oldest sample sits at the write position
	out := make([]float32, capacity)
	start := n % capacity
	copied := copy(out, r.buf[start:])
	copy(out[copied:], r.buf[:start])
	return out
}
