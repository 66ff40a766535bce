package status

// ring is a fixed-capacity FIFO of strings that drops the oldest entry when full.
type ring struct {
	buf   []string
	start int
	size  int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]string, capacity)}
}

func (r *ring) push(s string) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = s
		r.size++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) reset() {
	clear(r.buf)
	r.start, r.size = 0, 0
}

// items returns a copy, oldest first.
func (r *ring) items() []string {
	out := make([]string, r.size)
	for i := range r.size {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
