package simulation

// priceRing is a fixed-capacity FIFO of prices; the oldest sample is evicted first.
type priceRing struct {
	buf   []float64
	start int
	size  int
}

func newPriceRing(capacity int) *priceRing {
	if capacity < 1 {
		capacity = 1
	}
	return &priceRing{buf: make([]float64, capacity)}
}

func (r *priceRing) push(p float64) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = p
		r.size++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

func (r *priceRing) reset() {
	r.start = 0
	r.size = 0
}

func (r *priceRing) len() int {
	return r.size
}

// last copies the most recent n samples in chronological order.
func (r *priceRing) last(n int) []float64 {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	offset := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+offset+i)%len(r.buf)]
	}
	return out
}

func (r *priceRing) all() []float64 {
	return r.last(r.size)
}
