package classify

import "fmt"

// Reorderer restores window order for results that complete out of order.
// It buffers at most Window results; when the buffer is full the missing
// sequence numbers are given up on so the stream keeps moving.
type Reorderer struct {
	window  int
	next    uint64
	pending map[uint64]Result
	skipped map[uint64]bool
}

// NewReorderer creates a reorderer that holds up to window results.
func NewReorderer(window int) *Reorderer {
	if window <= 0 {
		window = 16
	}
	return &Reorderer{
		window:  window,
		pending: make(map[uint64]Result),
		skipped: make(map[uint64]bool),
	}
}

// Add accepts a result and returns every result now deliverable in order.
// A result for an already passed sequence returns ErrLateResult.
func (r *Reorderer) Add(res Result) ([]Result, error) {
	if res.Seq < r.next {
		return nil, fmt.Errorf("seq %d, expected >= %d: %w", res.Seq, r.next, ErrLateResult)
	}
	if _, dup := r.pending[res.Seq]; dup {
		return nil, fmt.Errorf("seq %d delivered twice: %w", res.Seq, ErrLateResult)
	}
	r.pending[res.Seq] = res

	out := r.drain()
	for len(r.pending) > r.window {
		r.advance()
		out = append(out, r.drain()...)
	}
	return out, nil
}

// Skip marks seq as never arriving, e.g. a window dropped under backpressure.
func (r *Reorderer) Skip(seq uint64) []Result {
	if seq < r.next {
		return nil
	}
	r.skipped[seq] = true
	return r.drain()
}

// Flush returns every buffered result in order, giving up on gaps.
func (r *Reorderer) Flush() []Result {
	var out []Result
	for len(r.pending) > 0 {
		r.advance()
		out = append(out, r.drain()...)
	}
	clear(r.skipped)
	return out
}

// Next returns the next expected sequence number.
func (r *Reorderer) Next() uint64 {
	return r.next
}

// drain releases the contiguous run starting at next.
func (r *Reorderer) drain() []Result {
	var out []Result
	for {
		if r.skipped[r.next] {
			delete(r.skipped, r.next)
			r.next++
			continue
		}
		res, ok := r.pending[r.next]
		if !ok {
			return out
		}
		delete(r.pending, r.next)
		out = append(out, res)
		r.next++
	}
}

// advance moves next to the lowest buffered sequence.
func (r *Reorderer) advance() {
	first := true
	var lowest uint64
	for seq := range r.pending {
		if first || seq < lowest {
			lowest, first = seq, false
		}
	}
	if first {
		return
	}
	for seq := range r.skipped {
		if seq < lowest {
			delete(r.skipped, seq)
		}
	}
	r.next = lowest
}
