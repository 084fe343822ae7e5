package detect

// SlidingWindow is a bounded FIFO of recent preprocessed chunks. When a push
// exceeds capacity the oldest chunk is evicted, so the window always holds
// the most recent capacity chunks in arrival order.
//
// Not safe for concurrent use: the capture worker is the sole pusher and
// reader, so push and snapshot never execute concurrently by design.
// Concurrent implementations must serialise access externally.
type SlidingWindow struct {
	chunks   [][]byte
	capacity int
}

// NewSlidingWindow creates a window holding at most capacity chunks.
// A capacity below one is treated as one.
func NewSlidingWindow(capacity int) *SlidingWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &SlidingWindow{
		chunks:   make([][]byte, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a chunk, evicting the oldest when the window is at capacity.
func (w *SlidingWindow) Push(chunk []byte) {
	if len(w.chunks) == w.capacity {
		// Shift instead of reslicing so evicted chunks do not pin the
		// backing array.
		copy(w.chunks, w.chunks[1:])
		w.chunks[len(w.chunks)-1] = chunk
		return
	}
	w.chunks = append(w.chunks, chunk)
}

// Full reports whether the window has reached capacity.
func (w *SlidingWindow) Full() bool {
	return len(w.chunks) == w.capacity
}

// Len returns the number of buffered chunks.
func (w *SlidingWindow) Len() int {
	return len(w.chunks)
}

// Snapshot returns the byte concatenation of all buffered chunks, oldest
// first, without mutating the window.
func (w *SlidingWindow) Snapshot() []byte {
	total := 0
	for _, c := range w.chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range w.chunks {
		out = append(out, c...)
	}
	return out
}

// Reset discards all buffered chunks.
func (w *SlidingWindow) Reset() {
	w.chunks = w.chunks[:0]
}
