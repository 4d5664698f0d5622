package audio

// pcmRing accumulates whole frames. With a zero capacity it grows without
// bound; otherwise the oldest frames are overwritten once it is full.
type pcmRing struct {
	frameSize int
	capacity  int // bytes, multiple of frameSize; 0 = unbounded

	buf   []byte
	start int
	size  int
}

func newPCMRing(frameSize, maxFrames int) *pcmRing {
	r := &pcmRing{frameSize: frameSize}
	if maxFrames > 0 {
		r.capacity = maxFrames * frameSize
		r.buf = make([]byte, r.capacity)
	}
	return r
}

// write appends data (a whole number of frames) and returns how many frames
// were dropped to make room.
func (r *pcmRing) write(data []byte) (dropped int) {
	if len(data) == 0 {
		return 0
	}
	if r.capacity == 0 {
		r.buf = append(r.buf, data...)
		r.size = len(r.buf)
		return 0
	}

	if len(data) >= r.capacity {
		// Only the newest capacity bytes survive.
		dropped = (r.size + len(data) - r.capacity) / r.frameSize
		copy(r.buf, data[len(data)-r.capacity:])
		r.start = 0
		r.size = r.capacity
		return dropped
	}

	if over := r.size + len(data) - r.capacity; over > 0 {
		r.start = (r.start + over) % r.capacity
		r.size -= over
		dropped = over / r.frameSize
	}

	end := (r.start + r.size) % r.capacity
	n := copy(r.buf[end:], data)
	if n < len(data) {
		copy(r.buf, data[n:])
	}
	r.size += len(data)
	return dropped
}

func (r *pcmRing) frames() int { return r.size / r.frameSize }

// bytes returns the buffered frames in arrival order as a new slice.
func (r *pcmRing) bytes() []byte {
	out := make([]byte, r.size)
	if r.capacity == 0 {
		copy(out, r.buf)
		return out
	}
	n := copy(out, r.buf[r.start:min(r.start+r.size, r.capacity)])
	if n < r.size {
		copy(out[n:], r.buf[:r.size-n])
	}
	return out
}

func (r *pcmRing) reset() {
	r.start = 0
	r.size = 0
	if r.capacity == 0 {
		r.buf = nil
	}
}
