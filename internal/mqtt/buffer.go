package mqtt

import "log"

// bufferedMsg is a serialized message held for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that keeps the newest messages while
// the broker is unreachable. Not safe for concurrent use.
type ringBuffer struct {
	buf      []bufferedMsg
	head     int // next write position
	count    int
	dropped  int  // total messages overwritten
	overflow bool // logged since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	n := len(r.buf)
	r.buf[r.head] = msg
	r.head = (r.head + 1) % n
	if r.count < n {
		r.count++
		return
	}
	// Full: the write above replaced the oldest entry.
	r.dropped++
	if !r.overflow {
		log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", n)
		r.overflow = true
	}
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	n := len(r.buf)
	out := make([]bufferedMsg, r.count)
	start := (r.head - r.count + n) % n
	for i := range out {
		out[i] = r.buf[(start+i)%n]
	}
	r.count = 0
	r.head = 0
	r.overflow = false
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
