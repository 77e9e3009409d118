package pulse

import (
	"errors"
	"sync"
	"time"
)

// Rx is one scripted receive for FakeTransceiver.
type Rx struct {
	// Byte is the value delivered when the receive completes.
	Byte byte

	// Status is the final status. The zero value is StatusIdle (success).
	Status Status

	// Polls is how many Status calls report StatusReceiving first.
	Polls int
}

// Transmission is one byte passed to Transmit.
type Transmission struct {
	Byte byte
	At   time.Time
}

// FakeTransceiver is a test double that serves scripted receives and records
// transmitted bytes. Once the script is exhausted a receive never completes.
type FakeTransceiver struct {
	mu sync.Mutex

	script  []Rx
	current *Rx
	polls   int
	in      byte
	status  Status

	transmitted []Transmission
	now         func() time.Time

	// TransmitError, if set, is returned by Transmit.
	TransmitError error
}

// NewFakeTransceiver creates a FakeTransceiver. Transmissions are stamped
// with now, or time.Now if now is nil.
func NewFakeTransceiver(now func() time.Time, script ...Rx) *FakeTransceiver {
	if now == nil {
		now = time.Now
	}
	return &FakeTransceiver{script: script, now: now}
}

// Push appends receives to the script.
func (f *FakeTransceiver) Push(rx ...Rx) {
	f.mu.Lock()
	f.script = append(f.script, rx...)
	f.mu.Unlock()
}

// Transmit records b.
func (f *FakeTransceiver) Transmit(b byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TransmitError != nil {
		return f.TransmitError
	}
	f.transmitted = append(f.transmitted, Transmission{Byte: b, At: f.now()})
	return nil
}

// RequestReceive arms the next scripted receive.
func (f *FakeTransceiver) RequestReceive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusReceiving {
		return errors.New("fake: receive already in flight")
	}
	f.status = StatusReceiving
	f.current = nil
	f.polls = 0
	return nil
}

// Status reports StatusReceiving until the armed receive completes.
func (f *FakeTransceiver) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusReceiving {
		return f.status
	}
	if f.current == nil {
		if len(f.script) == 0 {
			return StatusReceiving
		}
		rx := f.script[0]
		f.script = f.script[1:]
		f.current = &rx
	}
	if f.polls < f.current.Polls {
		f.polls++
		return StatusReceiving
	}
	f.in = f.current.Byte
	f.status = f.current.Status
	f.current = nil
	return f.status
}

// In returns the last received byte.
func (f *FakeTransceiver) In() byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.in
}

// Transmitted returns a copy of every recorded transmission.
func (f *FakeTransceiver) Transmitted() []Transmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Transmission(nil), f.transmitted...)
}

// Bytes returns the transmitted bytes in order.
func (f *FakeTransceiver) Bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.transmitted))
	for i, tx := range f.transmitted {
		out[i] = tx.Byte
	}
	return out
}

// Pulses returns the width of every completed high phase on the line.
func (f *FakeTransceiver) Pulses() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []time.Duration
	var rise time.Time
	high := false
	for _, tx := range f.transmitted {
		level := tx.Byte&0x80 != 0
		switch {
		case level && !high:
			rise = tx.At
		case !level && high:
			out = append(out, tx.At.Sub(rise))
		}
		high = level
	}
	return out
}

// Reset clears the script and recorded transmissions.
func (f *FakeTransceiver) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = nil
	f.current = nil
	f.polls = 0
	f.in = 0
	f.status = StatusIdle
	f.transmitted = nil
	f.TransmitError = nil
}

// FakeClock is a manually advanced clock. Sleep advances it instead of
// blocking.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFakeClock creates a FakeClock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{t: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Sleep advances the clock by d.
func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
