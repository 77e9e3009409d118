package host

import (
	"sync"
	"time"

	"github.com/sweeney/gb-reaction/internal/pulse"
)

// Segment is a stretch of the client's output held at one level.
type Segment struct {
	High bool
	For  time.Duration
}

// Train returns the waveform a client emits for SendInteger(n) followed by
// the end-of-message pulse. Each pulse is followed by gap low.
func Train(n uint32, gap time.Duration) []Segment {
	var out []Segment
	for _, sym := range pulse.Encode(n) {
		hold := pulse.DefaultLowHold
		if sym == pulse.One {
			hold = pulse.DefaultHighHold
		}
		out = append(out, Segment{High: true, For: hold}, Segment{For: gap})
	}
	return append(out, Segment{High: true, For: gap}, Segment{For: gap})
}

// FakePort is a Port that decodes the bytes clocked into it and plays
// scripted waveforms back on its input. Time comes from now, which must be
// advanced by the Host's sleep.
type FakePort struct {
	mu sync.Mutex

	now   func() time.Time
	data  bool
	clock bool
	shift byte
	nbits int

	bytes []byte

	wave   []Segment
	anchor time.Time

	// Respond, if set, is called with every completed byte. A non-nil
	// return replaces the waveform starting at that moment.
	Respond func(b byte) []Segment

	// ReadError, if set, is returned by Read.
	ReadError error
}

// NewFakePort creates a FakePort whose input is low.
func NewFakePort(now func() time.Time) *FakePort {
	return &FakePort{now: now, clock: true}
}

// Load replaces the input waveform, starting now.
func (p *FakePort) Load(wave ...Segment) {
	p.mu.Lock()
	p.wave = wave
	p.anchor = p.now()
	p.mu.Unlock()
}

// SetData records the data level.
func (p *FakePort) SetData(high bool) error {
	p.mu.Lock()
	p.data = high
	p.mu.Unlock()
	return nil
}

// SetClock shifts in the data level on a rising edge.
func (p *FakePort) SetClock(high bool) error {
	p.mu.Lock()
	rising := high && !p.clock
	p.clock = high
	if !rising {
		p.mu.Unlock()
		return nil
	}
	p.shift <<= 1
	if p.data {
		p.shift |= 1
	}
	p.nbits++
	if p.nbits < 8 {
		p.mu.Unlock()
		return nil
	}
	b := p.shift
	p.shift, p.nbits = 0, 0
	p.bytes = append(p.bytes, b)
	respond := p.Respond
	p.mu.Unlock()

	if respond != nil {
		if wave := respond(b); wave != nil {
			p.Load(wave...)
		}
	}
	return nil
}

// Read returns the waveform level at the current time. Past the end of the
// waveform the line is low.
func (p *FakePort) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ReadError != nil {
		return false, p.ReadError
	}
	at := p.now().Sub(p.anchor)
	for _, seg := range p.wave {
		if at < seg.For {
			return seg.High, nil
		}
		at -= seg.For
	}
	return false, nil
}

// Bytes returns every byte clocked in so far.
func (p *FakePort) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.bytes...)
}

// Clock reports the clock output level.
func (p *FakePort) Clock() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock
}
