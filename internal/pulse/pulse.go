// Package pulse implements the pulse-width serial link between the client
// device and the host.
//
// Integers are sent as a train of raised pulses whose hold time encodes the
// bit: a short pulse is a 1, a long pulse is a 0. Leading zero bits are not
// sent at all and there is no length prefix or checksum; the receiver ends a
// message on silence. Single bytes travel the other way through the
// underlying transceiver.
package pulse

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"runtime"
	"time"
)

// Default pulse hold times.
const (
	DefaultHighHold = 200 * time.Millisecond
	DefaultLowHold  = 400 * time.Millisecond
)

// Line levels written to the transceiver. The line follows the byte being
// shifted out, so an all-zero or all-one byte holds it low or high.
const (
	levelLow  byte = 0x00
	levelHigh byte = 0xFF
)

// Status is the state of the transceiver.
type Status int

// Transceiver states.
const (
	StatusIdle Status = iota
	StatusReceiving
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusReceiving:
		return "RECEIVING"
	case StatusReady:
		return "READY"
	case StatusError:
		return "ERROR"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Transceiver moves single bytes over the half-duplex line. One byte is in
// flight at a time.
type Transceiver interface {
	// Transmit shifts b out on the line.
	Transmit(b byte) error

	// RequestReceive arms the transceiver to receive one byte. Status reports
	// StatusReceiving until the byte has arrived.
	RequestReceive() error

	// Status reports the transceiver state.
	Status() Status

	// In returns the last received byte.
	In() byte
}

// ErrLink matches every *LinkError with errors.Is.
var ErrLink = errors.New("pulse: link error")

// LinkError reports a receive that did not end with the transceiver idle.
type LinkError struct {
	Status Status
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("pulse: receive ended with status %s", e.Status)
}

// Is reports whether target is ErrLink.
func (e *LinkError) Is(target error) bool {
	return target == ErrLink
}

// Link sends pulses and receives bytes over a Transceiver.
// Every operation blocks the caller until it completes.
type Link struct {
	trx      Transceiver
	highHold time.Duration
	lowHold  time.Duration
	sleep    func(time.Duration)
	poll     time.Duration
}

// Option configures a Link.
type Option func(*Link)

// WithHolds sets the pulse hold times for a 1 and a 0.
func WithHolds(high, low time.Duration) Option {
	return func(l *Link) {
		l.highHold = high
		l.lowHold = low
	}
}

// WithSleep replaces time.Sleep for pulse holds.
func WithSleep(sleep func(time.Duration)) Option {
	return func(l *Link) {
		l.sleep = sleep
	}
}

// WithPollInterval sets the wait between transceiver status polls.
// Zero yields the processor between polls instead of sleeping.
func WithPollInterval(d time.Duration) Option {
	return func(l *Link) {
		l.poll = d
	}
}

// NewLink creates a Link over trx.
func NewLink(trx Transceiver, opts ...Option) *Link {
	l := &Link{
		trx:      trx,
		highHold: DefaultHighHold,
		lowHold:  DefaultLowHold,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// hold returns the hold time the link uses for sym, or 0 for Noise.
func (l *Link) hold(sym Symbol) time.Duration {
	switch sym {
	case One:
		return l.highHold
	case Zero:
		return l.lowHold
	}
	return 0
}

// SendBit drives the line low for 0 and high for any other value.
func (l *Link) SendBit(v int) error {
	b := levelLow
	if v != 0 {
		b = levelHigh
	}
	if err := l.trx.Transmit(b); err != nil {
		return fmt.Errorf("send bit %d: %w", v, err)
	}
	return nil
}

// SendHighBit sends a logical 1: a short pulse.
func (l *Link) SendHighBit() error {
	return l.pulse(l.hold(One))
}

// SendLowBit sends a logical 0: a long pulse.
func (l *Link) SendLowBit() error {
	return l.pulse(l.hold(Zero))
}

func (l *Link) pulse(hold time.Duration) error {
	if err := l.SendBit(1); err != nil {
		return err
	}
	l.sleep(hold)
	return l.SendBit(0)
}

// SendInteger sends n most significant bit first, starting at its highest
// set bit. Zero sends nothing.
func (l *Link) SendInteger(n uint32) error {
	for _, sym := range Encode(n) {
		var err error
		if sym == One {
			err = l.SendHighBit()
		} else {
			err = l.SendLowBit()
		}
		if err != nil {
			return fmt.Errorf("send integer %d: %w", n, err)
		}
	}
	return nil
}

// ReceiveByte requests one byte and polls the transceiver until it stops
// receiving. It has no timeout of its own and will wait forever for a silent
// peer unless ctx carries a deadline.
func (l *Link) ReceiveByte(ctx context.Context) (byte, error) {
	if err := l.trx.RequestReceive(); err != nil {
		return 0, fmt.Errorf("request receive: %w", err)
	}

	st := l.trx.Status()
	for st == StatusReceiving {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		l.yield()
		st = l.trx.Status()
	}
	if st != StatusIdle {
		return 0, &LinkError{Status: st}
	}
	return l.trx.In(), nil
}

func (l *Link) yield() {
	if l.poll > 0 {
		time.Sleep(l.poll)
		return
	}
	runtime.Gosched()
}

// Symbol is one decoded pulse.
type Symbol uint8

// Pulse symbols.
const (
	Zero Symbol = iota
	One
	Noise
)

func (s Symbol) String() string {
	switch s {
	case Zero:
		return "0"
	case One:
		return "1"
	case Noise:
		return "~"
	}
	return fmt.Sprintf("Symbol(%d)", uint8(s))
}

// Encode returns the symbols SendInteger emits for n.
func Encode(n uint32) []Symbol {
	if n == 0 {
		return nil
	}
	width := bits.Len32(n)
	out := make([]Symbol, 0, width)
	for c := width - 1; c >= 0; c-- {
		if n>>c&1 == 1 {
			out = append(out, One)
		} else {
			out = append(out, Zero)
		}
	}
	return out
}

// Decode folds symbols into an integer, most significant first.
// Noise is skipped. Bits beyond 32 shift the oldest out.
func Decode(syms []Symbol) uint32 {
	var n uint32
	for _, s := range syms {
		switch s {
		case One:
			n = n<<1 | 1
		case Zero:
			n <<= 1
		}
	}
	return n
}

// Classifier maps a measured pulse width to a symbol.
type Classifier struct {
	// MinPulse and MaxPulse bound an accepted pulse; anything outside is Noise.
	MinPulse time.Duration
	MaxPulse time.Duration

	// Split separates short (One) from long (Zero) pulses.
	Split time.Duration
}

// DefaultClassifier matches the default hold times. The split sits halfway
// between them so a long pulse measured to the exact hold is still a 0.
func DefaultClassifier() Classifier {
	return Classifier{
		MinPulse: 150 * time.Millisecond,
		Split:    300 * time.Millisecond,
		MaxPulse: time.Second,
	}
}

// Classify returns the symbol for a pulse held high for d.
func (c Classifier) Classify(d time.Duration) Symbol {
	if d < c.MinPulse || d > c.MaxPulse {
		return Noise
	}
	if d >= c.Split {
		return Zero
	}
	return One
}
