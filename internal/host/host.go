// Package host drives the client device from the other end of the serial
// line: it clocks bytes out, times the client's pulses and runs a game round.
package host

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/rs/xid"

	"github.com/sweeney/gb-reaction/internal/input"
	"github.com/sweeney/gb-reaction/internal/pulse"
)

// Port is the host's view of the line: a data and a clock output and the
// client's serial output as input.
type Port interface {
	SetData(high bool) error
	SetClock(high bool) error
	Read() (bool, error)
}

// Wire timing.
const (
	ByteLead   = 200 * time.Millisecond
	HalfBit    = 61 * time.Microsecond
	ByteSettle = 200 * time.Microsecond
	BitTimeout = 5 * time.Second
)

// Game constants.
const (
	ReadySentinel  byte = 100
	TicksPerSecond      = 256
	MaxDelay            = 15 * time.Second
)

// DefaultPollInterval is the wait between reads of the serial input.
const DefaultPollInterval = 100 * time.Microsecond

// delayStep is the longest uninterrupted sleep of the pre-instruction delay.
const delayStep = 100 * time.Millisecond

// Result is one completed round.
type Result struct {
	ID          xid.ID
	Instruction int
	Button      input.Button
	Ticks       uint32
	Reaction    time.Duration
	Timestamp   time.Time
}

// Seconds returns the reaction time in seconds.
func (r Result) Seconds() float64 {
	return r.Reaction.Seconds()
}

// Reaction converts a tick count to a duration.
func Reaction(ticks uint32) time.Duration {
	return time.Duration(ticks) * time.Second / TicksPerSecond
}

// CheckReport summarises a link check.
type CheckReport struct {
	Total  int
	Passed int
}

// OK reports whether every exchange passed.
func (r CheckReport) OK() bool {
	return r.Total > 0 && r.Passed == r.Total
}

// Option configures a Host.
type Option func(*Host)

// WithClock replaces the wall clock and time.Sleep.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(h *Host) {
		h.now = now
		h.sleep = sleep
	}
}

// WithRand sets the source of delays and instructions.
func WithRand(r *rand.Rand) Option {
	return func(h *Host) { h.rand = r }
}

// WithClassifier sets the pulse classifier.
func WithClassifier(c pulse.Classifier) Option {
	return func(h *Host) { h.classifier = c }
}

// WithBitTimeout sets how long the host waits for a pulse before it treats
// the message as finished.
func WithBitTimeout(d time.Duration) Option {
	return func(h *Host) { h.bitTimeout = d }
}

// WithMaxDelay bounds the random delay before the instruction is sent.
func WithMaxDelay(d time.Duration) Option {
	return func(h *Host) { h.maxDelay = d }
}

// WithPollInterval sets the wait between input reads.
func WithPollInterval(d time.Duration) Option {
	return func(h *Host) { h.poll = d }
}

// Host runs rounds against one client. Not safe for concurrent use.
type Host struct {
	port       Port
	classifier pulse.Classifier
	bitTimeout time.Duration
	maxDelay   time.Duration
	poll       time.Duration
	now        func() time.Time
	sleep      func(time.Duration)
	rand       *rand.Rand
}

// New creates a Host on port.
func New(port Port, opts ...Option) *Host {
	h := &Host{
		port:       port,
		classifier: pulse.DefaultClassifier(),
		bitTimeout: BitTimeout,
		maxDelay:   MaxDelay,
		poll:       DefaultPollInterval,
		now:        time.Now,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.rand == nil {
		h.rand = rand.New(rand.NewSource(h.now().UnixNano()))
	}
	return h
}

// Idle puts the outputs in their resting levels: clock high, data low.
func (h *Host) Idle() error {
	if err := h.port.SetData(false); err != nil {
		return fmt.Errorf("idle data: %w", err)
	}
	if err := h.port.SetClock(true); err != nil {
		return fmt.Errorf("idle clock: %w", err)
	}
	return nil
}

// TransferByte clocks b out most significant bit first. The client samples
// each bit on the rising clock edge.
func (h *Host) TransferByte(b byte) error {
	h.sleep(ByteLead)
	for i := 7; i >= 0; i-- {
		if err := h.port.SetData(b>>i&1 == 1); err != nil {
			return fmt.Errorf("transfer %d: %w", b, err)
		}
		if err := h.port.SetClock(false); err != nil {
			return fmt.Errorf("transfer %d: %w", b, err)
		}
		h.sleep(HalfBit)
		if err := h.port.SetClock(true); err != nil {
			return fmt.Errorf("transfer %d: %w", b, err)
		}
		h.sleep(HalfBit)
	}
	h.sleep(ByteSettle)
	return nil
}

// ReceivePulse waits up to the bit timeout for the line to rise, then times
// the high phase and classifies it. ok is false when nothing arrived.
// A line stuck high for longer than the bit timeout is reported as Noise.
func (h *Host) ReceivePulse(ctx context.Context) (sym pulse.Symbol, width time.Duration, ok bool, err error) {
	deadline := h.now().Add(h.bitTimeout)
	for {
		high, err := h.read(ctx)
		if err != nil {
			return pulse.Noise, 0, false, err
		}
		if high {
			break
		}
		if !h.now().Before(deadline) {
			return pulse.Noise, 0, false, nil
		}
		h.sleep(h.poll)
	}

	start := h.now()
	for {
		h.sleep(h.poll)
		high, err := h.read(ctx)
		if err != nil {
			return pulse.Noise, 0, false, err
		}
		width = h.now().Sub(start)
		if !high {
			return h.classifier.Classify(width), width, true, nil
		}
		if width > h.bitTimeout {
			return pulse.Noise, width, true, nil
		}
	}
}

// ReceiveInteger collects pulses until the line stays quiet for the bit
// timeout and decodes them. The raw symbols are returned for logging.
func (h *Host) ReceiveInteger(ctx context.Context) (uint32, []pulse.Symbol, error) {
	var syms []pulse.Symbol
	for {
		sym, _, ok, err := h.ReceivePulse(ctx)
		if err != nil {
			return 0, syms, err
		}
		if !ok {
			return pulse.Decode(syms), syms, nil
		}
		syms = append(syms, sym)
	}
}

// WaitForLine waits with no timeout of its own for the line to go high.
func (h *Host) WaitForLine(ctx context.Context) error {
	for {
		high, err := h.read(ctx)
		if err != nil {
			return err
		}
		if high {
			return nil
		}
		h.sleep(h.poll)
	}
}

func (h *Host) read(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	high, err := h.port.Read()
	if err != nil {
		return false, fmt.Errorf("read line: %w", err)
	}
	return high, nil
}

// Play runs one round: start the game, wait a random delay, send a random
// instruction and decode the client's reaction time.
func (h *Host) Play(ctx context.Context) (Result, error) {
	if err := h.Idle(); err != nil {
		return Result{}, err
	}
	if _, err := h.port.Read(); err != nil {
		return Result{}, fmt.Errorf("flush line: %w", err)
	}
	if err := h.TransferByte(ReadySentinel); err != nil {
		return Result{}, fmt.Errorf("start game: %w", err)
	}

	if h.maxDelay > 0 {
		if err := h.wait(ctx, time.Duration(h.rand.Int63n(int64(h.maxDelay)))); err != nil {
			return Result{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	instr := h.rand.Intn(input.NumInstructions)
	btn, _ := input.ForInstruction(instr)
	log.Printf("sending instruction %d (%s)", instr, btn)
	if err := h.TransferByte(byte(instr)); err != nil {
		return Result{}, fmt.Errorf("send instruction: %w", err)
	}

	if err := h.WaitForLine(ctx); err != nil {
		return Result{}, fmt.Errorf("wait for result: %w", err)
	}
	ticks, syms, err := h.ReceiveInteger(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("receive result: %w", err)
	}

	res := Result{
		ID:          xid.NewWithTime(h.now()),
		Instruction: instr,
		Button:      btn,
		Ticks:       ticks,
		Reaction:    Reaction(ticks),
		Timestamp:   h.now(),
	}
	log.Printf("round %s: %d ticks (%.3fs) from %d pulses", res.ID, ticks, res.Seconds(), len(syms))
	return res, nil
}

// wait sleeps for d in steps of at most delayStep, returning early with the
// context's error once ctx is done.
func (h *Host) wait(ctx context.Context, d time.Duration) error {
	for d > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		step := min(d, delayStep)
		h.sleep(step)
		d -= step
	}
	return ctx.Err()
}

// SendCheck sends the bytes 0..n-1 and expects a short pulse back for each.
// It pairs with the client's receive check.
func (h *Host) SendCheck(ctx context.Context, n int) (CheckReport, error) {
	report := CheckReport{Total: n}
	if err := h.Idle(); err != nil {
		return report, err
	}
	for i := 0; i < n; i++ {
		if err := h.TransferByte(byte(i)); err != nil {
			return report, err
		}
		sym, width, ok, err := h.ReceivePulse(ctx)
		if err != nil {
			return report, err
		}
		if ok && sym == pulse.One {
			log.Printf("send check %d: passed", i)
			report.Passed++
		} else {
			log.Printf("send check %d: FAILED (pulse %s, %v)", i, sym, width)
		}
	}
	return report, nil
}

// ReceiveCheck expects the integers 0..n-1 from the client's send check and
// answers each with 1 on a match and 0 otherwise.
func (h *Host) ReceiveCheck(ctx context.Context, n int) (CheckReport, error) {
	report := CheckReport{Total: n}
	if err := h.Idle(); err != nil {
		return report, err
	}
	for i := 0; i < n; i++ {
		v, syms, err := h.ReceiveInteger(ctx)
		if err != nil {
			return report, err
		}
		reply := byte(0)
		if v == uint32(i) {
			log.Printf("receive check %d: passed", i)
			report.Passed++
			reply = 1
		} else {
			log.Printf("receive check %d: FAILED (got %d from %v)", i, v, syms)
		}
		if err := h.TransferByte(reply); err != nil {
			return report, err
		}
	}
	return report, nil
}
