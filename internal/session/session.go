// Package session runs one round of the reaction game on the client device:
// handshake with the host, show the instruction, time the player's response
// with the scheduler and report the tick count back over the pulse link.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sweeney/gb-reaction/internal/display"
	"github.com/sweeney/gb-reaction/internal/input"
	"github.com/sweeney/gb-reaction/internal/pulse"
	"github.com/sweeney/gb-reaction/internal/sched"
	"github.com/sweeney/gb-reaction/internal/timer"
)

// Ready sentinels the host sends to start a game.
const (
	ReadyA byte = 50
	ReadyB byte = 100
)

// DefaultTaskPeriod is the period of the button-polling task in timer counts.
const DefaultTaskPeriod = 510

var (
	// ErrConnectionRejected is returned when the host's first byte is not a
	// ready sentinel.
	ErrConnectionRejected = errors.New("session: connection rejected")

	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = errors.New("session: already run")
)

// IsReady reports whether b is one of the ready sentinels.
func IsReady(b byte) bool {
	return b == ReadyA || b == ReadyB
}

// State is the session state.
type State int32

// Session states, in order.
const (
	StateAwaitingConnection State = iota
	StateAwaitingInstruction
	StateTiming
	StateReporting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingConnection:
		return "AWAITING_CONNECTION"
	case StateAwaitingInstruction:
		return "AWAITING_INSTRUCTION"
	case StateTiming:
		return "TIMING"
	case StateReporting:
		return "REPORTING"
	case StateDone:
		return "DONE"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Task states of the button-polling task.
const (
	taskInit     = 0
	taskChecking = 1
)

// Config wires a Session to its collaborators.
type Config struct {
	Link      *pulse.Link
	Scheduler *sched.Scheduler
	Timer     timer.Timer
	Pad       input.Pad

	// Display is optional; nil draws nothing.
	Display display.Display

	// Rate is the timer rate engaged while timing.
	Rate timer.Rate

	// TaskPeriod is the polling task period. Zero means DefaultTaskPeriod.
	TaskPeriod uint32

	// InterruptLimit overrides the scheduler's coalescing. Zero derives it
	// from TaskPeriod so that one dispatch pass covers one task period.
	InterruptLimit uint32

	// PollInterval is the wait between checks of the pressed latch.
	// Zero yields the processor instead.
	PollInterval time.Duration
}

// Result is the outcome of a completed session.
type Result struct {
	Instruction int
	Button      input.Button
	Ticks       uint32
}

// Session is a single-shot reaction round.
type Session struct {
	cfg  Config
	disp display.Display

	state         atomic.Int32
	want          atomic.Int32 // instruction code, -1 until received
	buttonPressed atomic.Bool
	ran           atomic.Bool
}

// New registers the polling task with the scheduler and the scheduler with
// the timer, and draws the idle buttons.
func New(cfg Config) (*Session, error) {
	if cfg.Link == nil || cfg.Scheduler == nil || cfg.Timer == nil || cfg.Pad == nil {
		return nil, errors.New("session: link, scheduler, timer and pad are required")
	}
	if cfg.TaskPeriod == 0 {
		cfg.TaskPeriod = DefaultTaskPeriod
	}

	s := &Session{cfg: cfg, disp: cfg.Display}
	if s.disp == nil {
		s.disp = display.Discard
	}
	s.want.Store(-1)

	if _, err := cfg.Scheduler.RegisterTask(cfg.TaskPeriod, s.tick); err != nil {
		return nil, fmt.Errorf("register task: %w", err)
	}
	limit := cfg.InterruptLimit
	if limit == 0 {
		limit = cfg.TaskPeriod / cfg.Scheduler.CounterWrap()
	}
	cfg.Scheduler.SetInterruptLimit(limit)
	cfg.Timer.RegisterCallback(cfg.Scheduler.OnHardwareTick)

	display.Setup(s.disp)
	return s, nil
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// ButtonPressed reports whether the player has pressed the instructed button.
func (s *Session) ButtonPressed() bool {
	return s.buttonPressed.Load()
}

// Run plays the round. It blocks on the link with no timeout of its own;
// bound it with ctx.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if !s.ran.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRun
	}
	link := s.cfg.Link

	s.setState(StateAwaitingConnection)
	log.Printf("waiting for game to start")
	b, err := link.ReceiveByte(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("await connection: %w", err)
	}
	if !IsReady(b) {
		log.Printf("unable to connect: host sent %d", b)
		return Result{}, fmt.Errorf("%w: got %d", ErrConnectionRejected, b)
	}
	log.Printf("game start")

	s.setState(StateAwaitingInstruction)
	code, err := link.ReceiveByte(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("await instruction: %w", err)
	}
	if err := link.SendBit(0); err != nil {
		return Result{}, fmt.Errorf("acknowledge instruction: %w", err)
	}
	btn, ok := input.ForInstruction(int(code))
	if !ok {
		log.Printf("instruction %d has no button, waiting anyway", code)
	} else {
		log.Printf("instruction %d: press %s", code, btn)
	}
	display.Prompt(s.disp, int(code))

	s.setState(StateTiming)
	s.buttonPressed.Store(false)
	s.cfg.Scheduler.ResetTimePassed()
	s.want.Store(int32(code))
	if err := s.cfg.Timer.Engage(s.cfg.Rate); err != nil {
		return Result{}, fmt.Errorf("engage timer: %w", err)
	}
	for !s.buttonPressed.Load() {
		if err := ctx.Err(); err != nil {
			s.cfg.Timer.Disengage()
			return Result{}, err
		}
		s.yield()
	}
	ticks := s.cfg.Scheduler.TimePassed()
	s.cfg.Timer.Disengage()

	s.setState(StateReporting)
	if err := s.cfg.Pad.WaitForRelease(ctx); err != nil {
		return Result{}, fmt.Errorf("wait for release: %w", err)
	}
	log.Printf("interrupts occurred: %d", ticks)
	log.Printf("sending result to host")
	if err := link.SendInteger(ticks); err != nil {
		return Result{}, fmt.Errorf("report result: %w", err)
	}
	if err := link.SendBit(1); err != nil {
		return Result{}, fmt.Errorf("terminate result: %w", err)
	}

	s.setState(StateDone)
	if err := link.SendBit(0); err != nil {
		return Result{}, fmt.Errorf("clear line: %w", err)
	}
	return Result{Instruction: int(code), Button: btn, Ticks: ticks}, nil
}

func (s *Session) yield() {
	if s.cfg.PollInterval > 0 {
		time.Sleep(s.cfg.PollInterval)
		return
	}
	runtime.Gosched()
}

// tick is the scheduled task. It runs from the timer callback.
func (s *Session) tick(state int) int {
	if state == taskInit {
		state = taskChecking
	}
	if state != taskChecking {
		return state
	}

	code := int(s.want.Load())
	want, ok := input.ForInstruction(code)
	if !ok || s.buttonPressed.Load() {
		return state
	}
	got, err := s.cfg.Pad.Current()
	if err != nil {
		log.Printf("pad read error: %v", err)
		return state
	}
	if got == want {
		display.Pressed(s.disp, code)
		s.buttonPressed.Store(true)
	}
	return state
}
