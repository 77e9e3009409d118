// Package sched provides a fixed-priority scheduler over a small static set of
// periodic tasks, driven by a hardware timer callback.
//
// Priority is the registration index: task 0 is the highest. Tasks are
// dispatched from inside OnHardwareTick. Bookkeeping happens under a lock, but
// the tick functions themselves run outside it, so a nested OnHardwareTick
// (delivered while a tick function is still executing) may dispatch a strictly
// higher-priority task on top of the running one. A task is never dispatched
// while it is already running, nor while a task of equal or higher priority
// is running.
//
// A tick function that never returns starves every lower-priority task and
// stalls the dispatch pass that invoked it. This is not detected.
package sched

import (
	"errors"
	"math"
	"sync"
)

const (
	// MaxTasks is the capacity of the task table.
	MaxTasks = 8

	// IdleTask is the sentinel stored in unused slots of the running stack.
	// It compares lower in priority than every task index.
	IdleTask = 255

	// DefaultCounterWrap is how many counter increments one hardware tick
	// represents: the timer counter register wraps through 255 values per
	// overflow interrupt.
	DefaultCounterWrap = 255
)

var (
	// ErrTooManyTasks is returned when the task table is full.
	ErrTooManyTasks = errors.New("sched: task table full")

	// ErrNilTick is returned when registering a task without a tick function.
	ErrNilTick = errors.New("sched: nil tick function")
)

// TickFunc performs one activation of a task. It receives the state returned
// by the previous activation (0 on the first) and returns the next state.
type TickFunc func(state int) int

// Config configures a Scheduler.
type Config struct {
	// InterruptLimit is the number of hardware ticks coalesced into one
	// dispatch pass. Zero means 1.
	InterruptLimit uint32

	// CounterWrap is the number of timer counts credited to each task per
	// coalesced hardware tick. Zero means DefaultCounterWrap.
	CounterWrap uint32
}

type task struct {
	period  uint32
	elapsed uint32
	tick    TickFunc
	running bool
	state   int
}

// Scheduler dispatches registered tasks from OnHardwareTick.
// All methods are safe for concurrent use.
type Scheduler struct {
	mu sync.Mutex

	tasks []*task

	// runningTasks[0] is always IdleTask; runningTasks[currentTask] is the
	// highest-priority task currently executing.
	runningTasks [MaxTasks + 1]uint8
	currentTask  int

	interruptLimit uint32
	currInterrupts uint32
	counterWrap    uint32

	timePassed uint32
}

// New creates a Scheduler with no tasks.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		interruptLimit: cfg.InterruptLimit,
		counterWrap:    cfg.CounterWrap,
	}
	if s.interruptLimit == 0 {
		s.interruptLimit = 1
	}
	if s.counterWrap == 0 {
		s.counterWrap = DefaultCounterWrap
	}
	for i := range s.runningTasks {
		s.runningTasks[i] = IdleTask
	}
	return s
}

// RegisterTask adds a periodic task and returns its priority index.
// The task is ready on the first dispatch pass after registration.
func (s *Scheduler) RegisterTask(period uint32, fn TickFunc) (int, error) {
	if fn == nil {
		return 0, ErrNilTick
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) >= MaxTasks {
		return 0, ErrTooManyTasks
	}
	s.tasks = append(s.tasks, &task{
		period:  period,
		elapsed: period,
		tick:    fn,
	})
	return len(s.tasks) - 1, nil
}

// SetInterruptLimit changes the number of hardware ticks per dispatch pass.
// Zero is treated as 1.
func (s *Scheduler) SetInterruptLimit(limit uint32) {
	if limit == 0 {
		limit = 1
	}
	s.mu.Lock()
	s.interruptLimit = limit
	s.mu.Unlock()
}

// CounterWrap returns the per-tick counter credit the scheduler was built with.
func (s *Scheduler) CounterWrap() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counterWrap
}

// TimePassed returns the free-running hardware tick counter.
func (s *Scheduler) TimePassed() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timePassed
}

// ResetTimePassed zeroes the free-running hardware tick counter.
func (s *Scheduler) ResetTimePassed() {
	s.mu.Lock()
	s.timePassed = 0
	s.mu.Unlock()
}

// OnHardwareTick is the timer callback. Every call advances the measurement
// counter; every InterruptLimit-th call runs one dispatch pass.
//
// OnHardwareTick may be re-entered, from within a tick function or from
// another goroutine, while an earlier pass is still executing a task.
func (s *Scheduler) OnHardwareTick() {
	s.mu.Lock()
	s.timePassed++
	s.currInterrupts++
	if s.currInterrupts < s.interruptLimit {
		s.mu.Unlock()
		return
	}
	s.currInterrupts = 0
	n := len(s.tasks)
	credit := mulSat(s.counterWrap, s.interruptLimit)
	s.mu.Unlock()

	for i := 0; i < n; i++ {
		if fn, state, ok := s.claim(i); ok {
			s.release(i, fn(state))
		}
		s.accrue(i, credit)
	}
}

// claim checks whether task i is ready and, if so, marks it running and
// pushes it on the running stack in the same critical section.
func (s *Scheduler) claim(i int) (TickFunc, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks[i]
	if t.elapsed < t.period {
		return nil, 0, false
	}
	if int(s.runningTasks[s.currentTask]) <= i {
		return nil, 0, false
	}
	if t.running {
		return nil, 0, false
	}

	t.elapsed = 0
	t.running = true
	s.currentTask++
	s.runningTasks[s.currentTask] = uint8(i)
	return t.tick, t.state, true
}

func (s *Scheduler) release(i int, state int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks[i]
	t.state = state
	t.running = false
	s.pop(uint8(i))
}

// pop removes task i from the running stack. With nested delivery it is
// always the top entry; with concurrent delivery a lower-priority task may
// finish first, so the entry is searched for from the top down.
func (s *Scheduler) pop(i uint8) {
	for k := s.currentTask; k > 0; k-- {
		if s.runningTasks[k] != i {
			continue
		}
		copy(s.runningTasks[k:s.currentTask], s.runningTasks[k+1:s.currentTask+1])
		s.runningTasks[s.currentTask] = IdleTask
		s.currentTask--
		return
	}
}

func (s *Scheduler) accrue(i int, credit uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks[i]
	if t.elapsed > math.MaxUint32-credit {
		t.elapsed = math.MaxUint32
		return
	}
	t.elapsed += credit
}

// mulSat returns a*b, clamped to math.MaxUint32.
func mulSat(a, b uint32) uint32 {
	p := uint64(a) * uint64(b)
	if p > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(p)
}

// TaskInfo is a point-in-time view of one task.
type TaskInfo struct {
	Period      uint32
	ElapsedTime uint32
	Running     bool
	State       int
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	TimePassed     uint32
	CurrInterrupts uint32
	InterruptLimit uint32
	CurrentTask    int
	// RunningTasks holds the stack from the idle slot up to CurrentTask.
	RunningTasks []uint8
	Tasks        []TaskInfo
}

// Snapshot returns a copy of the scheduler state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TimePassed:     s.timePassed,
		CurrInterrupts: s.currInterrupts,
		InterruptLimit: s.interruptLimit,
		CurrentTask:    s.currentTask,
		RunningTasks:   append([]uint8(nil), s.runningTasks[:s.currentTask+1]...),
		Tasks:          make([]TaskInfo, len(s.tasks)),
	}
	for i, t := range s.tasks {
		snap.Tasks[i] = TaskInfo{
			Period:      t.period,
			ElapsedTime: t.elapsed,
			Running:     t.running,
			State:       t.state,
		}
	}
	return snap
}
