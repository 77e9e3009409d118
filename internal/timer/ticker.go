package timer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultNesting is the default number of callbacks a Ticker lets run at once.
const DefaultNesting = 4

// Ticker is a wall-clock Timer. Each tick runs the callback in its own
// goroutine, so a tick can be delivered while an earlier callback is still
// executing, the way a nested interrupt would be. At most maxNesting
// callbacks run at once; further ticks wait for a slot like a pending
// interrupt and are never dropped.
type Ticker struct {
	mu     sync.Mutex
	fn     func()
	sem    *semaphore.Weighted
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTicker creates a Ticker allowing maxNesting concurrent callbacks.
// Values below 1 mean DefaultNesting.
func NewTicker(maxNesting int) *Ticker {
	if maxNesting < 1 {
		maxNesting = DefaultNesting
	}
	return &Ticker{sem: semaphore.NewWeighted(int64(maxNesting))}
}

// RegisterCallback sets the tick callback.
func (t *Ticker) RegisterCallback(fn func()) {
	t.mu.Lock()
	t.fn = fn
	t.mu.Unlock()
}

// Engage starts delivering ticks. Engaging an engaged Ticker restarts it at
// the new rate.
func (t *Ticker) Engage(rate Rate) error {
	period, err := rate.Period()
	if err != nil {
		return err
	}

	t.Disengage()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fn == nil {
		return ErrNoCallback
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, period, t.fn, t.done)
	return nil
}

// Disengage stops delivery and waits for in-flight callbacks to return.
func (t *Ticker) Disengage() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Ticker) run(ctx context.Context, period time.Duration, fn func(), done chan struct{}) {
	defer close(done)

	var wg sync.WaitGroup
	defer wg.Wait()

	tk := time.NewTicker(period)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if err := t.sem.Acquire(ctx, 1); err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer t.sem.Release(1)
				fn()
			}()
		}
	}
}
