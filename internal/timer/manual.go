package timer

import (
	"context"
	"sync"
)

// Manual is a Timer that only ticks when Fire is called. Used by tests.
type Manual struct {
	mu        sync.Mutex
	fn        func()
	engaged   bool
	rate      Rate
	engagedCh chan struct{}
	engages   int
}

// NewManual creates a disengaged Manual timer.
func NewManual() *Manual {
	return &Manual{engagedCh: make(chan struct{})}
}

// RegisterCallback sets the tick callback.
func (m *Manual) RegisterCallback(fn func()) {
	m.mu.Lock()
	m.fn = fn
	m.mu.Unlock()
}

// Engage marks the timer engaged.
func (m *Manual) Engage(rate Rate) error {
	if _, err := rate.Period(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fn == nil {
		return ErrNoCallback
	}
	m.rate = rate
	m.engages++
	if !m.engaged {
		m.engaged = true
		close(m.engagedCh)
	}
	return nil
}

// Disengage marks the timer disengaged.
func (m *Manual) Disengage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engaged {
		m.engaged = false
		m.engagedCh = make(chan struct{})
	}
}

// Engaged reports whether the timer is engaged.
func (m *Manual) Engaged() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engaged
}

// Rate returns the rate of the last successful Engage.
func (m *Manual) Rate() Rate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// Engages returns how many times Engage succeeded.
func (m *Manual) Engages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engages
}

// WaitEngaged blocks until the timer is engaged or ctx is done.
func (m *Manual) WaitEngaged(ctx context.Context) error {
	m.mu.Lock()
	ch := m.engagedCh
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fire delivers up to n ticks synchronously and returns how many were
// delivered. Delivery stops early if the timer is disengaged, including by
// the callback itself.
func (m *Manual) Fire(n int) int {
	fired := 0
	for i := 0; i < n; i++ {
		m.mu.Lock()
		fn, engaged := m.fn, m.engaged
		m.mu.Unlock()
		if !engaged {
			break
		}
		fn()
		fired++
	}
	return fired
}
