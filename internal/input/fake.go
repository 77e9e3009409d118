package input

import (
	"context"
	"sync"
	"time"
)

// FakePad is a test double whose buttons are set by the test.
type FakePad struct {
	mu      sync.Mutex
	current Button
	reads   int

	// ReadError, if set, is returned by Current.
	ReadError error

	// ReleaseOnWait makes WaitForRelease release every button and return
	// immediately.
	ReleaseOnWait bool
}

// NewFakePad creates a FakePad with nothing pressed.
func NewFakePad() *FakePad {
	return &FakePad{}
}

// Set presses exactly the buttons in b.
func (f *FakePad) Set(b Button) {
	f.mu.Lock()
	f.current = b
	f.mu.Unlock()
}

// Current returns the buttons set by the test.
func (f *FakePad) Current() (Button, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.ReadError != nil {
		return None, f.ReadError
	}
	return f.current, nil
}

// Reads returns how many times Current was called.
func (f *FakePad) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// WaitForRelease waits until the test releases every button.
func (f *FakePad) WaitForRelease(ctx context.Context) error {
	f.mu.Lock()
	if f.ReleaseOnWait {
		f.current = None
	}
	f.mu.Unlock()
	return PollRelease(ctx, f.peek, time.Millisecond)
}

func (f *FakePad) peek() (Button, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.ReadError
}
