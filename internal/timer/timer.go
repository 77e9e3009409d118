// Package timer provides the hardware timer capability: a source of periodic
// ticks delivered to a registered callback while engaged.
package timer

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoCallback is returned by Engage before RegisterCallback was called.
	ErrNoCallback = errors.New("timer: no callback registered")

	// ErrInvalidRate is returned for a rate selector outside 0-3.
	ErrInvalidRate = errors.New("timer: invalid rate")
)

// Timer invokes a registered callback once per tick while engaged.
type Timer interface {
	// RegisterCallback sets the tick callback. It must be called before Engage.
	RegisterCallback(fn func())

	// Engage starts tick delivery at the given rate.
	Engage(rate Rate) error

	// Disengage stops tick delivery. It must not be called from the callback.
	Disengage()
}

// Rate selects the tick rate. The values match the input clock selector of
// the original timer: the counter runs at 4096, 262144, 65536 or 16384 Hz and
// raises one tick on every 256-count overflow.
type Rate uint8

// Rate selectors.
const (
	Rate16Hz   Rate = 0
	Rate1024Hz Rate = 1
	Rate256Hz  Rate = 2
	Rate64Hz   Rate = 3
)

// DefaultRate is the rate the reaction game runs at.
const DefaultRate = Rate256Hz

var counterHz = [...]int{4096, 262144, 65536, 16384}

const counterSpan = 256

// Hz returns the tick frequency, or 0 for an invalid selector.
func (r Rate) Hz() int {
	if int(r) >= len(counterHz) {
		return 0
	}
	return counterHz[r] / counterSpan
}

// Period returns the time between two ticks.
func (r Rate) Period() (time.Duration, error) {
	hz := r.Hz()
	if hz == 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRate, r)
	}
	return time.Second / time.Duration(hz), nil
}

func (r Rate) String() string {
	if hz := r.Hz(); hz != 0 {
		return fmt.Sprintf("%dHz", hz)
	}
	return fmt.Sprintf("Rate(%d)", uint8(r))
}
