package gpio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sweeney/gb-reaction/internal/input"
	"github.com/sweeney/gb-reaction/internal/pulse"
)

// ShiftTime is how long one byte takes to clock out at 8192 Hz. Transmit
// holds the line for at least this long.
const ShiftTime = 977 * time.Microsecond

// shifter assembles a byte from bits sampled on the external clock. It is
// fed from the clock line's edge handler and read by the link's poll loop.
type shifter struct {
	mu     sync.Mutex
	status pulse.Status
	in     byte
	shift  byte
	nbits  int
}

func (s *shifter) arm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == pulse.StatusReceiving {
		return errors.New("gpio: receive already in progress")
	}
	s.status = pulse.StatusReceiving
	s.shift, s.nbits = 0, 0
	return nil
}

// edge shifts in one bit. Edges while not receiving are dropped.
func (s *shifter) edge(bit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != pulse.StatusReceiving {
		return
	}
	s.shift <<= 1
	if bit {
		s.shift |= 1
	}
	s.nbits++
	if s.nbits == 8 {
		s.in = s.shift
		s.status = pulse.StatusIdle
	}
}

// fail ends an in-flight receive with StatusError.
func (s *shifter) fail() {
	s.mu.Lock()
	if s.status == pulse.StatusReceiving {
		s.status = pulse.StatusError
	}
	s.mu.Unlock()
}

func (s *shifter) Status() pulse.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *shifter) In() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in
}

// outLevel is the line level while b is clocked out.
func outLevel(b byte) int {
	return int(b >> 7)
}

// buttonsFromValues maps logical (active high) pad line values, in
// DefaultPadPins order, to a button set.
func buttonsFromValues(values []int) input.Button {
	var b input.Button
	for i, v := range values {
		if i >= 8 {
			break
		}
		if v != 0 {
			b |= input.Button(1 << i)
		}
	}
	return b
}

// ParsePins parses a comma separated list of eight pad pin offsets.
func ParsePins(s string) ([8]int, error) {
	var pins [8]int
	parts := strings.Split(s, ",")
	if len(parts) != len(pins) {
		return pins, fmt.Errorf("need %d pins, got %d", len(pins), len(parts))
	}
	seen := make(map[int]bool)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return pins, fmt.Errorf("pin %d: %w", i, err)
		}
		if n < 0 {
			return pins, fmt.Errorf("pin %d: negative offset %d", i, n)
		}
		if seen[n] {
			return pins, fmt.Errorf("pin %d: offset %d used twice", i, n)
		}
		seen[n] = true
		pins[i] = n
	}
	return pins, nil
}

// FormatPins is the inverse of ParsePins.
func FormatPins(pins [8]int) string {
	parts := make([]string, len(pins))
	for i, p := range pins {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
