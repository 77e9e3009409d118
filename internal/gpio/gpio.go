// Package gpio wires the serial line and joypad to Linux GPIO character
// devices. The client side is a Transceiver clocked by the host and a Pad of
// eight buttons; the host side is a HostPort that drives the clock.
// Non-Linux builds compile but every constructor fails.
package gpio

import "errors"

// DefaultChip is the GPIO chip used when none is configured.
const DefaultChip = "gpiochip0"

// Client pin defaults (BCM numbering).
const (
	PinClock = 11 // external clock from the host
	PinSI    = 9  // serial in, host data
	PinSO    = 10 // serial out, client pulses
)

// DefaultPadPins are the button inputs in bit order: Right, Left, Up, Down,
// A, B, Select, Start.
var DefaultPadPins = [8]int{5, 6, 13, 19, 26, 16, 20, 21}

// Host pin defaults (BCM numbering).
const (
	PinHostData     = 17
	PinHostClock    = 27
	PinHostSerialIn = 22
)

// ErrUnsupported is returned by every constructor on non-Linux platforms.
var ErrUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// ClientConfig selects the client's serial pins.
type ClientConfig struct {
	Chip  string
	Clock int
	SI    int
	SO    int
}

// DefaultClientConfig returns the default client pins.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{Chip: DefaultChip, Clock: PinClock, SI: PinSI, SO: PinSO}
}

// HostConfig selects the host's pins.
type HostConfig struct {
	Chip     string
	Data     int
	Clock    int
	SerialIn int
}

// DefaultHostConfig returns the default host pins.
func DefaultHostConfig() HostConfig {
	return HostConfig{Chip: DefaultChip, Data: PinHostData, Clock: PinHostClock, SerialIn: PinHostSerialIn}
}

func chipOrDefault(chip string) string {
	if chip == "" {
		return DefaultChip
	}
	return chip
}
