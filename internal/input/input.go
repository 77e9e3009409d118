// Package input provides the joypad capability and the mapping from host
// instruction codes to buttons.
package input

import (
	"context"
	"strings"
	"time"
)

// Button is a set of pressed buttons.
type Button uint8

// Buttons, in joypad register bit order.
const (
	None   Button = 0
	Right  Button = 0x01
	Left   Button = 0x02
	Up     Button = 0x04
	Down   Button = 0x08
	A      Button = 0x10
	B      Button = 0x20
	Select Button = 0x40
	Start  Button = 0x80
)

var buttonNames = []struct {
	b    Button
	name string
}{
	{Right, "RIGHT"},
	{Left, "LEFT"},
	{Up, "UP"},
	{Down, "DOWN"},
	{A, "A"},
	{B, "B"},
	{Select, "SELECT"},
	{Start, "START"},
}

func (b Button) String() string {
	if b == None {
		return "NONE"
	}
	var parts []string
	for _, bn := range buttonNames {
		if b&bn.b != 0 {
			parts = append(parts, bn.name)
		}
	}
	return strings.Join(parts, "+")
}

// NumInstructions is the number of instruction codes the host may send.
const NumInstructions = 8

// instructions is indexed by instruction code.
var instructions = [NumInstructions]Button{Up, Down, Left, Right, A, B, Start, Select}

// ForInstruction returns the button the player must press for code.
func ForInstruction(code int) (Button, bool) {
	if code < 0 || code >= NumInstructions {
		return None, false
	}
	return instructions[code], true
}

// Instruction returns the instruction code for a single button.
func Instruction(b Button) (int, bool) {
	for code, ib := range instructions {
		if ib == b {
			return code, true
		}
	}
	return 0, false
}

// Pad reads the joypad.
type Pad interface {
	// Current returns the buttons pressed right now.
	Current() (Button, error)

	// WaitForRelease blocks until no button is pressed.
	WaitForRelease(ctx context.Context) error
}

// PollRelease calls current every interval until it reports None.
func PollRelease(ctx context.Context, current func() (Button, error), interval time.Duration) error {
	for {
		b, err := current()
		if err != nil {
			return err
		}
		if b == None {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
