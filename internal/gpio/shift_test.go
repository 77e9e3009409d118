package gpio

import (
	"testing"

	"github.com/sweeney/gb-reaction/internal/input"
	"github.com/sweeney/gb-reaction/internal/pulse"
)

func clockIn(s *shifter, b byte) {
	for i := 7; i >= 0; i-- {
		s.edge(b>>i&1 == 1)
	}
}

func TestShifterReceivesByte(t *testing.T) {
	var s shifter

	if err := s.arm(); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if s.Status() != pulse.StatusReceiving {
		t.Fatalf("expected RECEIVING, got %s", s.Status())
	}

	for i := 7; i > 0; i-- {
		s.edge(100>>i&1 == 1)
	}
	if s.Status() != pulse.StatusReceiving {
		t.Errorf("expected RECEIVING after 7 bits, got %s", s.Status())
	}
	s.edge(100&1 == 1)

	if s.Status() != pulse.StatusIdle {
		t.Errorf("expected IDLE after 8 bits, got %s", s.Status())
	}
	if s.In() != 100 {
		t.Errorf("expected 100, got %d", s.In())
	}
}

func TestShifterDropsIdleEdges(t *testing.T) {
	var s shifter

	clockIn(&s, 0xFF)
	if s.In() != 0 {
		t.Errorf("edges before arm should be dropped, got %d", s.In())
	}

	s.arm()
	clockIn(&s, 0x5A)
	clockIn(&s, 0xFF)
	if s.In() != 0x5A {
		t.Errorf("expected 0x5A, got %#x", s.In())
	}
}

func TestShifterRearm(t *testing.T) {
	var s shifter

	s.arm()
	if err := s.arm(); err == nil {
		t.Error("expected error arming twice")
	}

	clockIn(&s, 3)
	if err := s.arm(); err != nil {
		t.Fatalf("rearm: %v", err)
	}
	clockIn(&s, 4)
	if s.In() != 4 {
		t.Errorf("expected 4, got %d", s.In())
	}
}

func TestShifterFail(t *testing.T) {
	var s shifter

	s.fail()
	if s.Status() != pulse.StatusIdle {
		t.Errorf("fail while idle should be a no-op, got %s", s.Status())
	}

	s.arm()
	s.edge(true)
	s.fail()
	if s.Status() != pulse.StatusError {
		t.Errorf("expected ERROR, got %s", s.Status())
	}
	if err := s.arm(); err != nil {
		t.Errorf("arm after error: %v", err)
	}
}

func TestOutLevel(t *testing.T) {
	tests := []struct {
		b    byte
		want int
	}{
		{0x00, 0},
		{0xFF, 1},
		{0x80, 1},
		{0x7F, 0},
	}
	for _, tt := range tests {
		if got := outLevel(tt.b); got != tt.want {
			t.Errorf("outLevel(%#x) = %d, want %d", tt.b, got, tt.want)
		}
	}
}

func TestButtonsFromValues(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   input.Button
	}{
		{"none", []int{0, 0, 0, 0, 0, 0, 0, 0}, input.None},
		{"right", []int{1, 0, 0, 0, 0, 0, 0, 0}, input.Right},
		{"a", []int{0, 0, 0, 0, 1, 0, 0, 0}, input.A},
		{"start", []int{0, 0, 0, 0, 0, 0, 0, 1}, input.Start},
		{"up and b", []int{0, 0, 1, 0, 0, 1, 0, 0}, input.Up | input.B},
		{"short read", []int{0, 1}, input.Left},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buttonsFromValues(tt.values); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParsePins(t *testing.T) {
	pins, err := ParsePins("5, 6,13,19,26,16,20,21")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pins != DefaultPadPins {
		t.Errorf("expected %v, got %v", DefaultPadPins, pins)
	}
	if got := FormatPins(pins); got != "5,6,13,19,26,16,20,21" {
		t.Errorf("FormatPins: got %q", got)
	}

	bad := []string{
		"",
		"1,2,3",
		"1,2,3,4,5,6,7,x",
		"1,2,3,4,5,6,7,-8",
		"1,2,3,4,5,6,7,7",
	}
	for _, s := range bad {
		if _, err := ParsePins(s); err == nil {
			t.Errorf("ParsePins(%q): expected error", s)
		}
	}
}

func TestDefaultConfigs(t *testing.T) {
	c := DefaultClientConfig()
	if c.Chip != DefaultChip || c.Clock != PinClock || c.SI != PinSI || c.SO != PinSO {
		t.Errorf("unexpected client config: %+v", c)
	}
	h := DefaultHostConfig()
	if h.Data != PinHostData || h.Clock != PinHostClock || h.SerialIn != PinHostSerialIn {
		t.Errorf("unexpected host config: %+v", h)
	}
	if chipOrDefault("") != DefaultChip || chipOrDefault("gpiochip1") != "gpiochip1" {
		t.Error("chipOrDefault")
	}
}
