//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/gb-reaction/internal/pulse"
)

// Transceiver is the client's serial port. Bits arrive on SI and are
// sampled on each rising edge of the host's clock; SO follows the most
// significant bit of the last transmitted byte.
type Transceiver struct {
	chip  *gpiocdev.Chip
	clock *gpiocdev.Line
	si    *gpiocdev.Line
	so    *gpiocdev.Line
	ser   shifter
}

var _ pulse.Transceiver = (*Transceiver)(nil)

// NewTransceiver requests the client's serial lines.
func NewTransceiver(cfg ClientConfig) (*Transceiver, error) {
	chip, err := gpiocdev.NewChip(chipOrDefault(cfg.Chip))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	t := &Transceiver{chip: chip}

	t.si, err = chip.RequestLine(cfg.SI, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("request SI pin %d: %w", cfg.SI, err)
	}
	t.so, err = chip.RequestLine(cfg.SO, gpiocdev.AsOutput(0))
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("request SO pin %d: %w", cfg.SO, err)
	}
	t.clock, err = chip.RequestLine(cfg.Clock,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(t.onClock))
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("request clock pin %d: %w", cfg.Clock, err)
	}
	return t, nil
}

func (t *Transceiver) onClock(gpiocdev.LineEvent) {
	v, err := t.si.Value()
	if err != nil {
		t.ser.fail()
		return
	}
	t.ser.edge(v == 1)
}

// Transmit drives SO to the level of b's top bit for one byte time.
func (t *Transceiver) Transmit(b byte) error {
	if err := t.so.SetValue(outLevel(b)); err != nil {
		return fmt.Errorf("write SO: %w", err)
	}
	time.Sleep(ShiftTime)
	return nil
}

// RequestReceive arms the shift register for one byte.
func (t *Transceiver) RequestReceive() error {
	return t.ser.arm()
}

// Status reports the receive status.
func (t *Transceiver) Status() pulse.Status {
	return t.ser.Status()
}

// In returns the last byte received.
func (t *Transceiver) In() byte {
	return t.ser.In()
}

// Close releases the lines, leaving them as inputs with pull-down.
func (t *Transceiver) Close() error {
	t.ser.fail()
	var errs []error
	for _, l := range []struct {
		name string
		line *gpiocdev.Line
	}{{"clock", t.clock}, {"SI", t.si}, {"SO", t.so}} {
		if l.line == nil {
			continue
		}
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", l.name, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l.name, err))
		}
	}
	if t.chip != nil {
		if err := t.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
