//go:build linux

package gpio

import (
	"context"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/gb-reaction/internal/input"
)

// PadPollInterval is the wait between reads while waiting for release.
const PadPollInterval = 5 * time.Millisecond

// Pad reads eight push buttons wired to ground.
type Pad struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	n     int
}

var _ input.Pad = (*Pad)(nil)

// NewPad requests the button lines as active-low inputs with pull-ups.
func NewPad(chipName string, pins [8]int) (*Pad, error) {
	chip, err := gpiocdev.NewChip(chipOrDefault(chipName))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	lines, err := chip.RequestLines(pins[:],
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.AsActiveLow)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pad pins %v: %w", pins, err)
	}
	return &Pad{chip: chip, lines: lines, n: len(pins)}, nil
}

// Current returns the buttons held down.
func (p *Pad) Current() (input.Button, error) {
	values := make([]int, p.n)
	if err := p.lines.Values(values); err != nil {
		return input.None, fmt.Errorf("read pad: %w", err)
	}
	return buttonsFromValues(values), nil
}

// WaitForRelease polls until no button is held.
func (p *Pad) WaitForRelease(ctx context.Context) error {
	return input.PollRelease(ctx, p.Current, PadPollInterval)
}

// Close releases the lines.
func (p *Pad) Close() error {
	var errs []error
	if err := p.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pad pins: %w", err))
	}
	if err := p.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
