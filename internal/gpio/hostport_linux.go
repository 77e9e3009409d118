//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/gb-reaction/internal/host"
)

// HostPort drives the data and clock lines into the client and reads the
// client's serial output.
type HostPort struct {
	chip  *gpiocdev.Chip
	data  *gpiocdev.Line
	clock *gpiocdev.Line
	in    *gpiocdev.Line
}

var _ host.Port = (*HostPort)(nil)

// NewHostPort requests the host's lines. The clock starts high.
func NewHostPort(cfg HostConfig) (*HostPort, error) {
	chip, err := gpiocdev.NewChip(chipOrDefault(cfg.Chip))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	p := &HostPort{chip: chip}

	p.data, err = chip.RequestLine(cfg.Data, gpiocdev.AsOutput(0))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("request data pin %d: %w", cfg.Data, err)
	}
	p.clock, err = chip.RequestLine(cfg.Clock, gpiocdev.AsOutput(1))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("request clock pin %d: %w", cfg.Clock, err)
	}
	p.in, err = chip.RequestLine(cfg.SerialIn, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("request serial-in pin %d: %w", cfg.SerialIn, err)
	}
	return p, nil
}

// SetData sets the data line.
func (p *HostPort) SetData(high bool) error {
	return setLevel(p.data, high)
}

// SetClock sets the clock line.
func (p *HostPort) SetClock(high bool) error {
	return setLevel(p.clock, high)
}

// Read returns the client's serial output level.
func (p *HostPort) Read() (bool, error) {
	v, err := p.in.Value()
	if err != nil {
		return false, fmt.Errorf("read serial-in: %w", err)
	}
	return v == 1, nil
}

func setLevel(l *gpiocdev.Line, high bool) error {
	v := 0
	if high {
		v = 1
	}
	return l.SetValue(v)
}

// Close returns every line to an input with pull-down and releases them.
func (p *HostPort) Close() error {
	var errs []error
	for _, l := range []struct {
		name string
		line *gpiocdev.Line
	}{{"data", p.data}, {"clock", p.clock}, {"serial-in", p.in}} {
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
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
