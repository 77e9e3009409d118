//go:build !linux

package gpio

import (
	"context"

	"github.com/sweeney/gb-reaction/internal/input"
	"github.com/sweeney/gb-reaction/internal/pulse"
)

// Transceiver is not available on non-Linux platforms.
type Transceiver struct{}

// NewTransceiver returns ErrUnsupported on non-Linux platforms.
func NewTransceiver(ClientConfig) (*Transceiver, error) {
	return nil, ErrUnsupported
}

func (t *Transceiver) Transmit(byte) error   { return ErrUnsupported }
func (t *Transceiver) RequestReceive() error { return ErrUnsupported }
func (t *Transceiver) Status() pulse.Status  { return pulse.StatusError }
func (t *Transceiver) In() byte              { return 0 }
func (t *Transceiver) Close() error          { return nil }

// Pad is not available on non-Linux platforms.
type Pad struct{}

// NewPad returns ErrUnsupported on non-Linux platforms.
func NewPad(string, [8]int) (*Pad, error) {
	return nil, ErrUnsupported
}

func (p *Pad) Current() (input.Button, error)       { return input.None, ErrUnsupported }
func (p *Pad) WaitForRelease(context.Context) error { return ErrUnsupported }
func (p *Pad) Close() error                         { return nil }

// HostPort is not available on non-Linux platforms.
type HostPort struct{}

// NewHostPort returns ErrUnsupported on non-Linux platforms.
func NewHostPort(HostConfig) (*HostPort, error) {
	return nil, ErrUnsupported
}

func (p *HostPort) SetData(bool) error  { return ErrUnsupported }
func (p *HostPort) SetClock(bool) error { return ErrUnsupported }
func (p *HostPort) Read() (bool, error) { return false, ErrUnsupported }
func (p *HostPort) Close() error        { return nil }
