package main

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/gb-reaction/internal/gpio"
	"github.com/sweeney/gb-reaction/internal/host"
	"github.com/sweeney/gb-reaction/internal/pulse"
)

// closingPort adds Close to a FakePort.
type closingPort struct {
	*host.FakePort
	closed bool
}

func (p *closingPort) Close() error {
	p.closed = true
	return nil
}

// testRoot builds the root command on a FakePort driven by a fake clock.
func testRoot(t *testing.T) (*rootOptions, *closingPort, *bytes.Buffer) {
	t.Helper()
	clock := pulse.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	port := &closingPort{FakePort: host.NewFakePort(clock.Now)}
	opts := &rootOptions{
		port: gpio.DefaultHostConfig(),
		open: func(gpio.HostConfig) (hostPort, error) { return port, nil },
		hostOpts: []host.Option{
			host.WithClock(clock.Now, clock.Sleep),
			host.WithPollInterval(time.Millisecond),
			host.WithRand(rand.New(rand.NewSource(1))),
			host.WithMaxDelay(time.Second),
		},
	}
	return opts, port, new(bytes.Buffer)
}

func execute(opts *rootOptions, out *bytes.Buffer, args ...string) error {
	cmd := buildRootCmd(opts)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestPlayCommand(t *testing.T) {
	opts, port, out := testRoot(t)
	received := 0
	port.Respond = func(b byte) []host.Segment {
		received++
		if received != 2 {
			return nil
		}
		return append([]host.Segment{{For: 300 * time.Millisecond}}, host.Train(256, time.Millisecond)...)
	}

	if err := execute(opts, out, "play"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !strings.Contains(out.String(), "reaction: 1.000s (") || !strings.Contains(out.String(), "256 ticks") {
		t.Errorf("output: got %q", out.String())
	}
	if !port.closed {
		t.Error("port should be closed after the command")
	}
	if got := port.Bytes(); len(got) != 2 || got[0] != host.ReadySentinel {
		t.Errorf("bytes: got %v", got)
	}
}

func TestPinFlags(t *testing.T) {
	opts, _, out := testRoot(t)
	var got gpio.HostConfig
	opts.open = func(cfg gpio.HostConfig) (hostPort, error) {
		got = cfg
		return nil, errors.New("no hardware")
	}

	err := execute(opts, out, "--chip", "gpiochip4", "--data", "2", "--clock", "3", "--serial-in", "4", "play")
	if err == nil || !strings.Contains(err.Error(), "init gpio: no hardware") {
		t.Fatalf("got %v, want init gpio error", err)
	}
	want := gpio.HostConfig{Chip: "gpiochip4", Data: 2, Clock: 3, SerialIn: 4}
	if got != want {
		t.Errorf("config: got %+v, want %+v", got, want)
	}
}

func TestCheckSendCommand(t *testing.T) {
	opts, port, out := testRoot(t)
	port.Respond = func(b byte) []host.Segment {
		return []host.Segment{{For: time.Millisecond}, {High: true, For: pulse.DefaultHighHold}}
	}

	if err := execute(opts, out, "check-send", "--checks", "3"); err != nil {
		t.Fatalf("check-send: %v", err)
	}
	if !strings.Contains(out.String(), "check-send: 3/3 passed") {
		t.Errorf("output: got %q", out.String())
	}
	if got := port.Bytes(); !bytes.Equal(got, []byte{0, 1, 2}) {
		t.Errorf("bytes: got %v, want [0 1 2]", got)
	}
}

func TestCheckSendReportsFailure(t *testing.T) {
	opts, port, out := testRoot(t)
	port.Respond = func(b byte) []host.Segment {
		return []host.Segment{{For: time.Millisecond}, {High: true, For: pulse.DefaultLowHold}}
	}

	err := execute(opts, out, "check-send", "--checks", "2")
	if err == nil || err.Error() != "check-send: 2 of 2 failed" {
		t.Errorf("got %v, want two failures", err)
	}
	if strings.Contains(out.String(), "Error:") {
		t.Errorf("cobra should not print the error, got %q", out.String())
	}
}

func TestCheckRecvCommand(t *testing.T) {
	opts, port, out := testRoot(t)
	next := []uint32{1, 2}
	port.Respond = func(b byte) []host.Segment {
		if len(next) == 0 {
			return nil
		}
		n := next[0]
		next = next[1:]
		return append([]host.Segment{{For: time.Millisecond}}, host.Train(n, time.Millisecond)...)
	}

	// 0 is an empty train, so the first value arrives as silence.
	if err := execute(opts, out, "check-recv", "--checks", "3"); err != nil {
		t.Fatalf("check-recv: %v", err)
	}
	if got := port.Bytes(); !bytes.Equal(got, []byte{1, 1, 1}) {
		t.Errorf("replies: got %v, want [1 1 1]", got)
	}
}

func TestCheckRejectsZero(t *testing.T) {
	opts, _, out := testRoot(t)
	if err := execute(opts, out, "check-recv", "--checks", "0"); err == nil {
		t.Error("expected an error for --checks 0")
	}
}

func TestUnknownCommand(t *testing.T) {
	opts, _, out := testRoot(t)
	if err := execute(opts, out, "dance"); err == nil {
		t.Error("expected an error for an unknown command")
	}
	if out.Len() != 0 {
		t.Errorf("errors are logged by main, got output %q", out.String())
	}
}
