package internal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/xid"

	"github.com/sweeney/gb-reaction/internal/gpio"
	"github.com/sweeney/gb-reaction/internal/host"
	"github.com/sweeney/gb-reaction/internal/input"
	"github.com/sweeney/gb-reaction/internal/mqtt"
	"github.com/sweeney/gb-reaction/internal/pulse"
	"github.com/sweeney/gb-reaction/internal/sched"
	"github.com/sweeney/gb-reaction/internal/session"
	"github.com/sweeney/gb-reaction/internal/status"
	"github.com/sweeney/gb-reaction/internal/timer"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// shiftingTransceiver holds every transmitted byte on the line for the time
// the hardware takes to shift it out, like gpio.Transceiver.
type shiftingTransceiver struct {
	*pulse.FakeTransceiver
	sleep func(time.Duration)
}

func (s *shiftingTransceiver) Transmit(b byte) error {
	if err := s.FakeTransceiver.Transmit(b); err != nil {
		return err
	}
	s.sleep(gpio.ShiftTime)
	return nil
}

// waveform converts client transmissions into the levels the host sees.
// The last level holds past the end of the waveform.
func waveform(txs []pulse.Transmission) []host.Segment {
	var out []host.Segment
	for i := 0; i+1 < len(txs); i++ {
		out = append(out, host.Segment{
			High: txs[i].Byte&0x80 != 0,
			For:  txs[i+1].At.Sub(txs[i].At),
		})
	}
	return out
}

// newHost returns a host on a FakePort with its own fake clock.
func newHost() (*host.Host, *host.FakePort, *pulse.FakeClock) {
	clock := pulse.NewFakeClock(epoch)
	port := host.NewFakePort(clock.Now)
	return host.New(port, host.WithClock(clock.Now, clock.Sleep)), port, clock
}

// clientScript turns the bytes the host clocked out into client receives.
func clientScript(bytes []byte) []pulse.Rx {
	script := make([]pulse.Rx, len(bytes))
	for i, b := range bytes {
		script[i] = pulse.Rx{Byte: b, Polls: 1}
	}
	return script
}

type client struct {
	sess  *session.Session
	trx   *shiftingTransceiver
	link  *pulse.Link
	timer *timer.Manual
	pad   *input.FakePad
}

func newClient(t *testing.T, script []pulse.Rx) *client {
	t.Helper()
	clock := pulse.NewFakeClock(epoch)
	c := &client{
		trx:   &shiftingTransceiver{FakeTransceiver: pulse.NewFakeTransceiver(clock.Now, script...), sleep: clock.Sleep},
		timer: timer.NewManual(),
		pad:   input.NewFakePad(),
	}
	c.pad.ReleaseOnWait = true
	c.link = pulse.NewLink(c.trx, pulse.WithSleep(clock.Sleep))

	sess, err := session.New(session.Config{
		Link:      c.link,
		Scheduler: sched.New(sched.Config{}),
		Timer:     c.timer,
		Pad:       c.pad,
		Rate:      timer.DefaultRate,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	c.sess = sess
	return c
}

// TestIntegrationRoundOverTheWire plays one round with the host's bytes
// delivered to the client and the client's pulses decoded by the host, then
// publishes and tracks the result.
func TestIntegrationRoundOverTheWire(t *testing.T) {
	h, port, hostClock := newHost()
	if err := h.Idle(); err != nil {
		t.Fatal(err)
	}
	for _, b := range []byte{host.ReadySentinel, 4} {
		if err := h.TransferByte(b); err != nil {
			t.Fatalf("transfer %d: %v", b, err)
		}
	}

	c := newClient(t, clientScript(port.Bytes()))
	type outcome struct {
		res session.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.sess.Run(context.Background())
		done <- outcome{res, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.timer.WaitEngaged(ctx); err != nil {
		t.Fatalf("timer never engaged: %v", err)
	}
	fired := c.timer.Fire(40)
	c.pad.Set(input.A)
	for i := 0; i < 1000 && c.timer.Engaged(); i++ {
		fired += c.timer.Fire(1)
		time.Sleep(time.Millisecond)
	}

	var o outcome
	select {
	case o = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	if o.err != nil {
		t.Fatalf("session: %v", o.err)
	}
	if o.res.Instruction != 4 || o.res.Button != input.A {
		t.Fatalf("session result: got %+v", o.res)
	}
	if o.res.Ticks < 40 || int(o.res.Ticks) > fired {
		t.Fatalf("ticks: got %d, want 40..%d", o.res.Ticks, fired)
	}

	// Host side: decode what the client put on the line.
	port.Load(waveform(c.trx.Transmitted())...)
	ticks, syms, err := h.ReceiveInteger(context.Background())
	if err != nil {
		t.Fatalf("receive integer: %v", err)
	}
	if ticks != o.res.Ticks {
		t.Fatalf("host decoded %d ticks from %v, client sent %d", ticks, syms, o.res.Ticks)
	}
	if syms[len(syms)-1] != pulse.Noise {
		t.Errorf("last symbol: got %s, want the untimed terminator as NOISE", syms[len(syms)-1])
	}

	res := host.Result{
		ID:          xid.NewWithTime(hostClock.Now()),
		Instruction: o.res.Instruction,
		Button:      o.res.Button,
		Ticks:       ticks,
		Reaction:    host.Reaction(ticks),
		Timestamp:   hostClock.Now(),
	}

	publisher := mqtt.NewFakePublisher()
	if err := publisher.PublishResult(res); err != nil {
		t.Fatalf("publish: %v", err)
	}
	var payload mqtt.Payload
	if err := json.Unmarshal(publisher.Payloads[0], &payload); err != nil {
		t.Fatalf("payload JSON: %v", err)
	}
	if payload.Reaction.Ticks != ticks || payload.Reaction.Button != "A" {
		t.Errorf("payload: got %+v", payload.Reaction)
	}
	if payload.Reaction.Seconds != float64(ticks)/host.TicksPerSecond {
		t.Errorf("seconds: got %v", payload.Reaction.Seconds)
	}
	if payload.Reaction.RoundID != res.ID.String() {
		t.Errorf("round_id: got %q, want %q", payload.Reaction.RoundID, res.ID)
	}

	tracker := status.NewTracker(epoch, status.Config{})
	tracker.RecordResult(res)
	var sj status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(tracker.Snapshot()), &sj); err != nil {
		t.Fatalf("status JSON: %v", err)
	}
	if sj.Status.Best == nil || sj.Status.Best.Ticks != ticks {
		t.Errorf("best_result: got %+v", sj.Status.Best)
	}
}

// TestIntegrationVerdictPulses checks that the host classifies the client's
// receive-check verdicts: short for a match, long for a mismatch.
func TestIntegrationVerdictPulses(t *testing.T) {
	h, port, _ := newHost()
	if err := h.Idle(); err != nil {
		t.Fatal(err)
	}
	for _, b := range []byte{0, 1, 7, 3} {
		if err := h.TransferByte(b); err != nil {
			t.Fatal(err)
		}
	}

	c := newClient(t, clientScript(port.Bytes()))
	report, err := session.ReceiveCheck(context.Background(), c.link, 4)
	if err != nil {
		t.Fatalf("receive check: %v", err)
	}
	if report.Passed != 3 {
		t.Errorf("client passed: got %d, want 3", report.Passed)
	}

	port.Load(waveform(c.trx.Transmitted())...)
	want := []pulse.Symbol{pulse.One, pulse.One, pulse.Zero, pulse.One}
	for i, w := range want {
		sym, width, ok, err := h.ReceivePulse(context.Background())
		if err != nil || !ok {
			t.Fatalf("pulse %d: ok=%v err=%v", i, ok, err)
		}
		if sym != w {
			t.Errorf("pulse %d: got %s (%v), want %s", i, sym, width, w)
		}
	}
	if _, _, ok, _ := h.ReceivePulse(context.Background()); ok {
		t.Error("expected silence after the last verdict")
	}
}

// TestIntegrationUnknownSentinel checks that a client handed something other
// than a ready sentinel leaves the line quiet.
func TestIntegrationUnknownSentinel(t *testing.T) {
	h, port, _ := newHost()
	if err := h.TransferByte(7); err != nil {
		t.Fatal(err)
	}

	c := newClient(t, clientScript(port.Bytes()))
	_, err := c.sess.Run(context.Background())
	if !errors.Is(err, session.ErrConnectionRejected) {
		t.Fatalf("got %v, want ErrConnectionRejected", err)
	}
	if n := len(c.trx.Transmitted()); n != 0 {
		t.Fatalf("client transmitted %d bytes after rejecting", n)
	}

	port.Load(waveform(c.trx.Transmitted())...)
	if _, _, ok, _ := h.ReceivePulse(context.Background()); ok {
		t.Error("host should see no pulse")
	}
}
