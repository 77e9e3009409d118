// Command gbreact runs the reaction game client: it listens on the link port
// for the host, times the player's button press and reports the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/sweeney/gb-reaction/internal/display"
	"github.com/sweeney/gb-reaction/internal/gpio"
	"github.com/sweeney/gb-reaction/internal/input"
	"github.com/sweeney/gb-reaction/internal/pulse"
	"github.com/sweeney/gb-reaction/internal/sched"
	"github.com/sweeney/gb-reaction/internal/session"
	"github.com/sweeney/gb-reaction/internal/timer"
)

const (
	modePlay      = "play"
	modeCheckRecv = "check-recv"
	modeCheckSend = "check-send"
)

type config struct {
	mode           string
	client         gpio.ClientConfig
	padPins        [8]int
	rate           timer.Rate
	interruptLimit uint32
	period         uint32
	counterWrap    uint32
	nesting        int
	checks         int
}

func main() {
	mode := flag.String("mode", modePlay, "play, check-recv or check-send")
	chip := flag.String("chip", gpio.DefaultChip, "GPIO chip")
	pinClock := flag.Int("pin-clock", gpio.PinClock, "BCM pin for the link clock")
	pinSI := flag.Int("pin-si", gpio.PinSI, "BCM pin for serial in")
	pinSO := flag.Int("pin-so", gpio.PinSO, "BCM pin for serial out")
	pinsPad := flag.String("pins-pad", gpio.FormatPins(gpio.DefaultPadPins), "BCM pins for Right,Left,Up,Down,A,B,Select,Start")
	rate := flag.Int("rate", int(timer.DefaultRate), "timer rate selector 0-3")
	interruptLimit := flag.Uint("interrupt-limit", 0, "hardware ticks per dispatch pass (0 derives from -period)")
	period := flag.Uint("period", session.DefaultTaskPeriod, "button task period in timer counts")
	counterWrap := flag.Uint("counter-wrap", sched.DefaultCounterWrap, "timer counts per hardware tick")
	nesting := flag.Int("nesting", timer.DefaultNesting, "maximum nested timer callbacks")
	checks := flag.Int("checks", session.DefaultChecks, "values exchanged by a self-check")

	flag.Parse()

	pads, err := gpio.ParsePins(*pinsPad)
	if err != nil {
		log.Fatalf("fatal: -pins-pad: %v", err)
	}
	cfg := config{
		mode:           *mode,
		client:         gpio.ClientConfig{Chip: *chip, Clock: *pinClock, SI: *pinSI, SO: *pinSO},
		padPins:        pads,
		rate:           timer.Rate(*rate),
		interruptLimit: uint32(*interruptLimit),
		period:         uint32(*period),
		counterWrap:    uint32(*counterWrap),
		nesting:        *nesting,
		checks:         *checks,
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func (c config) validate() error {
	switch c.mode {
	case modePlay, modeCheckRecv, modeCheckSend:
	default:
		return fmt.Errorf("unknown mode %q", c.mode)
	}
	if _, err := c.rate.Period(); err != nil {
		return err
	}
	if c.period == 0 {
		return errors.New("period must be positive")
	}
	if c.nesting < 1 {
		return errors.New("nesting must be at least 1")
	}
	if c.checks < 1 {
		return errors.New("checks must be at least 1")
	}
	return nil
}

func run(cfg config) error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	trx, err := gpio.NewTransceiver(cfg.client)
	if err != nil {
		return fmt.Errorf("init transceiver: %w", err)
	}
	defer trx.Close()
	link := pulse.NewLink(trx)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.mode {
	case modeCheckRecv:
		return check(ctx, "receive", session.ReceiveCheck, link, cfg.checks)
	case modeCheckSend:
		return check(ctx, "send", session.SendCheck, link, cfg.checks)
	}

	pad, err := gpio.NewPad(cfg.client.Chip, cfg.padPins)
	if err != nil {
		return fmt.Errorf("init pad: %w", err)
	}
	defer pad.Close()

	_, err = play(ctx, cfg, link, timer.NewTicker(cfg.nesting), pad, display.NewLogger())
	return err
}

func play(ctx context.Context, cfg config, link *pulse.Link, tm timer.Timer, pad input.Pad, disp display.Display) (session.Result, error) {
	sess, err := session.New(session.Config{
		Link:           link,
		Scheduler:      sched.New(sched.Config{CounterWrap: cfg.counterWrap}),
		Timer:          tm,
		Pad:            pad,
		Display:        disp,
		Rate:           cfg.rate,
		TaskPeriod:     cfg.period,
		InterruptLimit: cfg.interruptLimit,
	})
	if err != nil {
		return session.Result{}, fmt.Errorf("init session: %w", err)
	}

	log.Printf("started: rate=%v period=%d counter_wrap=%d", cfg.rate, cfg.period, cfg.counterWrap)
	res, err := sess.Run(ctx)
	if err != nil {
		return session.Result{}, fmt.Errorf("play: %w", err)
	}
	log.Printf("result: instruction=%d button=%s ticks=%d", res.Instruction, res.Button, res.Ticks)
	return res, nil
}

type checkFunc func(ctx context.Context, link *pulse.Link, n int) (session.CheckReport, error)

func check(ctx context.Context, name string, fn checkFunc, link *pulse.Link, n int) error {
	report, err := fn(ctx, link, n)
	log.Printf("%s check: %d/%d passed", name, report.Passed, report.Total)
	if err != nil {
		return fmt.Errorf("%s check: %w", name, err)
	}
	if !report.OK() {
		return fmt.Errorf("%s check: %d of %d failed", name, report.Total-report.Passed, report.Total)
	}
	return nil
}
