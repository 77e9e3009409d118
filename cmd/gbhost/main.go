// Command gbhost drives the reaction game from the host side of the link:
// it starts rounds and collects the client's reaction time.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sweeney/gb-reaction/internal/gpio"
	"github.com/sweeney/gb-reaction/internal/host"
	"github.com/sweeney/gb-reaction/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

type rootOptions struct {
	port gpio.HostConfig

	// open and hostOpts are replaced by tests.
	open     func(gpio.HostConfig) (hostPort, error)
	hostOpts []host.Option
}

type hostPort interface {
	host.Port
	Close() error
}

func openGPIO(cfg gpio.HostConfig) (hostPort, error) {
	p, err := gpio.NewHostPort(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&rootOptions{port: gpio.DefaultHostConfig(), open: openGPIO})
}

func buildRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "gbhost",
		Short:         "Host side of the link-port reaction game.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.port.Chip, "chip", opts.port.Chip, "GPIO chip")
	pf.IntVar(&opts.port.Data, "data", opts.port.Data, "BCM pin driving the client's serial in")
	pf.IntVar(&opts.port.Clock, "clock", opts.port.Clock, "BCM pin driving the link clock")
	pf.IntVar(&opts.port.SerialIn, "serial-in", opts.port.SerialIn, "BCM pin reading the client's serial out")

	root.AddCommand(
		newPlayCmd(opts),
		newCheckCmd(opts, "check-send", "Send 0..n-1 and read the client's verdict pulses.", (*host.Host).SendCheck),
		newCheckCmd(opts, "check-recv", "Read n integers from the client and answer each with 1.", (*host.Host).ReceiveCheck),
		newRunCmd(opts),
	)
	return root
}

// withHost opens the port, runs fn with a signal-bound context and closes
// the port afterwards.
func (o *rootOptions) withHost(fn func(ctx context.Context, h *host.Host) error) error {
	port, err := o.open(o.port)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer port.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, host.New(port, o.hostOpts...))
}

func newPlayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play a single round and print the reaction time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withHost(func(ctx context.Context, h *host.Host) error {
				res, err := h.Play(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reaction: %.3fs (%s, %d ticks)\n", res.Seconds(), res.Button, res.Ticks)
				return nil
			})
		},
	}
}

type checkFunc func(h *host.Host, ctx context.Context, n int) (host.CheckReport, error)

func newCheckCmd(opts *rootOptions, use, short string, fn checkFunc) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 1 {
				return errors.New("--checks must be at least 1")
			}
			return opts.withHost(func(ctx context.Context, h *host.Host) error {
				report, err := fn(h, ctx, n)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d passed\n", use, report.Passed, report.Total)
				if err != nil {
					return err
				}
				if !report.OK() {
					return fmt.Errorf("%s: %d of %d failed", use, report.Total-report.Passed, report.Total)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "checks", session.DefaultChecks, "values to exchange")
	return cmd
}
