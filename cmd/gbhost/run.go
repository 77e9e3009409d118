package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sweeney/gb-reaction/internal/host"
	"github.com/sweeney/gb-reaction/internal/mqtt"
	"github.com/sweeney/gb-reaction/internal/status"
	"github.com/sweeney/gb-reaction/internal/web"
)

// shutdownGrace bounds how long shutdown waits for an in-flight round.
const shutdownGrace = 2 * time.Second

type runOptions struct {
	broker       string
	httpAddr     string
	heartbeat    time.Duration
	roundTimeout time.Duration
	rounds       int
	pause        time.Duration
	wsBroker     string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play rounds continuously and publish results to MQTT.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(root, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	f.StringVar(&opts.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	f.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "heartbeat interval (0 to disable)")
	f.DurationVar(&opts.roundTimeout, "round-timeout", time.Minute, "maximum duration of one round (0 for none)")
	f.IntVar(&opts.rounds, "rounds", 0, "rounds to play before idling (0 for unlimited)")
	f.DurationVar(&opts.pause, "pause", 2*time.Second, "wait between rounds")
	f.StringVar(&opts.wsBroker, "ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	return cmd
}

func runDaemon(root *rootOptions, opts runOptions) error {
	port, err := root.open(root.port)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer port.Close()
	h := host.New(port, root.hostOpts...)

	publisher, err := mqtt.NewRealPublisher(opts.broker, mqtt.ClientID())
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	wsBroker := resolveWSBroker(opts.wsBroker, opts.broker)
	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs:    opts.heartbeat.Milliseconds(),
		RoundTimeoutMs: opts.roundTimeout.Milliseconds(),
		MaxRounds:      opts.rounds,
		Broker:         opts.broker,
		HTTPPort:       opts.httpAddr,
		WSBroker:       wsBroker,
		Pins:           fmt.Sprintf("data=%d clock=%d serial-in=%d", root.port.Data, root.port.Clock, root.port.SerialIn),
	})
	if net := readNetworkInfo(networkEnvFile); net != nil {
		tracker.SetNetwork(net)
	}

	// Startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	log.Printf("started: broker=%s heartbeat=%v round_timeout=%v rounds=%d", opts.broker, opts.heartbeat, opts.roundTimeout, opts.rounds)

	var heartbeat <-chan time.Time
	if opts.heartbeat > 0 {
		ticker := time.NewTicker(opts.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(h, publisher, publisher, tracker, opts, time.Now, heartbeat, sigCh)
}

type player interface {
	Play(ctx context.Context) (host.Result, error)
}

type roundOutcome struct {
	res host.Result
	err error
}

func runLoop(p player, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, opts runOptions, now func() time.Time, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outcomes := make(chan roundOutcome, 1)
	inFlight := false
	played := 0

	startRound := func() {
		inFlight = true
		tracker.SetPhase(status.PhasePlaying)
		go func() {
			roundCtx, done := roundContext(ctx, opts.roundTimeout)
			defer done()
			res, err := p.Play(roundCtx)
			outcomes <- roundOutcome{res, err}
		}()
	}

	// next fires when the following round is due; nil while a round is in
	// flight or the round limit has been reached.
	var next <-chan time.Time
	startRound()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			cancel()
			if inFlight {
				select {
				case <-outcomes:
				case <-time.After(shutdownGrace):
					log.Printf("round still running after %v", shutdownGrace)
				}
			}
			tracker.SetPhase(status.PhaseStopped)

			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-heartbeat:
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			if net := readNetworkInfo(networkEnvFile); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v rounds=%d failures=%d", snap.Uptime().Truncate(time.Second), snap.Counts.Rounds, snap.Counts.Failures)
			hbEvent := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}

		case o := <-outcomes:
			inFlight = false
			played++
			if o.err != nil {
				log.Printf("round failed: %v", o.err)
				tracker.RecordFailure(o.err)
			} else {
				log.Printf("result: %s %.3fs (%d ticks)", o.res.Button, o.res.Seconds(), o.res.Ticks)
				tracker.RecordResult(o.res)
				if err := publisher.PublishResult(o.res); err != nil {
					// Don't crash on publish failure
					log.Printf("publish error: %v", err)
				}
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			if opts.rounds > 0 && played >= opts.rounds {
				log.Printf("played %d rounds, idling", played)
				tracker.SetPhase(status.PhaseIdle)
				continue
			}
			if opts.pause <= 0 {
				startRound()
				continue
			}
			tracker.SetPhase(status.PhaseIdle)
			next = time.After(opts.pause)

		case <-next:
			next = nil
			startRound()
		}
	}
}

func roundContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// networkEnvFile is written by pi-helper.
const networkEnvFile = "/run/pi-helper.env"

// pi-helper env var names.
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

// readNetworkInfo reads the pi-helper variables from path, falling back to
// the process environment for any the file does not set.
func readNetworkInfo(path string) *status.NetworkInfo {
	get := os.Getenv
	if env, err := godotenv.Read(path); err == nil {
		get = func(key string) string {
			if v, ok := env[key]; ok {
				return v
			}
			return os.Getenv(key)
		}
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
