// Package status provides a thread-safe status tracker for the host daemon.
// It is read by the HTTP handlers and the heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/gb-reaction/internal/host"
)

// Phase is what the host is doing right now.
type Phase string

const (
	PhaseStarting Phase = "STARTING"
	PhaseIdle     Phase = "IDLE"
	PhasePlaying  Phase = "PLAYING"
	PhaseStopped  Phase = "STOPPED"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs    int64
	RoundTimeoutMs int64
	MaxRounds      int // 0 = unlimited
	Broker         string
	HTTPPort       string
	WSBroker       string // websocket broker URL for browser MQTT (empty = disabled)
	Pins           string
}

// Counts are the round totals.
type Counts struct {
	Rounds   int
	Failures int
}

// Snapshot is a point-in-time view of daemon state. It is a value type and
// safe to use after the lock is released.
type Snapshot struct {
	Phase         Phase
	Counts        Counts
	Last          *host.Result
	Best          *host.Result
	LastError     string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Phase:     PhaseStarting,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetPhase records what the host is doing.
func (t *Tracker) SetPhase(p Phase) {
	t.mu.Lock()
	t.snap.Phase = p
	t.mu.Unlock()
}

// RecordResult counts a completed round and keeps the fastest.
func (t *Tracker) RecordResult(res host.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Counts.Rounds++
	t.snap.Last = &res
	if t.snap.Best == nil || res.Ticks < t.snap.Best.Ticks {
		best := res
		t.snap.Best = &best
	}
	t.snap.LastError = ""
}

// RecordFailure counts a round that did not produce a result.
func (t *Tracker) RecordFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Counts.Failures++
	if err != nil {
		t.snap.LastError = err.Error()
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
