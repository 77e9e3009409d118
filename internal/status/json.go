package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/gb-reaction/internal/host"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Phase         string       `json:"phase"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"round_counts"`
	Last          *ResultJSON  `json:"last_result,omitempty"`
	Best          *ResultJSON  `json:"best_result,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of round counts.
type CountsJSON struct {
	Rounds   int `json:"rounds"`
	Failures int `json:"failures"`
}

// ResultJSON is the JSON representation of a round.
type ResultJSON struct {
	RoundID     string  `json:"round_id"`
	Timestamp   string  `json:"timestamp"`
	Instruction int     `json:"instruction"`
	Button      string  `json:"button"`
	Ticks       uint32  `json:"ticks"`
	Seconds     float64 `json:"seconds"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	RoundTimeoutMs int64  `json:"round_timeout_ms"`
	MaxRounds      int    `json:"max_rounds"`
	Broker         string `json:"broker"`
	HTTPPort       string `json:"http_port"`
	WSBroker       string `json:"ws_broker,omitempty"`
	Pins           string `json:"pins,omitempty"`
}

func resultJSON(res *host.Result) *ResultJSON {
	if res == nil {
		return nil
	}
	return &ResultJSON{
		RoundID:     res.ID.String(),
		Timestamp:   res.Timestamp.UTC().Format(time.RFC3339),
		Instruction: res.Instruction,
		Button:      res.Button.String(),
		Ticks:       res.Ticks,
		Seconds:     res.Seconds(),
	}
}

func buildInner(snap Snapshot) StatusInner {
	phase := string(snap.Phase)
	if phase == "" {
		phase = "UNKNOWN"
	}

	inner := StatusInner{
		Phase:         phase,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        CountsJSON{Rounds: snap.Counts.Rounds, Failures: snap.Counts.Failures},
		Last:          resultJSON(snap.Last),
		Best:          resultJSON(snap.Best),
		LastError:     snap.LastError,
		Config: ConfigJSON{
			HeartbeatMs:    snap.Config.HeartbeatMs,
			RoundTimeoutMs: snap.Config.RoundTimeoutMs,
			MaxRounds:      snap.Config.MaxRounds,
			Broker:         snap.Config.Broker,
			HTTPPort:       snap.Config.HTTPPort,
			WSBroker:       snap.Config.WSBroker,
			Pins:           snap.Config.Pins,
		},
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
