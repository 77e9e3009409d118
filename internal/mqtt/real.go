package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/xid"

	"github.com/sweeney/gb-reaction/internal/host"
)

// BufferSize is the number of messages kept while the broker is unreachable.
const BufferSize = 100

const appID = "gb-reaction"

// ClientID returns a broker client ID stable for this machine. It falls
// back to a random suffix when the machine ID is unreadable.
func ClientID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		log.Printf("mqtt: machine id unavailable (%v), using random client id", err)
		return appID + "-" + xid.New().String()
	}
	return appID + "-" + id[:12]
}

// client is the subset of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an MQTT broker and buffers messages while the
// connection is down.
type RealPublisher struct {
	client client

	mu     sync.Mutex
	buf    *ringBuffer
	everUp bool
	now    func() time.Time
}

func newPublisher(c client) *RealPublisher {
	return &RealPublisher{client: c, buf: newRingBuffer(BufferSize), now: time.Now}
}

// NewRealPublisher connects to broker. Tcp and websocket URLs
// (tcp://, ws://) are both accepted. The will marks the host as gone.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	p := newPublisher(nil)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onLost(err) })

	c := paho.NewClient(opts)
	p.client = c
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	reconnect := p.everUp
	p.everUp = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected, replaying %d buffered messages", len(pending))
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err == nil {
			p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
		}
	}
	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			log.Printf("mqtt: replay to %s failed: %v", msg.topic, err)
		}
	}
}

func (p *RealPublisher) onLost(err error) {
	log.Printf("mqtt: connection lost: %v", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// PublishResult sends a round result. Results are not retained.
func (p *RealPublisher) PublishResult(res host.Result) error {
	payload, err := FormatPayload(res)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: Topic, payload: payload, qos: 1})
}

// PublishSystem sends a lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
