package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectRetryInterval = 5 * time.Second
	publishTimeout       = 5 * time.Second
	disconnectQuiesceMs  = 1000

	// DefaultBufferSize is how many messages are kept while the broker is
	// unreachable. Older messages are dropped first.
	DefaultBufferSize = 256
)

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client paho.Client
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	buf           *ringBuffer
	connectedOnce bool
}

// NewRealPublisher creates a publisher for the given broker. It connects in
// the background and keeps retrying, so it never fails at startup.
func NewRealPublisher(broker, clientID string, logger *slog.Logger) *RealPublisher {
	p := newPublisher(logger, DefaultBufferSize)

	will, _ := FormatSystemPayload(WillEvent(p.now()))
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func newPublisher(logger *slog.Logger, bufferSize int) *RealPublisher {
	return &RealPublisher{
		logger: logger,
		now:    time.Now,
		buf:    newRingBuffer(bufferSize),
	}
}

// Publish sends an input event to the MQTT broker.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.enqueue(msg)
		// The connection may have come up between the check and the push.
		if p.client.IsConnectionOpen() {
			p.flush(p.client)
		}
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	dropped := p.buf.push(msg)
	p.mu.Unlock()
	if dropped {
		p.logger.Warn("mqtt buffer full, dropping oldest", "capacity", p.buf.capacity)
	}
}

// flush replays buffered messages in publish order.
func (p *RealPublisher) flush(c paho.Client) int {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	for _, msg := range pending {
		token := c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(publishTimeout) {
			p.logger.Warn("mqtt replay timeout", "topic", msg.topic)
			continue
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("mqtt replay failed", "topic", msg.topic, "error", err)
		}
	}
	return len(pending)
}

// onConnect runs on paho's goroutine after every successful connect.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	p.mu.Unlock()

	replayed := p.flush(c)
	p.logger.Info("mqtt connected", "reconnect", reconnect, "replayed", replayed)

	if !reconnect {
		return
	}
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
	if err != nil {
		return
	}
	token := c.Publish(TopicSystem, 1, false, payload)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		p.logger.Warn("mqtt reconnect event failed", "error", token.Error())
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.logger.Warn("mqtt connection lost", "error", err)
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Pending returns the number of buffered messages awaiting replay.
func (p *RealPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(disconnectQuiesceMs)
	return nil
}
