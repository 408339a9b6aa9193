package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscriptionBuffer is the per-subscription channel capacity. Payloads
// arriving while the buffer is full are dropped.
const subscriptionBuffer = 64

func connect(url, name string, defaults, extra []nats.Option) (*nats.Conn, error) {
	opts := append([]nats.Option{nats.Name(name)}, defaults...)
	nc, err := nats.Connect(url, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes JSON-encoded events to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connect(url, "taskgraph-publisher", nil, opts)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish encodes event as JSON and publishes it on topic. A cancelled ctx
// publishes nothing.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	if err := p.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered publishes (best effort) and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn.IsConnected() {
		_ = p.conn.FlushTimeout(2 * time.Second)
	}
	p.conn.Close()
	return nil
}

// NATSSubscriber subscribes to events from NATS subjects. The connection
// reconnects indefinitely.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to the NATS server at url. Extra options (for
// example disconnect handlers) are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, "taskgraph-subscriber", []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}, opts)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// chanSub forwards NATS messages to a buffered channel until cancelled.
type chanSub struct {
	ch     chan []byte
	mu     sync.Mutex
	closed bool
	once   sync.Once
	sub    *nats.Subscription
}

func (c *chanSub) deliver(msg *nats.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- msg.Data:
	default:
	}
}

// cancel unsubscribes, discards undelivered payloads and closes the channel.
func (c *chanSub) cancel() {
	c.once.Do(func() {
		_ = c.sub.Unsubscribe()
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		for {
			select {
			case <-c.ch:
			default:
				close(c.ch)
				return
			}
		}
	})
}

// Subscribe returns a channel of raw payloads for topic, which may be a
// wildcard such as TopicAll. The returned cancel unsubscribes and closes
// the channel.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	c := &chanSub{ch: make(chan []byte, subscriptionBuffer)}

	sub, err := s.conn.Subscribe(topic, c.deliver)
	if err != nil {
		close(c.ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	c.sub = sub

	// The subscription must reach the server before publishes on other
	// connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(c.ch)
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}
	return c.ch, c.cancel, nil
}

// SubscribeAll merges several subject patterns into one channel. The
// returned cancel unsubscribes every pattern and closes the channel.
func (s *NATSSubscriber) SubscribeAll(topics ...string) (<-chan []byte, func(), error) {
	return Merge(s, topics...)
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
