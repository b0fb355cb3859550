package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNATSURLRequired is returned when the NATS server URL is missing.
var ErrNATSURLRequired = errors.New("messaging: nats url is required")

// NATSConfig configures the NATS implementation.
type NATSConfig struct {
	// URL is the NATS server address.
	URL string
	// Options are passed to the NATS client.
	Options []nats.Option
}

// NATS is a messaging implementation backed by core NATS. Topics map to
// subjects and groups map to queue groups.
type NATS struct {
	conn *nats.Conn

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
}

// NewNATS constructs a NATS messaging client.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}

	return &NATS{conn: conn}, nil
}

// Close drains subscriptions and closes the NATS connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	var closeErr error
	for _, sub := range subs {
		closeErr = errors.Join(closeErr, sub.Drain())
	}

	closeErr = errors.Join(closeErr, n.conn.Drain())
	n.conn.Close()

	return closeErr
}

// Publish sends a message to a NATS subject.
func (n *NATS) Publish(ctx context.Context, topic string, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}

	nmsg := nats.NewMsg(topic)
	nmsg.Data = msg.Body
	for _, h := range msg.Headers {
		if h.Key == "" {
			continue
		}
		nmsg.Header.Add(h.Key, string(h.Value))
	}

	if err := n.conn.PublishMsg(nmsg); err != nil {
		return fmt.Errorf("messaging: nats publish: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("messaging: nats flush: %w", err)
	}

	return nil
}

// Consume subscribes to a NATS subject and blocks until ctx is done.
func (n *NATS) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)
	msgCh := make(chan *nats.Msg, co.concurrency)

	sub, err := n.conn.QueueSubscribe(topic, co.group, func(m *nats.Msg) {
		select {
		case msgCh <- m:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for m := range msgCh {
				// core NATS has no redelivery, ack errors are dropped
				_ = dispatch(ctx, "nats", newNATSMessage(m, time.Now()), handler, co.autoAck)
			}
		})
	}

	stop := func(cause error) error {
		uerr := sub.Drain()
		close(msgCh)
		wg.Wait()
		return errors.Join(cause, uerr)
	}

	if err := n.track(sub); err != nil {
		return stop(err)
	}
	if err := n.conn.Flush(); err != nil {
		return stop(fmt.Errorf("messaging: nats flush: %w", err))
	}

	<-ctx.Done()

	return stop(ctx.Err())
}

func (n *NATS) track(sub *nats.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	n.subs = append(n.subs, sub)
	return nil
}

type natsMessage struct {
	responder

	msg        *nats.Msg
	receivedAt time.Time
}

func newNATSMessage(msg *nats.Msg, receivedAt time.Time) *natsMessage {
	return &natsMessage{msg: msg, receivedAt: receivedAt}
}

func (m *natsMessage) Body() []byte { return m.msg.Data }
func (m *natsMessage) Key() []byte  { return nil }

func (m *natsMessage) Headers() []Header {
	if len(m.msg.Header) == 0 {
		return nil
	}

	var headers []Header
	for k, values := range m.msg.Header {
		for _, v := range values {
			headers = append(headers, Header{Key: k, Value: []byte(v)})
		}
	}
	return headers
}

func (m *natsMessage) ID() string           { return "" }
func (m *natsMessage) Topic() string        { return m.msg.Subject }
func (m *natsMessage) Timestamp() time.Time { return m.receivedAt }

func (m *natsMessage) Ack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.respond() {
		return nil
	}
	if err := m.msg.Ack(); err != nil && !isNATSAckUnsupported(err) {
		return err
	}
	return nil
}

func (m *natsMessage) Nack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.respond() {
		return nil
	}
	if err := m.msg.Nak(); err != nil && !isNATSAckUnsupported(err) {
		return err
	}
	return nil
}

func isNATSAckUnsupported(err error) bool {
	return errors.Is(err, nats.ErrMsgNoReply) || errors.Is(err, nats.ErrMsgNotBound)
}
