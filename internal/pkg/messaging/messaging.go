package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnsupported is returned when a feature is not supported by the selected broker.
	ErrUnsupported = errors.New("messaging: unsupported operation")
	// ErrClosed is returned when the client has been closed.
	ErrClosed = errors.New("messaging: client closed")
	// ErrTopicRequired is returned when the topic is empty.
	ErrTopicRequired = errors.New("messaging: topic is required")
	// ErrHandlerRequired is returned when Consume is called with a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
)

// Messaging is a broker-agnostic client that can publish and consume messages.
type Messaging interface {
	io.Closer

	Publisher
	Consumer
}

// Publisher publishes messages to a topic (subject for NATS).
type Publisher interface {
	Publish(ctx context.Context, topic string, msg OutgoingMessage) error
}

// Consumer consumes messages from a topic. Consume blocks until ctx is done
// or the client is closed.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes a received message.
//
// With auto-ack enabled a nil error acks the message and a non-nil error
// nacks it. Handlers may also ack or nack explicitly.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to be published.
type OutgoingMessage struct {
	Body []byte
	// Key is used by Kafka for partitioning.
	Key     []byte
	Headers []Header
}

// Header is a key/value pair carried with a message.
type Header struct {
	Key   string
	Value []byte
}

// Message is a received message.
type Message interface {
	Body() []byte
	Key() []byte
	Headers() []Header
	// ID returns a broker-specific identifier, possibly empty.
	ID() string
	Topic() string
	Timestamp() time.Time

	// Ack acknowledges successful processing.
	Ack(ctx context.Context) error
	// Nack asks for redelivery where the broker supports it.
	Nack(ctx context.Context) error
}

// HeaderValue returns the first value for key, or "" when absent.
func HeaderValue(headers []Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
