package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
	ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")
	// ErrKafkaGroupRequired is returned when Consume is called without a group.
	ErrKafkaGroupRequired = errors.New("messaging: kafka consumer group is required")
)

// KafkaConfig configures the Kafka implementation.
type KafkaConfig struct {
	// Brokers lists Kafka broker addresses.
	Brokers []string
	// Dialer configures broker connections; nil uses the kafka-go default.
	Dialer *kafka.Dialer
}

// Kafka is a messaging implementation backed by kafka-go. Consumers must
// belong to a group; offsets are committed on ack.
type Kafka struct {
	brokers []string
	dialer  *kafka.Dialer

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers []*kafka.Reader
	closed  bool
}

// NewKafka constructs a Kafka messaging client.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	return &Kafka{
		brokers: slices.Clone(cfg.Brokers),
		dialer:  cfg.Dialer,
		writers: map[string]*kafka.Writer{},
	}, nil
}

// Close shuts down all Kafka readers and writers.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	writers := k.writers
	readers := k.readers
	k.writers, k.readers = nil, nil
	k.mu.Unlock()

	var closeErr error
	for _, r := range readers {
		closeErr = errors.Join(closeErr, r.Close())
	}
	for _, w := range writers {
		closeErr = errors.Join(closeErr, w.Close())
	}
	return closeErr
}

// Publish sends a message to a Kafka topic.
func (k *Kafka) Publish(ctx context.Context, topic string, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}

	writer, err := k.writer(topic)
	if err != nil {
		return err
	}

	kmsg := kafka.Message{Key: msg.Key, Value: msg.Body, Time: time.Now()}
	for _, h := range msg.Headers {
		if h.Key == "" {
			continue
		}
		kmsg.Headers = append(kmsg.Headers, kafka.Header{Key: h.Key, Value: h.Value})
	}

	if err := writer.WriteMessages(ctx, kmsg); err != nil {
		return fmt.Errorf("messaging: kafka publish: %w", err)
	}

	return nil
}

// Consume reads topic as part of the configured group and blocks until ctx
// is done or fetching fails.
func (k *Kafka) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
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
	if co.group == "" {
		return ErrKafkaGroupRequired
	}

	reader, err := k.reader(topic, co.group)
	if err != nil {
		return err
	}
	defer k.dropReader(reader)

	msgCh := make(chan kafka.Message)
	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for m := range msgCh {
				if err := dispatch(ctx, "kafka", newKafkaMessage(reader, m), handler, co.autoAck); err != nil {
					slog.WarnContext(ctx, "failed to commit kafka message", "topic", topic, "error", err)
				}
			}
		})
	}

	var fetchErr error
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			fetchErr = err
			break
		}
		msgCh <- m
	}
	close(msgCh)
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("messaging: kafka consume: %w", fetchErr)
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, ErrClosed
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  k.brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Dialer:   k.dialer,
	})
	k.writers[topic] = w

	return w, nil
}

func (k *Kafka) reader(topic, group string) (*kafka.Reader, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, ErrClosed
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  group,
		Topic:    topic,
		MaxBytes: 10e6,
		Dialer:   k.dialer,
	})
	k.readers = append(k.readers, r)

	return r, nil
}

func (k *Kafka) dropReader(r *kafka.Reader) {
	k.mu.Lock()
	idx := slices.Index(k.readers, r)
	if idx >= 0 {
		k.readers = slices.Delete(k.readers, idx, idx+1)
	}
	k.mu.Unlock()

	if idx >= 0 {
		_ = r.Close()
	}
}

type kafkaMessage struct {
	responder

	reader *kafka.Reader
	msg    kafka.Message
}

func newKafkaMessage(reader *kafka.Reader, msg kafka.Message) *kafkaMessage {
	return &kafkaMessage{reader: reader, msg: msg}
}

func (m *kafkaMessage) Body() []byte { return m.msg.Value }
func (m *kafkaMessage) Key() []byte  { return m.msg.Key }

func (m *kafkaMessage) Headers() []Header {
	if len(m.msg.Headers) == 0 {
		return nil
	}
	out := make([]Header, 0, len(m.msg.Headers))
	for _, h := range m.msg.Headers {
		out = append(out, Header{Key: h.Key, Value: h.Value})
	}
	return out
}

func (m *kafkaMessage) ID() string {
	return m.msg.Topic + "/" + strconv.Itoa(m.msg.Partition) + "/" + strconv.FormatInt(m.msg.Offset, 10)
}

func (m *kafkaMessage) Topic() string        { return m.msg.Topic }
func (m *kafkaMessage) Timestamp() time.Time { return m.msg.Time }

func (m *kafkaMessage) Ack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.respond() {
		return nil
	}
	return m.reader.CommitMessages(ctx, m.msg)
}

// Nack leaves the offset uncommitted.
func (m *kafkaMessage) Nack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.respond()
	return nil
}
