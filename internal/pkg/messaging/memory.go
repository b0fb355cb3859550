package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

const (
	memoryBufferSize    = 256
	memoryMaxDeliveries = 3
)

// ErrQueueFull is returned by Memory.Publish when a consumer's buffer has no
// room. Publish never waits for a slow consumer.
var ErrQueueFull = errors.New("messaging: consumer queue full")

// Memory is an in-process broker. Consumers in the same group share the
// messages of a topic round-robin; every group receives each message once.
// Nacked messages are redelivered up to three times in total.
type Memory struct {
	mu     sync.Mutex
	closed bool
	done   chan struct{}
	topics map[string]map[string]*memoryGroup
	seq    uint64
}

type memoryGroup struct {
	queues []chan *memoryMessage
	next   int
}

// NewMemory returns an in-process broker.
func NewMemory() *Memory {
	return &Memory{
		done:   make(chan struct{}),
		topics: make(map[string]map[string]*memoryGroup),
	}
}

// Close stops all consumers. Publishing afterwards returns ErrClosed.
func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

// Publish delivers msg to one consumer of every group subscribed to topic.
// Messages published while nobody listens are dropped, and a group whose
// chosen consumer is backed up yields ErrQueueFull.
func (b *Memory) Publish(ctx context.Context, topic string, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.seq++
	id := strconv.FormatUint(b.seq, 10)
	targets := make([]chan *memoryMessage, 0, len(b.topics[topic]))
	for _, g := range b.topics[topic] {
		targets = append(targets, g.queues[g.next%len(g.queues)])
		g.next++
	}
	b.mu.Unlock()

	now := time.Now()
	var errs []error
	for _, q := range targets {
		m := &memoryMessage{
			id:        id,
			topic:     topic,
			body:      append([]byte(nil), msg.Body...),
			key:       msg.Key,
			headers:   append([]Header(nil), msg.Headers...),
			timestamp: now,
			delivery:  1,
		}
		select {
		case q <- m:
		default:
			errs = append(errs, ErrQueueFull)
		}
	}

	return errors.Join(errs...)
}

// Consume registers a consumer on topic and blocks until ctx is done or the
// broker is closed.
func (b *Memory) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
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
	queue := make(chan *memoryMessage, memoryBufferSize)

	unsubscribe, err := b.subscribe(topic, co.group, queue)
	if err != nil {
		return err
	}
	defer unsubscribe()

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-b.done:
					return
				case m := <-queue:
					m.requeue = func(m *memoryMessage) {
						_ = b.enqueue(context.WithoutCancel(ctx), queue, m)
					}
					if err := dispatch(ctx, "memory", m, handler, co.autoAck); err != nil {
						slog.WarnContext(ctx, "failed to ack memory message", "topic", topic, "error", err)
					}
				}
			}
		})
	}
	wg.Wait()

	select {
	case <-b.done:
		return nil
	default:
		return ctx.Err()
	}
}

func (b *Memory) subscribe(topic, group string, queue chan *memoryMessage) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.seq++
	if group == "" {
		group = "_solo_" + strconv.FormatUint(b.seq, 10)
	}

	groups := b.topics[topic]
	if groups == nil {
		groups = make(map[string]*memoryGroup)
		b.topics[topic] = groups
	}
	g := groups[group]
	if g == nil {
		g = &memoryGroup{}
		groups[group] = g
	}
	g.queues = append(g.queues, queue)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for i, q := range g.queues {
			if q == queue {
				g.queues = append(g.queues[:i], g.queues[i+1:]...)
				break
			}
		}
		if len(g.queues) == 0 {
			delete(groups, group)
		}
	}, nil
}

// Subscribers returns the number of consumer workers attached to topic.
func (b *Memory) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, g := range b.topics[topic] {
		n += len(g.queues)
	}
	return n
}

func (b *Memory) enqueue(ctx context.Context, q chan *memoryMessage, m *memoryMessage) error {
	select {
	case q <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
}

type memoryMessage struct {
	responder

	id        string
	topic     string
	body      []byte
	key       []byte
	headers   []Header
	timestamp time.Time
	delivery  int
	requeue   func(*memoryMessage)
}

func (m *memoryMessage) Body() []byte         { return m.body }
func (m *memoryMessage) Key() []byte          { return m.key }
func (m *memoryMessage) Headers() []Header    { return m.headers }
func (m *memoryMessage) ID() string           { return m.id }
func (m *memoryMessage) Topic() string        { return m.topic }
func (m *memoryMessage) Timestamp() time.Time { return m.timestamp }

func (m *memoryMessage) Ack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.respond()
	return nil
}

func (m *memoryMessage) Nack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.respond() {
		return nil
	}
	if m.delivery >= memoryMaxDeliveries || m.requeue == nil {
		return nil
	}

	next := &memoryMessage{
		id:        m.id,
		topic:     m.topic,
		body:      m.body,
		key:       m.key,
		headers:   m.headers,
		timestamp: m.timestamp,
		delivery:  m.delivery + 1,
	}
	go m.requeue(next)

	return nil
}
