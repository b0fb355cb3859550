package messaging

type consumeOptions struct {
	// concurrency is the number of handler goroutines.
	concurrency int
	// autoAck acks or nacks from the handler result.
	autoAck bool
	// group is the Kafka consumer group or NATS queue group. Consumers sharing
	// a group split the messages of a topic between them.
	group string
}

// ConsumeOption configures consumer behavior.
type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	co := consumeOptions{concurrency: 1}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&co)
	}
	if co.concurrency <= 0 {
		co.concurrency = 1
	}
	return co
}

// WithConcurrency sets how many handler goroutines process messages in parallel.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithGroup sets the consumer group (Kafka) or queue group (NATS, memory).
func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

// WithAutoAck controls whether messages are acked or nacked from the handler result.
func WithAutoAck(autoAck bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = autoAck }
}
