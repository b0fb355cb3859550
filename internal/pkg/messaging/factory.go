package messaging

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DriverMemory selects the in-process broker.
	DriverMemory = "memory"
	// DriverNATS selects the NATS backend.
	DriverNATS = "nats"
	// DriverKafka selects the Kafka backend.
	DriverKafka = "kafka"
)

// ErrUnknownDriver indicates an unsupported messaging driver.
var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions groups config for supported messaging backends.
type FactoryOptions struct {
	Kafka KafkaConfig
	NATS  NATSConfig
}

// NewFromDriver constructs a Messaging implementation by driver name. An
// empty name selects the in-process broker.
func NewFromDriver(driver string, opts FactoryOptions) (Messaging, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverKafka:
		return NewKafka(opts.Kafka)
	case DriverNATS:
		return NewNATS(opts.NATS)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
