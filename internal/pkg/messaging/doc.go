// Package messaging provides a broker-agnostic API for publishing and
// consuming messages.
//
// Business code depends on the Messaging interface; the broker (in-process
// memory, NATS or Kafka) is chosen by configuration through NewFromDriver.
package messaging
