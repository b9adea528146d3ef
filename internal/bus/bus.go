// Package bus is the message-bus collaborator (out of scope per spec.md
// section 1 — "the message-bus client library" is external): this package
// only fixes the Consumer/Producer shape the ingest pipeline programs
// against, plus a kafka-go-backed implementation.
package bus

import "context"

// Message is one bus record: a topic, an opaque payload, and an offset the
// consumer can use to track progress.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Offset  int64
}

// Consumer reads batches of messages from one or more topics.
type Consumer interface {
	// FetchBatch blocks until up to maxMessages are available or ctx is done.
	FetchBatch(ctx context.Context, maxMessages int) ([]Message, error)
	// Commit acknowledges messages up to and including the given offset.
	Commit(ctx context.Context, offset int64) error
	Close() error
}

// Producer publishes messages. KafkaProducer implements it; no other
// package in this module calls it.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
	Close() error
}
