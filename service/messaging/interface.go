package messaging

import (
	"context"
)

// Vendor names a queue backend.
type Vendor string

const (
	VendorMemory Vendor = "memory"
	VendorFs     Vendor = "fs"
)

// Queue carries typed payloads between producers and the worker pool. The
// event bus layers typed publishers on top of the same contract.
type Queue[T any] interface {
	// Publish enqueues a payload.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message, or nil when the queue is empty.
	Consume(ctx context.Context) (Message[T], error)
}

// Message is one consumed queue entry awaiting acknowledgement.
type Message[T any] interface {
	// T returns the payload.
	T() *T

	// Ack marks the message as processed.
	Ack() error

	// Nack returns the message for redelivery, recording err.
	Nack(err error) error
}
