package event

import (
	"context"
	"time"

	"github.com/plenum-ai/plenum/service/messaging"
)

// Publisher writes typed events to their queue and mirrors each one onto
// the any-typed firehose when the service wired it.
type Publisher[T any] struct {
	queue    messaging.Queue[Event[T]]
	anyQueue messaging.Queue[Event[any]]
}

// NewPublisher creates a publisher over an existing queue.
func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{
		queue: queue,
	}
}

// Publish stamps the event and enqueues it. Firehose delivery is best
// effort.
func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = time.Now()
	if p.anyQueue != nil {
		_ = p.anyQueue.Publish(ctx, &Event[any]{
			Context:   event.Context,
			CreatedAt: event.CreatedAt,
			Metadata:  event.Metadata,
			Data:      event.Data,
		})
	}
	return p.queue.Publish(ctx, event)
}

// Consume pops and acknowledges the next event, or nil when none is
// pending.
func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
