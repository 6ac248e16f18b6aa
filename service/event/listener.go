package event

import (
	"context"

	"github.com/plenum-ai/plenum/internal/log"
)

type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewListener[T any](publisher *Publisher[T], handler func(*Event[T])) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (l *Listener[T]) Stop() {
	l.cancel()
}

func (l *Listener[T]) Start() {
	go func() {
		for {
			anEvent, err := l.publisher.Consume(l.ctx)
			if err != nil {
				if l.ctx.Err() != nil {
					return
				}
				log.GetLogger().Errorf("failed to consume event: %v", err)
				continue
			}
			if anEvent != nil {
				l.handler(anEvent)
			}
		}
	}()
}
