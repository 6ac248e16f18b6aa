package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testPayload struct {
	ID      string
	Message string
}

func TestQueue(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testPayload](config)

	ctx := context.Background()
	payload := testPayload{ID: "test-1", Message: "hello"}

	err := queue.Publish(ctx, &payload)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, payload.ID, message.T().ID)
	assert.Equal(t, payload.Message, message.T().Message)

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack(), "double ack should fail")
}

func TestQueueRetries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testPayload](config)

	ctx := context.Background()
	err := queue.Publish(ctx, &testPayload{ID: "retry-test"})
	assert.NoError(t, err)

	// fail the message MaxRetries+1 times; it should land in the DLQ
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		message, err := queue.Consume(ctx)
		cancel()
		assert.NoError(t, err)
		assert.NoError(t, message.Nack(assert.AnError))
	}

	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueueConsumeCancelled(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
