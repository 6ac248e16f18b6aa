package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/plenum-ai/plenum/service/messaging"
)

type turnEvent struct {
	Agent   string
	Content string
}

func TestTypedPublishAndListen(t *testing.T) {
	svc, err := New(messaging.VendorMemory)
	assert.NoError(t, err)

	var mu sync.Mutex
	var received []turnEvent
	err = SetListenerOf[turnEvent](svc, func(e *Event[turnEvent]) {
		mu.Lock()
		received = append(received, e.Data)
		mu.Unlock()
	})
	assert.NoError(t, err)

	publisher, err := PublisherOf[turnEvent](svc)
	assert.NoError(t, err)

	ctx := context.Background()
	err = publisher.Publish(ctx, NewEvent(&Context{SessionID: "s1", Agent: "planner", EventType: "delta"}, turnEvent{Agent: "planner", Content: "hi"}))
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "planner", received[0].Agent)
}

func TestFirehoseMirrorsTypedEvents(t *testing.T) {
	svc, err := New(messaging.VendorMemory)
	assert.NoError(t, err)

	var mu sync.Mutex
	count := 0
	svc.SetListener(func(e *Event[any]) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	publisher, err := PublisherOf[turnEvent](svc)
	assert.NoError(t, err)
	assert.NoError(t, publisher.Publish(context.Background(), NewEvent(&Context{SessionID: "s1"}, turnEvent{Content: "x"})))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 10*time.Millisecond)
}

func TestUnsupportedVendor(t *testing.T) {
	_, err := New("kafka")
	assert.Error(t, err)
}
