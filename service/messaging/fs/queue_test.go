package fs

import (
	"context"
	"fmt"
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

type testPayload struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func TestQueue(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "queue-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	fs := afs.New()
	ctx := context.Background()
	queue, err := NewQueue[testPayload](fs, Config{BasePath: tempDir, MaxRetries: 2})
	assert.NoError(t, err)
	assert.NotNil(t, queue)

	for _, dir := range []string{queue.pendingDir, queue.processingDir, queue.dlqDir} {
		exists, err := fs.Exists(ctx, dir)
		assert.NoError(t, err)
		assert.True(t, exists, fmt.Sprintf("directory %s should exist", dir))
	}

	payloads := []testPayload{
		{ID: "1", Message: "first"},
		{ID: "2", Message: "second"},
	}
	for i := range payloads {
		assert.NoError(t, queue.Publish(ctx, &payloads[i]))
	}
	assert.Equal(t, 2, queue.Size(ctx))

	for i := 0; i < len(payloads); i++ {
		message, err := queue.Consume(ctx)
		assert.NoError(t, err)
		assert.NotNil(t, message)
		assert.Contains(t, []string{"1", "2"}, message.T().ID)
		assert.NoError(t, message.Ack())
	}
	assert.Equal(t, 0, queue.Size(ctx))

	// empty queue
	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, message)
}

func TestQueueRetriesToDLQ(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "queue-dlq-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	fs := afs.New()
	ctx := context.Background()
	queue, err := NewQueue[testPayload](fs, Config{BasePath: tempDir, MaxRetries: 2})
	assert.NoError(t, err)

	assert.NoError(t, queue.Publish(ctx, &testPayload{ID: "fail"}))

	// nack until the message exceeds MaxRetries; it should land in the DLQ
	for attempt := 0; attempt <= 2; attempt++ {
		message, err := queue.Consume(ctx)
		assert.NoError(t, err)
		assert.NotNil(t, message, "attempt %d", attempt)
		assert.NoError(t, message.Nack(assert.AnError))
	}

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, message, "message should be parked in DLQ")

	dlqObjects, err := fs.List(ctx, path.Join(tempDir, "dlq"))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(dlqObjects)-1, "should have one file in DLQ")
}

func TestQueueInitialization(t *testing.T) {
	fs := afs.New()
	_, err := NewQueue[testPayload](fs, Config{})
	assert.Error(t, err, "should error with empty BasePath")

	tempDir := path.Join(os.TempDir(), fmt.Sprintf("queue-init-test-%d", time.Now().UnixNano()))
	defer os.RemoveAll(tempDir)
	queue, err := NewQueue[testPayload](fs, Config{BasePath: tempDir, MaxRetries: 1})
	assert.NoError(t, err)
	assert.NotNil(t, queue)
}
