// Package fs provides a filesystem-backed messaging.Queue built on viant/afs.
// Messages survive restarts: pending frames live as JSON files, in-flight
// frames are parked under processing and exhausted retries end up in a dead
// letter directory.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"

	"github.com/plenum-ai/plenum/service/messaging"
)

// Config holds configuration for the filesystem queue
type Config struct {
	BasePath   string // Base directory for queue files
	MaxRetries int    // Maximum number of retry attempts
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BasePath:   "/tmp/plenum/queue",
		MaxRetries: 3,
	}
}

// Message implements messaging.Message for the filesystem queue
type Message[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Retries   int       `json:"retries"`

	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack removes the message from the processing directory
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	return m.queue.complete(context.Background(), m)
}

// Nack requeues the message for another attempt, or parks it in the dead
// letter directory once retries are exhausted.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	m.Retries++
	m.UpdatedAt = time.Now()
	return m.queue.fail(context.Background(), m)
}

// Queue implements a filesystem-based messaging.Queue
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue creates a new filesystem-based queue
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BasePath, "pending"),
		processingDir: path.Join(config.BasePath, "processing"),
		dlqDir:        path.Join(config.BasePath, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.dlqDir} {
		exists, _ := fs.Exists(ctx, dir)
		if !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	return q, nil
}

// Publish writes a new message into the pending directory
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	message := &Message[T]{
		ID:        uuid.New().String(),
		Data:      *t,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.upload(ctx, path.Join(q.pendingDir, filename(message.ID)), data)
}

// Consume moves the oldest pending message into the processing directory and
// returns it. It returns (nil, nil) when the queue is empty.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	objects, err := q.fs.List(ctx, q.pendingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	var pending []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			pending = append(pending, obj)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	obj := pending[0]
	message, err := q.read(ctx, obj.URL())
	if err != nil {
		// Quarantine an unreadable message so it does not wedge the queue.
		_ = q.fs.Move(ctx, obj.URL(), path.Join(q.dlqDir, "invalid-"+obj.Name()))
		return nil, err
	}
	message.UpdatedAt = time.Now()
	message.queue = q

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	// Write to processing first so the message is never lost mid-move.
	if err := q.upload(ctx, path.Join(q.processingDir, obj.Name()), data); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err := q.fs.Delete(ctx, obj.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete pending message: %w", err)
	}
	return message, nil
}

// Size returns the number of pending messages
func (q *Queue[T]) Size(ctx context.Context) int {
	objects, err := q.fs.List(ctx, q.pendingDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			count++
		}
	}
	return count
}

func (q *Queue[T]) complete(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	processingPath := path.Join(q.processingDir, filename(m.ID))
	if exists, _ := q.fs.Exists(ctx, processingPath); exists {
		return q.fs.Delete(ctx, processingPath)
	}
	return nil
}

func (q *Queue[T]) fail(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal failed message: %w", err)
	}
	name := filename(m.ID)
	destDir := q.pendingDir
	if m.Retries > q.config.MaxRetries {
		destDir = q.dlqDir
	}
	if err := q.upload(ctx, path.Join(destDir, name), data); err != nil {
		return fmt.Errorf("failed to requeue message: %w", err)
	}
	processingPath := path.Join(q.processingDir, name)
	if exists, _ := q.fs.Exists(ctx, processingPath); exists {
		return q.fs.Delete(ctx, processingPath)
	}
	return nil
}

func (q *Queue[T]) upload(ctx context.Context, dest string, data []byte) error {
	return q.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewBuffer(data))
}

func (q *Queue[T]) read(ctx context.Context, url string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", url, err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", url, err)
	}
	return &message, nil
}

func filename(id string) string {
	return id + ".json"
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
