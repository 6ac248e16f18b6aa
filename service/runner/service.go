// Package runner processes queued session tasks with a pool of workers. It is
// the asynchronous counterpart to the streaming endpoint: tasks submitted
// here are picked up in the background and their frames reach observers
// through the event bus.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/internal/idgen"
	"github.com/plenum-ai/plenum/internal/log"
	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/service/cost"
	"github.com/plenum-ai/plenum/service/dao"
	"github.com/plenum-ai/plenum/service/messaging"
	"github.com/plenum-ai/plenum/service/orchestrator"
)

// Task is one queued unit of work: run the orchestrator over a session,
// optionally appending a new user message first.
type Task struct {
	SessionID string          `json:"sessionId"`
	Message   string          `json:"message,omitempty"`
	Context   json.RawMessage `json:"context,omitempty"`
}

// TeamResolver maps a session's team name to its roster.
type TeamResolver func(name string) *agent.Team

// Config represents runner configuration.
type Config struct {
	WorkerCount int
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{WorkerCount: 5}
}

// Service drains the task queue.
type Service struct {
	config       Config
	orchestrator *orchestrator.Service
	sessions     dao.Service[string, chat.Session]
	queue        messaging.Queue[Task]
	resolver     TeamResolver
	logger       *logrus.Logger

	mu       sync.Mutex
	trackers map[string]*cost.Tracker

	workerWg sync.WaitGroup
	cancel   context.CancelFunc
}

// New creates a runner service.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:   DefaultConfig(),
		trackers: make(map[string]*cost.Tracker),
		logger:   log.GetLogger(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if s.queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if s.sessions == nil {
		return nil, fmt.Errorf("session DAO is required")
	}
	if s.resolver == nil {
		return nil, fmt.Errorf("team resolver is required")
	}
	return s, nil
}

// Submit enqueues a task.
func (s *Service) Submit(ctx context.Context, task *Task) error {
	if task == nil || task.SessionID == "" {
		return fmt.Errorf("task requires a session id")
	}
	return s.queue.Publish(ctx, task)
}

// Start launches the worker pool.
func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.config.WorkerCount; i++ {
		s.workerWg.Add(1)
		go s.work(ctx, i)
	}
	return nil
}

// Shutdown stops the workers and waits for in-flight tasks.
func (s *Service) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.workerWg.Wait()
}

func (s *Service) work(ctx context.Context, id int) {
	defer s.workerWg.Done()
	for {
		msg, err := s.queue.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if msg == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		if err := s.process(ctx, msg.T()); err != nil {
			// shutdown is not a task failure; the nack keeps it redeliverable
			if !errors.Is(err, context.Canceled) {
				s.logger.WithFields(logrus.Fields{
					"worker": id,
					"error":  err,
				}).Error("task failed")
			}
			_ = msg.Nack(err)
			continue
		}
		_ = msg.Ack()
	}
}

func (s *Service) process(ctx context.Context, task *Task) error {
	session, err := s.sessions.Load(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", task.SessionID, err)
	}
	if session == nil {
		return fmt.Errorf("session %s: %w", task.SessionID, dao.ErrNotFound)
	}
	team := s.resolver(session.Team)
	if team == nil {
		return fmt.Errorf("team %s not found", session.Team)
	}
	if task.Message != "" {
		if session.Status != chat.StatusActive {
			session.Reopen()
		}
		session.Append(&chat.Message{
			ID:        idgen.New(),
			Role:      chat.RoleUser,
			Content:   task.Message,
			Context:   task.Context,
			CreatedAt: clock.Now(),
		})
	}

	run := &orchestrator.Run{
		Session: session,
		Team:    team,
		Tracker: s.tracker(session.ID),
	}
	execErr := s.orchestrator.Execute(ctx, run)
	if err := s.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return execErr
}

// tracker returns the session's cost tracker, so spend accumulates across
// tasks of the same session.
func (s *Service) tracker(sessionID string) *cost.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracker := s.trackers[sessionID]
	if tracker == nil {
		tracker = cost.NewTracker(nil)
		s.trackers[sessionID] = tracker
	}
	return tracker
}
