package plenum

import (
	"context"
	"fmt"

	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/server"
	"github.com/plenum-ai/plenum/service/approval"
	approvalmem "github.com/plenum-ai/plenum/service/approval/memory"
	"github.com/plenum-ai/plenum/service/dao"
	sessiondao "github.com/plenum-ai/plenum/service/dao/session"
	"github.com/plenum-ai/plenum/service/event"
	"github.com/plenum-ai/plenum/service/messaging"
	mmemory "github.com/plenum-ai/plenum/service/messaging/memory"
	"github.com/plenum-ai/plenum/service/orchestrator"
	"github.com/plenum-ai/plenum/service/provider"
	"github.com/plenum-ai/plenum/service/rag"
	"github.com/plenum-ai/plenum/service/runner"
	"github.com/plenum-ai/plenum/service/selector"
	"github.com/plenum-ai/plenum/service/tool"
	toolclock "github.com/plenum-ai/plenum/service/tool/clock"
	toolmemory "github.com/plenum-ai/plenum/service/tool/memory"
)

// Service is the embeddable façade: it wires the provider, the orchestrator,
// the tool registry, persistence and transport from a single configuration.
type Service struct {
	config       *Config
	provider     provider.Provider
	teams        []*agent.Team
	sessions     dao.Service[string, chat.Session]
	approvals    approval.Service
	events       *event.Service
	memory       rag.Service
	queue        messaging.Queue[runner.Task]
	registry     *tool.Registry
	toolServices []tool.Service

	orchestrator *orchestrator.Service
	runner       *runner.Service
	server       *server.Server
}

// New creates a fully wired service.
func New(options ...Option) (*Service, error) {
	s := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(s)
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) init() error {
	if s.provider == nil {
		return fmt.Errorf("provider is required")
	}
	if len(s.teams) == 0 {
		return fmt.Errorf("at least one team is required")
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	for _, team := range s.teams {
		if err := team.Validate(); err != nil {
			return err
		}
	}
	s.ensureBaseSetup()

	dispatcher, err := tool.NewDispatcher(s.registry, tool.WithApprovalService(s.approvals))
	if err != nil {
		return err
	}
	emitter, err := orchestrator.NewEmitter(s.events)
	if err != nil {
		return err
	}
	s.orchestrator, err = orchestrator.New(s.provider,
		orchestrator.WithConfig(s.config.Orchestrator),
		orchestrator.WithSelector(selector.New(s.config.Selector)),
		orchestrator.WithTools(s.registry, dispatcher),
		orchestrator.WithMemory(s.memory, s.config.Rag),
		orchestrator.WithEmitter(emitter),
	)
	if err != nil {
		return err
	}
	s.runner, err = runner.New(
		runner.WithOrchestrator(s.orchestrator),
		runner.WithSessionDAO(s.sessions),
		runner.WithMessageQueue(s.queue),
		runner.WithTeams(s.teams...),
		runner.WithWorkers(s.config.Runner.Workers),
	)
	if err != nil {
		return err
	}
	s.server, err = server.New(s.orchestrator,
		server.WithConfig(s.config.Server),
		server.WithSessionDAO(s.sessions),
		server.WithApprovalService(s.approvals),
		server.WithTeams(s.teams...),
		server.WithPolicy(s.config.Policy),
	)
	return err
}

func (s *Service) ensureBaseSetup() {
	if s.sessions == nil {
		s.sessions = sessiondao.NewMemory()
	}
	if s.approvals == nil {
		s.approvals = approvalmem.New()
	}
	if s.events == nil {
		s.events, _ = event.New(messaging.VendorMemory)
	}
	if s.memory == nil {
		s.memory = rag.NewMemory(s.config.Rag)
	}
	if s.queue == nil {
		s.queue = mmemory.NewQueue[runner.Task](mmemory.DefaultConfig())
	}
	if s.registry == nil {
		s.registry = tool.New()
	}
	s.registry.Register(toolclock.New())
	s.registry.Register(toolmemory.New(s.memory, s.config.Rag.TopK))
	for _, service := range s.toolServices {
		s.registry.Register(service)
	}
}

// Start launches the background worker pool.
func (s *Service) Start(ctx context.Context) error {
	return s.runner.Start(ctx)
}

// Serve starts the HTTP server and blocks until ctx is cancelled.
func (s *Service) Serve(ctx context.Context) error {
	return s.server.ListenAndServe(ctx)
}

// Shutdown drains the worker pool.
func (s *Service) Shutdown() {
	s.runner.Shutdown()
}

// Orchestrator exposes the underlying run loop, mainly for embedding.
func (s *Service) Orchestrator() *orchestrator.Service {
	return s.orchestrator
}

// Runner exposes the background task pool.
func (s *Service) Runner() *runner.Service {
	return s.runner
}

// Server exposes the HTTP surface.
func (s *Service) Server() *server.Server {
	return s.server
}

// Approvals exposes the approval service for embedding hosts.
func (s *Service) Approvals() approval.Service {
	return s.approvals
}

// Events exposes the event bus.
func (s *Service) Events() *event.Service {
	return s.events
}

// Registry exposes the tool registry so hosts can register custom tools.
func (s *Service) Registry() *tool.Registry {
	return s.registry
}
