package plenum

import (
	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/service/approval"
	"github.com/plenum-ai/plenum/service/dao"
	"github.com/plenum-ai/plenum/service/event"
	"github.com/plenum-ai/plenum/service/messaging"
	"github.com/plenum-ai/plenum/service/provider"
	"github.com/plenum-ai/plenum/service/rag"
	"github.com/plenum-ai/plenum/service/runner"
	"github.com/plenum-ai/plenum/service/tool"
)

type Option func(s *Service)

// WithConfig sets the service configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithProvider sets the model provider.
func WithProvider(p provider.Provider) Option {
	return func(s *Service) { s.provider = p }
}

// WithTeams registers the agent rosters served by this instance.
func WithTeams(teams ...*agent.Team) Option {
	return func(s *Service) { s.teams = append(s.teams, teams...) }
}

// WithSessionDAO sets the session store.
func WithSessionDAO(sessions dao.Service[string, chat.Session]) Option {
	return func(s *Service) { s.sessions = sessions }
}

// WithApprovalService sets the approval service.
func WithApprovalService(svc approval.Service) Option {
	return func(s *Service) { s.approvals = svc }
}

// WithEventService sets the event bus.
func WithEventService(svc *event.Service) Option {
	return func(s *Service) { s.events = svc }
}

// WithMemory sets the retrieval store backing context injection and the
// memory tool.
func WithMemory(store rag.Service) Option {
	return func(s *Service) { s.memory = store }
}

// WithQueue sets the background task queue.
func WithQueue(queue messaging.Queue[runner.Task]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithToolServices registers additional tool services.
func WithToolServices(services ...tool.Service) Option {
	return func(s *Service) { s.toolServices = append(s.toolServices, services...) }
}
