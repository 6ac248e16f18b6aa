package runner

import (
	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/service/dao"
	"github.com/plenum-ai/plenum/service/messaging"
	"github.com/plenum-ai/plenum/service/orchestrator"
)

type Option func(*Service)

// WithOrchestrator sets the orchestrator executing each task.
func WithOrchestrator(orch *orchestrator.Service) Option {
	return func(s *Service) {
		s.orchestrator = orch
	}
}

// WithSessionDAO sets the session store implementation.
func WithSessionDAO(sessions dao.Service[string, chat.Session]) Option {
	return func(s *Service) {
		s.sessions = sessions
	}
}

// WithMessageQueue sets the task queue implementation.
func WithMessageQueue(queue messaging.Queue[Task]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithTeamResolver sets how a session's team name is resolved to a roster.
func WithTeamResolver(resolver TeamResolver) Option {
	return func(s *Service) {
		s.resolver = resolver
	}
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.config.WorkerCount = count
		}
	}
}

// WithTeams resolves team names from a fixed set.
func WithTeams(teams ...*agent.Team) Option {
	index := map[string]*agent.Team{}
	for _, team := range teams {
		index[team.Name] = team
	}
	return WithTeamResolver(func(name string) *agent.Team {
		return index[name]
	})
}
