package plenum

import (
	"context"
	"fmt"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/internal/idgen"
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/service/approval"
	"github.com/plenum-ai/plenum/service/runner"
)

// NewSession creates and persists a session bound to the named team.
func (s *Service) NewSession(ctx context.Context, userID, teamName string) (*chat.Session, error) {
	var found bool
	for _, team := range s.teams {
		if team.Name == teamName {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("team %s not found", teamName)
	}
	session := &chat.Session{
		ID:        idgen.New(),
		UserID:    userID,
		Team:      teamName,
		Status:    chat.StatusActive,
		StartedAt: clock.Now(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Session loads a session by id.
func (s *Service) Session(ctx context.Context, id string) (*chat.Session, error) {
	return s.sessions.Load(ctx, id)
}

// PostMessage enqueues a user message for background processing; frames reach
// observers through the event bus.
func (s *Service) PostMessage(ctx context.Context, sessionID, message string) error {
	return s.runner.Submit(ctx, &runner.Task{
		SessionID: sessionID,
		Message:   message,
	})
}

// Pending lists approval requests awaiting a decision.
func (s *Service) Pending(ctx context.Context, filters ...approval.PendingFilter) ([]*approval.Request, error) {
	return approval.ListPending(ctx, s.approvals, filters...)
}

// Decide records a decision for a parked tool call.
func (s *Service) Decide(ctx context.Context, id string, approved bool, reason string) (*approval.Decision, error) {
	return s.approvals.Decide(ctx, id, approved, reason)
}
