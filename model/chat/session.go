package chat

import (
	"sync"
	"time"
)

// Status represents session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Termination enumerates why a session run stopped.
type Termination string

const (
	TerminationFinal          Termination = "final"
	TerminationMaxRounds      Termination = "max_rounds"
	TerminationBudgetExceeded Termination = "budget_exceeded"
	TerminationCancelled      Termination = "cancelled"
	TerminationError          Termination = "error"
)

// Session holds one conversation between a user and a team of agents. The
// transcript is append-only; concurrent readers (streaming relay, DAO
// snapshots) take a copy under the lock.
type Session struct {
	ID           string      `json:"id"`
	UserID       string      `json:"userId"`
	Team         string      `json:"team"`
	Status       Status      `json:"status"`
	Termination  Termination `json:"termination,omitempty"`
	Error        string      `json:"error,omitempty"`
	Rounds       int         `json:"rounds"`
	InputTokens  int64       `json:"inputTokens"`
	OutputTokens int64       `json:"outputTokens"`
	CostUSD      float64     `json:"costUsd"`
	StartedAt    time.Time   `json:"startedAt"`
	EndedAt      *time.Time  `json:"endedAt,omitempty"`
	Transcript   []*Message  `json:"transcript,omitempty"`

	mu sync.RWMutex
}

// Append adds a message to the transcript.
func (s *Session) Append(msg *Message) {
	if msg == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.SessionID = s.ID
	s.Transcript = append(s.Transcript, msg)
}

// Messages returns a snapshot of the transcript.
func (s *Session) Messages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Message, len(s.Transcript))
	copy(out, s.Transcript)
	return out
}

// LastMessage returns the newest transcript entry or nil.
func (s *Session) LastMessage() *Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Transcript) == 0 {
		return nil
	}
	return s.Transcript[len(s.Transcript)-1]
}

// LastSpeaker returns the most recent assistant agent name, or "".
func (s *Session) LastSpeaker() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == RoleAssistant {
			return s.Transcript[i].Agent
		}
	}
	return ""
}

// TurnsSinceSpoke returns how many assistant turns happened since the given
// agent last spoke; ok is false when the agent never spoke.
func (s *Session) TurnsSinceSpoke(agentName string) (turns int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		msg := s.Transcript[i]
		if msg.Role != RoleAssistant {
			continue
		}
		if msg.Agent == agentName {
			return turns, true
		}
		turns++
	}
	return turns, false
}

// Finish marks the session terminal.
func (s *Session) Finish(status Status, reason Termination, endedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.Termination = reason
	s.EndedAt = &endedAt
}

// Reopen returns a finished session to the active state so a follow-up user
// message can start another run on the same transcript.
func (s *Session) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusActive
	s.Termination = ""
	s.Error = ""
	s.EndedAt = nil
}
