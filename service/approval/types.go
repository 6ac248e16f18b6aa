package approval

import (
	"encoding/json"
	"time"
)

// Event envelope published on the approval queue.
type Event struct {
	Topic   string            // see topic constants below
	Data    interface{}       // *Request | *Decision
	Headers map[string]string `json:"headers,omitempty"` // optional – tenant, correlation-id etc.
}

// Standard event topics.
const (
	TopicRequestCreated  = "request.created"
	TopicRequestExpired  = "request.expired"
	TopicDecisionCreated = "decision.created"
)

// Request represents a request for user approval of a specific tool call
// before the action can be carried out.
type Request struct {
	ID        string                 `json:"id"`                  // Globally unique, primary key
	SessionID string                 `json:"sessionId"`           // Refers to chat.Session.ID
	CallID    string                 `json:"callId"`              // Refers to the parked tool call
	Agent     string                 `json:"agent"`               // Requesting agent name
	Action    string                 `json:"action"`              // "service.method"
	Args      json.RawMessage        `json:"args,omitempty"`      // JSON-encoded expanded input, may be null
	CreatedAt time.Time              `json:"createdAt"`           // RFC-3339 timestamp
	ExpiresAt *time.Time             `json:"expiresAt,omitempty"` // Optional deadline
	Meta      map[string]interface{} `json:"meta,omitempty"`      // Free-form map: tenant, user, environment, etc.
}

// Decision represents approval decision
type Decision struct {
	ID        string    `json:"id"` // same as request.ID
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}
