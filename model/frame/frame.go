// Package frame defines the JSON wire frames exchanged over the streaming
// WebSocket endpoint. Server frames carry {type, event, data}; client frames
// carry {message, context}.
package frame

import (
	"encoding/json"
	"time"
)

// Frame classes carried in the "type" field.
const (
	TypeStream = "stream"
	TypeStatus = "status"
	TypeError  = "error"
)

// Event names carried in the "event" field.
const (
	EventSessionCreated = "status:session_created"
	EventHeartbeat      = "status:heartbeat"
	EventDisabled       = "status:disabled"
	EventAgentStatus    = "agent_status"
	EventDelta          = "delta"
	EventToolCall       = "tool_call"
	EventToolResult     = "tool_result"
	EventHandoff        = "handoff"
	EventFinal          = "final"
	EventError          = "error"
)

// Chunk content classes for Delta frames.
const (
	ChunkTypeText     = "text"
	ChunkTypeThinking = "thinking"
)

// Client is the single client→server frame shape.
type Client struct {
	Message string          `json:"message"`
	Context json.RawMessage `json:"context,omitempty"`
}

// Server is the envelope for every server→client frame.
type Server struct {
	Type  string      `json:"type"`
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// SessionCreated announces the session id assigned to a connection.
type SessionCreated struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	AgentName string    `json:"agent_name"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentStatus reports a speaker transition.
type AgentStatus struct {
	SessionID string    `json:"session_id"`
	AgentName string    `json:"agent_name"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Delta carries streamed model output. Every delta frame has all six fields
// populated.
type Delta struct {
	ChunkID   string    `json:"chunk_id"`
	SessionID string    `json:"session_id"`
	AgentName string    `json:"agent_name"`
	ChunkType string    `json:"chunk_type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolCall reports a tool invocation request.
type ToolCall struct {
	CallID    string          `json:"call_id"`
	SessionID string          `json:"session_id"`
	AgentName string          `json:"agent_name"`
	Action    string          `json:"action"`
	Args      json.RawMessage `json:"args,omitempty"`
	Pending   bool            `json:"pending,omitempty"` // awaiting approval
	Timestamp time.Time       `json:"timestamp"`
}

// ToolResult reports a completed tool invocation.
type ToolResult struct {
	CallID    string          `json:"call_id"`
	SessionID string          `json:"session_id"`
	AgentName string          `json:"agent_name"`
	Action    string          `json:"action"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Handoff reports a speaker naming its successor.
type Handoff struct {
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Final carries the closing answer of a session run.
type Final struct {
	SessionID   string    `json:"session_id"`
	AgentName   string    `json:"agent_name"`
	Content     string    `json:"content"`
	Termination string    `json:"termination"`
	Timestamp   time.Time `json:"timestamp"`
}

// Error is the payload of an error frame.
type Error struct {
	SessionID string    `json:"session_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStream wraps a stream-class payload.
func NewStream(event string, data interface{}) *Server {
	return &Server{Type: TypeStream, Event: event, Data: data}
}

// NewStatus wraps a status-class payload.
func NewStatus(event string, data interface{}) *Server {
	return &Server{Type: TypeStatus, Event: event, Data: data}
}

// NewError wraps an error payload.
func NewError(data *Error) *Server {
	return &Server{Type: TypeError, Event: EventError, Data: data}
}
