// Package provider abstracts the model backend behind a streaming interface.
// The orchestrator consumes provider events (text deltas, tool calls, a
// closing usage record) without knowing which vendor produced them.
package provider

import (
	"context"
	"encoding/json"
)

// EventType discriminates stream events.
type EventType string

const (
	EventDelta    EventType = "delta"
	EventToolCall EventType = "tool_call"
	EventDone     EventType = "done"
)

// Event is one unit of provider output. Done events carry the usage record;
// tool call events carry the requested action and raw arguments.
type Event struct {
	Type     EventType
	Text     string
	ToolID   string
	ToolName string
	ToolArgs json.RawMessage
	Usage    *Usage
}

// Usage reports token consumption of one provider call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Message is a provider-neutral transcript entry.
type Message struct {
	Role    string // user | assistant
	Content string
}

// Tool describes one action exposed to the model.
type Tool struct {
	Name        string
	Description string
	Properties  map[string]interface{}
	Required    []string
}

// Request describes one model call.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []Tool
	MaxTokens int
}

// Stream yields events until io.EOF. Implementations are not safe for
// concurrent Recv.
type Stream interface {
	Recv() (*Event, error)
}

// Provider is a model backend.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req *Request) (Stream, error)
}
