package chat

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies the author class of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single transcript entry.
type Message struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Role      Role            `json:"role"`
	Agent     string          `json:"agent,omitempty"`
	Content   string          `json:"content"`
	ToolCall  *ToolCall       `json:"toolCall,omitempty"`
	Context   json.RawMessage `json:"context,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ToolCall captures one requested tool invocation and, once dispatched, its
// outcome.
type ToolCall struct {
	ID     string          `json:"id"`
	Action string          `json:"action"` // fully-qualified service.method
	Args   json.RawMessage `json:"args,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Mentions returns agent names addressed as @name in the message content.
func (m *Message) Mentions() []string {
	var out []string
	for _, field := range strings.Fields(m.Content) {
		if len(field) < 2 || field[0] != '@' {
			continue
		}
		name := strings.TrimRight(field[1:], ".,:;!?")
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// AddressedTo reports whether the message mentions the given agent.
func (m *Message) AddressedTo(agentName string) bool {
	for _, name := range m.Mentions() {
		if strings.EqualFold(name, agentName) {
			return true
		}
	}
	return false
}
