package event

import "time"

// Context identifies where in a session run an event originated.
type Context struct {
	SessionID   string `json:"sessionID"`
	Agent       string `json:"agent,omitempty"`
	EventType   string `json:"eventType"`
	Action      string `json:"action,omitempty"`
	TimeTakenMs int    `json:"timeTakenMs,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
