package provider

import (
	"context"
	"io"
	"sync"
)

// Scripted is a deterministic Provider used in tests and local development.
// Each call pops the next Script; when the scripts run out the last one
// repeats.
type Scripted struct {
	mu      sync.Mutex
	scripts []Script
	calls   int
}

// Script is the canned outcome of one provider call.
type Script struct {
	Chunks   []string
	ToolName string
	ToolArgs string
	Usage    Usage
	Err      error // returned by Stream before any event
}

// NewScripted creates a scripted provider.
func NewScripted(scripts ...Script) *Scripted {
	return &Scripted{scripts: scripts}
}

// Calls returns how many times Stream was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) Stream(_ context.Context, _ *Request) (Stream, error) {
	s.mu.Lock()
	index := s.calls
	s.calls++
	if index >= len(s.scripts) {
		index = len(s.scripts) - 1
	}
	script := s.scripts[index]
	s.mu.Unlock()

	if script.Err != nil {
		return nil, script.Err
	}

	var events []*Event
	for _, chunk := range script.Chunks {
		events = append(events, &Event{Type: EventDelta, Text: chunk})
	}
	if script.ToolName != "" {
		events = append(events, &Event{
			Type:     EventToolCall,
			ToolID:   "call-scripted",
			ToolName: script.ToolName,
			ToolArgs: []byte(script.ToolArgs),
		})
	}
	usage := script.Usage
	events = append(events, &Event{Type: EventDone, Usage: &usage})
	return &sliceStream{events: events}, nil
}

type sliceStream struct {
	events []*Event
	next   int
}

func (s *sliceStream) Recv() (*Event, error) {
	if s.next >= len(s.events) {
		return nil, io.EOF
	}
	event := s.events[s.next]
	s.next++
	return event, nil
}

var _ Provider = (*Scripted)(nil)
