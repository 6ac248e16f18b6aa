package orchestrator

import (
	"context"

	"github.com/plenum-ai/plenum/internal/log"
	"github.com/plenum-ai/plenum/model/frame"
	"github.com/plenum-ai/plenum/service/event"
)

// Emitter mirrors run frames onto the typed event bus so observers (audit,
// cost reporting, persistence) can subscribe per payload type without being
// on the streaming path.
type Emitter struct {
	deltas      *event.Publisher[*frame.Delta]
	statuses    *event.Publisher[*frame.AgentStatus]
	toolCalls   *event.Publisher[*frame.ToolCall]
	toolResults *event.Publisher[*frame.ToolResult]
	handoffs    *event.Publisher[*frame.Handoff]
	finals      *event.Publisher[*frame.Final]
	errors      *event.Publisher[*frame.Error]
}

// NewEmitter creates typed publishers for every frame payload.
func NewEmitter(svc *event.Service) (*Emitter, error) {
	e := &Emitter{}
	var err error
	if e.deltas, err = event.PublisherOf[*frame.Delta](svc); err != nil {
		return nil, err
	}
	if e.statuses, err = event.PublisherOf[*frame.AgentStatus](svc); err != nil {
		return nil, err
	}
	if e.toolCalls, err = event.PublisherOf[*frame.ToolCall](svc); err != nil {
		return nil, err
	}
	if e.toolResults, err = event.PublisherOf[*frame.ToolResult](svc); err != nil {
		return nil, err
	}
	if e.handoffs, err = event.PublisherOf[*frame.Handoff](svc); err != nil {
		return nil, err
	}
	if e.finals, err = event.PublisherOf[*frame.Final](svc); err != nil {
		return nil, err
	}
	if e.errors, err = event.PublisherOf[*frame.Error](svc); err != nil {
		return nil, err
	}
	return e, nil
}

// publish forwards a frame best-effort; bus failures never stall a run.
func (e *Emitter) publish(ctx context.Context, sessionID string, f *frame.Server) {
	eventContext := &event.Context{
		SessionID: sessionID,
		EventType: f.Event,
	}
	var err error
	switch data := f.Data.(type) {
	case *frame.Delta:
		eventContext.Agent = data.AgentName
		err = e.deltas.Publish(ctx, event.NewEvent(eventContext, data))
	case *frame.AgentStatus:
		eventContext.Agent = data.AgentName
		err = e.statuses.Publish(ctx, event.NewEvent(eventContext, data))
	case *frame.ToolCall:
		eventContext.Agent = data.AgentName
		eventContext.Action = data.Action
		err = e.toolCalls.Publish(ctx, event.NewEvent(eventContext, data))
	case *frame.ToolResult:
		eventContext.Agent = data.AgentName
		eventContext.Action = data.Action
		err = e.toolResults.Publish(ctx, event.NewEvent(eventContext, data))
	case *frame.Handoff:
		eventContext.Agent = data.From
		err = e.handoffs.Publish(ctx, event.NewEvent(eventContext, data))
	case *frame.Final:
		eventContext.Agent = data.AgentName
		err = e.finals.Publish(ctx, event.NewEvent(eventContext, data))
	case *frame.Error:
		err = e.errors.Publish(ctx, event.NewEvent(eventContext, data))
	}
	if err != nil {
		log.GetLogger().WithField("event", f.Event).Warn("event publish failed")
	}
}
