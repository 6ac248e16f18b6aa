package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/internal/idgen"
	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/model/frame"
	"github.com/plenum-ai/plenum/policy"
	"github.com/plenum-ai/plenum/service/cost"
	"github.com/plenum-ai/plenum/service/provider"
	"github.com/plenum-ai/plenum/service/rag"
	"github.com/plenum-ai/plenum/tracing"
)

// turn streams one speaker reply, executing any tool calls and feeding their
// results back until the speaker answers in plain text or the tool iteration
// bound trips.
func (s *Service) turn(ctx context.Context, run *Run, speaker *agent.Agent) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.turn", "INTERNAL")
	defer span.End()
	span.WithAttributes(map[string]string{"agent": speaker.Name})

	system, err := s.systemPrompt(ctx, run, speaker)
	if err != nil {
		return "", err
	}
	var tools []provider.Tool
	if s.registry != nil && len(speaker.Tools) > 0 {
		tools = s.registry.Definitions(speaker.Tools...)
	}

	var reply strings.Builder
	for iteration := 0; iteration <= s.config.MaxToolIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		request := &provider.Request{
			Model:     speaker.Model,
			System:    system,
			Messages:  s.history(run.Session),
			Tools:     tools,
			MaxTokens: speaker.MaxTokens,
		}
		calls, err := s.stream(ctx, run, speaker, request, &reply)
		if err != nil {
			return "", err
		}
		if len(calls) == 0 {
			return reply.String(), nil
		}
		if s.tools == nil {
			return "", errors.Errorf("agent %v requested tool %v but no dispatcher is configured",
				speaker.Name, calls[0].Action)
		}
		for _, call := range calls {
			s.invoke(ctx, run, speaker, call)
		}
	}
	return reply.String(), nil
}

// stream consumes one provider response, emitting delta frames and
// collecting tool call requests.
func (s *Service) stream(ctx context.Context, run *Run, speaker *agent.Agent,
	request *provider.Request, reply *strings.Builder) ([]*chat.ToolCall, error) {

	stream, err := s.provider.Stream(ctx, request)
	if err != nil {
		return nil, err
	}
	var calls []*chat.ToolCall
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch event.Type {
		case provider.EventDelta:
			reply.WriteString(event.Text)
			s.emit(ctx, run, frame.NewStream(frame.EventDelta, &frame.Delta{
				ChunkID:   idgen.New(),
				SessionID: run.Session.ID,
				AgentName: speaker.Name,
				ChunkType: frame.ChunkTypeText,
				Content:   event.Text,
				Timestamp: clock.Now(),
			}))
		case provider.EventToolCall:
			id := event.ToolID
			if id == "" {
				id = idgen.New()
			}
			calls = append(calls, &chat.ToolCall{
				ID:     id,
				Action: event.ToolName,
				Args:   event.ToolArgs,
			})
		case provider.EventDone:
			if event.Usage != nil {
				run.Tracker.Add(cost.Usage{
					Agent:        speaker.Name,
					Model:        request.Model,
					InputTokens:  event.Usage.InputTokens,
					OutputTokens: event.Usage.OutputTokens,
				})
			}
		}
	}
	return calls, nil
}

// invoke dispatches one tool call and records the outcome on the transcript
// so the next model iteration sees it. Tool failures are surfaced to the
// model, not to the caller.
func (s *Service) invoke(ctx context.Context, run *Run, speaker *agent.Agent, call *chat.ToolCall) {
	canonical := s.registry.Canonical(call.Action)
	pol := policy.FromContext(ctx)
	pending := pol.RequiresApproval(canonical)
	s.emit(ctx, run, frame.NewStream(frame.EventToolCall, &frame.ToolCall{
		CallID:    call.ID,
		SessionID: run.Session.ID,
		AgentName: speaker.Name,
		Action:    call.Action,
		Args:      call.Args,
		Pending:   pending,
		Timestamp: clock.Now(),
	}))

	if allowedTool(speaker, call.Action, canonical) {
		dispatchCtx, span := tracing.StartSpan(ctx, "tool.dispatch", "INTERNAL")
		err := s.tools.Dispatch(dispatchCtx, run.Session.ID, speaker.Name, call)
		span.SetStatus(err)
		span.End()
	} else {
		call.Error = fmt.Sprintf("tool %s is not available to agent %s", call.Action, speaker.Name)
	}

	s.emit(ctx, run, frame.NewStream(frame.EventToolResult, &frame.ToolResult{
		CallID:    call.ID,
		SessionID: run.Session.ID,
		AgentName: speaker.Name,
		Action:    call.Action,
		Result:    call.Result,
		Error:     call.Error,
		Timestamp: clock.Now(),
	}))

	summary := fmt.Sprintf("Tool %s returned: %s", call.Action, call.Result)
	if call.Error != "" {
		summary = fmt.Sprintf("Tool %s failed: %s", call.Action, call.Error)
	}
	run.Session.Append(&chat.Message{
		ID:        idgen.New(),
		Role:      chat.RoleTool,
		Agent:     speaker.Name,
		Content:   summary,
		ToolCall:  call,
		CreatedAt: clock.Now(),
	})
}

// allowedTool reports whether the speaker's roster offers the requested
// action, by canonical name, wire name or owning service.
func allowedTool(speaker *agent.Agent, action, canonical string) bool {
	service := canonical
	if i := strings.IndexByte(canonical, '.'); i > 0 {
		service = canonical[:i]
	}
	return speaker.HasTool(canonical) || speaker.HasTool(action) || speaker.HasTool(service)
}

// systemPrompt assembles the speaker's instructions, the team roster and any
// retrieved user context.
func (s *Service) systemPrompt(ctx context.Context, run *Run, speaker *agent.Agent) (string, error) {
	var b strings.Builder
	b.WriteString(speaker.SystemPrompt)

	if len(run.Team.Agents) > 1 {
		b.WriteString("\n\nYou are " + speaker.Name + " in a team conversation. Team members:")
		for _, member := range run.Team.Agents {
			if member.Name == speaker.Name {
				continue
			}
			b.WriteString("\n- @" + member.Name)
			if member.Description != "" {
				b.WriteString(": " + member.Description)
			}
		}
		b.WriteString("\nMention @name to hand the conversation to that member.")
	}
	b.WriteString("\nWhen the task is complete, include the word " + terminateMarker + " in your reply.")

	if s.memory != nil {
		if query := lastUserContent(run.Session); query != "" {
			matches, err := s.memory.Search(ctx, run.Session.UserID, query, s.ragConfig.TopK)
			if err != nil {
				return "", errors.Wrap(err, "context retrieval failed")
			}
			if block := rag.ContextBlock(matches); block != "" {
				b.WriteString("\n\n" + block)
			}
		}
	}
	return b.String(), nil
}

// history converts the tail of the transcript into provider messages. Tool
// and user turns are presented as user input; assistant turns keep their
// speaker prefix so agents can tell each other apart.
func (s *Service) history(session *chat.Session) []provider.Message {
	messages := session.Messages()
	if len(messages) > s.config.HistoryWindow {
		messages = messages[len(messages)-s.config.HistoryWindow:]
	}
	out := make([]provider.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleAssistant:
			content := msg.Content
			if msg.Agent != "" {
				content = msg.Agent + ": " + content
			}
			out = append(out, provider.Message{Role: "assistant", Content: content})
		case chat.RoleUser, chat.RoleTool:
			out = append(out, provider.Message{Role: "user", Content: msg.Content})
		}
	}
	return out
}

func lastUserContent(session *chat.Session) string {
	messages := session.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chat.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
