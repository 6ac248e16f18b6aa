package orchestrator_test

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/model/frame"
	"github.com/plenum-ai/plenum/service/orchestrator"
	"github.com/plenum-ai/plenum/service/provider"
	"github.com/plenum-ai/plenum/service/rag"
	"github.com/plenum-ai/plenum/service/tool"
)

func newSession(userMessage string) *chat.Session {
	session := &chat.Session{
		ID:        "session-1",
		UserID:    "user-1",
		Status:    chat.StatusActive,
		StartedAt: clock.Now(),
	}
	session.Append(&chat.Message{
		ID:        "msg-1",
		Role:      chat.RoleUser,
		Content:   userMessage,
		CreatedAt: clock.Now(),
	})
	return session
}

func newTeam(names ...string) *agent.Team {
	team := &agent.Team{Name: "crew"}
	for _, name := range names {
		team.Agents = append(team.Agents, &agent.Agent{
			Name:         name,
			SystemPrompt: "You are " + name + ".",
			Model:        "claude-sonnet-4",
		})
	}
	return team
}

type frameRecorder struct {
	frames []*frame.Server
}

func (r *frameRecorder) sink(f *frame.Server) {
	r.frames = append(r.frames, f)
}

func (r *frameRecorder) events() []string {
	out := make([]string, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, f.Event)
	}
	return out
}

func (r *frameRecorder) final() *frame.Final {
	for _, f := range r.frames {
		if f.Event == frame.EventFinal {
			return f.Data.(*frame.Final)
		}
	}
	return nil
}

func TestExecute_SingleAgentFinal(t *testing.T) {
	scripted := provider.NewScripted(provider.Script{
		Chunks: []string{"Hello ", "world. TERMINATE"},
		Usage:  provider.Usage{InputTokens: 10, OutputTokens: 5},
	})
	svc, err := orchestrator.New(scripted)
	require.NoError(t, err)

	session := newSession("hi there")
	recorder := &frameRecorder{}
	run := &orchestrator.Run{
		Session: session,
		Team:    newTeam("alice"),
		Sink:    recorder.sink,
	}
	require.NoError(t, svc.Execute(context.Background(), run))

	assert.Equal(t,
		[]string{frame.EventAgentStatus, frame.EventDelta, frame.EventDelta, frame.EventFinal},
		recorder.events())

	final := recorder.final()
	require.NotNil(t, final)
	assert.Equal(t, "alice", final.AgentName)
	assert.Equal(t, "Hello world.", final.Content)
	assert.Equal(t, string(chat.TerminationFinal), final.Termination)

	assert.Equal(t, 1, session.Rounds)
	assert.Equal(t, int64(10), session.InputTokens)
	assert.Equal(t, int64(5), session.OutputTokens)
	assert.Equal(t, chat.StatusCompleted, session.Status)
	assert.Equal(t, chat.TerminationFinal, session.Termination)
	require.NotNil(t, session.EndedAt)
	assert.Equal(t, "Hello world.", session.LastMessage().Content)
}

func TestExecute_Handoff(t *testing.T) {
	scripted := provider.NewScripted(
		provider.Script{Chunks: []string{"@bob please take over"}},
		provider.Script{Chunks: []string{"Done. TERMINATE"}},
	)
	svc, err := orchestrator.New(scripted)
	require.NoError(t, err)

	recorder := &frameRecorder{}
	run := &orchestrator.Run{
		Session: newSession("help me"),
		Team:    newTeam("alice", "bob"),
		Sink:    recorder.sink,
	}
	require.NoError(t, svc.Execute(context.Background(), run))

	var handoff *frame.Handoff
	for _, f := range recorder.frames {
		if f.Event == frame.EventHandoff {
			handoff = f.Data.(*frame.Handoff)
		}
	}
	require.NotNil(t, handoff)
	assert.Equal(t, "alice", handoff.From)
	assert.Equal(t, "bob", handoff.To)

	final := recorder.final()
	require.NotNil(t, final)
	assert.Equal(t, "bob", final.AgentName)
	assert.Equal(t, "Done.", final.Content)
	assert.Equal(t, 2, run.Session.Rounds)
	assert.Equal(t, 2, scripted.Calls())
}

func TestExecute_MaxRounds(t *testing.T) {
	scripted := provider.NewScripted(
		provider.Script{Chunks: []string{"@bob over to you"}},
		provider.Script{Chunks: []string{"@alice back to you"}},
	)
	svc, err := orchestrator.New(scripted, orchestrator.WithConfig(orchestrator.Config{
		MaxRounds: 2,
	}))
	require.NoError(t, err)

	recorder := &frameRecorder{}
	run := &orchestrator.Run{
		Session: newSession("ping pong"),
		Team:    newTeam("alice", "bob"),
		Sink:    recorder.sink,
	}
	require.NoError(t, svc.Execute(context.Background(), run))

	final := recorder.final()
	require.NotNil(t, final)
	assert.Equal(t, string(chat.TerminationMaxRounds), final.Termination)
	assert.Equal(t, 2, run.Session.Rounds)
	assert.Equal(t, chat.StatusCompleted, run.Session.Status)
	assert.Equal(t, chat.TerminationMaxRounds, run.Session.Termination)
}

func TestExecute_CancelledContext(t *testing.T) {
	scripted := provider.NewScripted(
		provider.Script{Chunks: []string{"@bob over to you"}},
		provider.Script{Chunks: []string{"@alice back to you"}},
	)
	svc, err := orchestrator.New(scripted)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recorder := &frameRecorder{}
	run := &orchestrator.Run{
		Session: newSession("never mind"),
		Team:    newTeam("alice", "bob"),
		Sink:    recorder.sink,
	}
	err = svc.Execute(ctx, run)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, scripted.Calls(), "no provider calls after cancellation")
	assert.Equal(t, 0, run.Session.Rounds)
	assert.Equal(t, chat.StatusCancelled, run.Session.Status)
	assert.Equal(t, chat.TerminationCancelled, run.Session.Termination)

	final := recorder.final()
	require.NotNil(t, final)
	assert.Equal(t, string(chat.TerminationCancelled), final.Termination)
}

func TestExecute_RejectsInactiveSession(t *testing.T) {
	scripted := provider.NewScripted(provider.Script{Chunks: []string{"x TERMINATE"}})
	svc, err := orchestrator.New(scripted)
	require.NoError(t, err)

	session := newSession("hi")
	session.Finish(chat.StatusCompleted, chat.TerminationFinal, clock.Now())
	err = svc.Execute(context.Background(), &orchestrator.Run{
		Session: session,
		Team:    newTeam("alice"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
	assert.Equal(t, 0, scripted.Calls())
}

func TestExecute_BudgetExceeded(t *testing.T) {
	scripted := provider.NewScripted(provider.Script{
		Chunks: []string{"expensive answer"},
		Usage:  provider.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
	})
	svc, err := orchestrator.New(scripted, orchestrator.WithConfig(orchestrator.Config{
		BudgetUSD: 0.5,
	}))
	require.NoError(t, err)

	recorder := &frameRecorder{}
	run := &orchestrator.Run{
		Session: newSession("spend it all"),
		Team:    newTeam("alice"),
		Sink:    recorder.sink,
	}
	require.NoError(t, svc.Execute(context.Background(), run))

	final := recorder.final()
	require.NotNil(t, final)
	assert.Equal(t, string(chat.TerminationBudgetExceeded), final.Termination)
	assert.Equal(t, chat.StatusCompleted, run.Session.Status)
	assert.Equal(t, chat.TerminationBudgetExceeded, run.Session.Termination)
	assert.Greater(t, run.Session.CostUSD, 0.5)
}

func TestExecute_ProviderError(t *testing.T) {
	scripted := provider.NewScripted(provider.Script{Err: assert.AnError})
	svc, err := orchestrator.New(scripted)
	require.NoError(t, err)

	recorder := &frameRecorder{}
	run := &orchestrator.Run{
		Session: newSession("boom"),
		Team:    newTeam("alice"),
		Sink:    recorder.sink,
	}
	err = svc.Execute(context.Background(), run)
	require.Error(t, err)

	require.NotEmpty(t, recorder.frames)
	last := recorder.frames[len(recorder.frames)-1]
	assert.Equal(t, frame.TypeError, last.Type)
	assert.Equal(t, chat.StatusFailed, run.Session.Status)
	assert.Equal(t, chat.TerminationError, run.Session.Termination)
}

type echoService struct{}

type echoInput struct {
	Text string `json:"text"`
}

type echoOutput struct {
	Text string `json:"text"`
}

func (s *echoService) Name() string { return "echo" }

func (s *echoService) Methods() tool.Signatures {
	return []tool.Signature{
		{
			Name:        "say",
			Description: "Echoes the given text.",
			Input:       reflect.TypeOf(&echoInput{}),
			Output:      reflect.TypeOf(&echoOutput{}),
		},
	}
}

func (s *echoService) Method(name string) (tool.Executable, error) {
	if name != "say" {
		return nil, tool.NewMethodNotFoundError(name)
	}
	return func(ctx context.Context, in, out interface{}) error {
		out.(*echoOutput).Text = in.(*echoInput).Text
		return nil
	}, nil
}

func TestExecute_ToolLoop(t *testing.T) {
	scripted := provider.NewScripted(
		provider.Script{ToolName: "echo_say", ToolArgs: `{"text":"hi"}`},
		provider.Script{Chunks: []string{"Echo done. TERMINATE"}},
	)
	registry := tool.New()
	registry.Register(&echoService{})
	dispatcher, err := tool.NewDispatcher(registry)
	require.NoError(t, err)

	svc, err := orchestrator.New(scripted, orchestrator.WithTools(registry, dispatcher))
	require.NoError(t, err)

	team := newTeam("alice")
	team.Agents[0].Tools = []string{"echo"}

	recorder := &frameRecorder{}
	run := &orchestrator.Run{
		Session: newSession("use the tool"),
		Team:    team,
		Sink:    recorder.sink,
	}
	require.NoError(t, svc.Execute(context.Background(), run))

	events := recorder.events()
	assert.Contains(t, events, frame.EventToolCall)
	assert.Contains(t, events, frame.EventToolResult)

	var result *frame.ToolResult
	for _, f := range recorder.frames {
		if f.Event == frame.EventToolResult {
			result = f.Data.(*frame.ToolResult)
		}
	}
	require.NotNil(t, result)
	assert.Empty(t, result.Error)
	var output echoOutput
	require.NoError(t, json.Unmarshal(result.Result, &output))
	assert.Equal(t, "hi", output.Text)

	final := recorder.final()
	require.NotNil(t, final)
	assert.Equal(t, "Echo done.", final.Content)
	assert.Equal(t, 2, scripted.Calls())

	var toolTurn *chat.Message
	for _, msg := range run.Session.Messages() {
		if msg.Role == chat.RoleTool {
			toolTurn = msg
		}
	}
	require.NotNil(t, toolTurn)
	assert.Equal(t, "echo_say", toolTurn.ToolCall.Action)
}

// haltService cancels the run context from inside a tool call.
type haltService struct {
	cancel context.CancelFunc
}

func (s *haltService) Name() string { return "halt" }

func (s *haltService) Methods() tool.Signatures {
	return []tool.Signature{
		{
			Name:        "now",
			Description: "Stops the run.",
			Input:       reflect.TypeOf(&echoInput{}),
			Output:      reflect.TypeOf(&echoOutput{}),
		},
	}
}

func (s *haltService) Method(name string) (tool.Executable, error) {
	return func(ctx context.Context, in, out interface{}) error {
		s.cancel()
		return nil
	}, nil
}

func TestExecute_CancelledBetweenToolIterations(t *testing.T) {
	scripted := provider.NewScripted(
		provider.Script{ToolName: "halt_now", ToolArgs: `{"text":"x"}`},
		provider.Script{Chunks: []string{"should never stream TERMINATE"}},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := tool.New()
	registry.Register(&haltService{cancel: cancel})
	dispatcher, err := tool.NewDispatcher(registry)
	require.NoError(t, err)

	svc, err := orchestrator.New(scripted, orchestrator.WithTools(registry, dispatcher))
	require.NoError(t, err)

	team := newTeam("alice")
	team.Agents[0].Tools = []string{"halt"}
	run := &orchestrator.Run{
		Session: newSession("stop midway"),
		Team:    team,
	}
	err = svc.Execute(ctx, run)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, scripted.Calls(), "cancellation stops further provider calls")
	assert.Equal(t, chat.StatusCancelled, run.Session.Status)
	assert.Equal(t, chat.TerminationCancelled, run.Session.Termination)
}

func TestExecute_ToolNotOffered(t *testing.T) {
	scripted := provider.NewScripted(
		provider.Script{ToolName: "echo_say", ToolArgs: `{"text":"hi"}`},
		provider.Script{Chunks: []string{"No tool then. TERMINATE"}},
	)
	registry := tool.New()
	registry.Register(&echoService{})
	dispatcher, err := tool.NewDispatcher(registry)
	require.NoError(t, err)

	svc, err := orchestrator.New(scripted, orchestrator.WithTools(registry, dispatcher))
	require.NoError(t, err)

	recorder := &frameRecorder{}
	run := &orchestrator.Run{
		Session: newSession("try the tool"),
		Team:    newTeam("alice"), // roster offers no tools
		Sink:    recorder.sink,
	}
	require.NoError(t, svc.Execute(context.Background(), run))

	var result *frame.ToolResult
	for _, f := range recorder.frames {
		if f.Event == frame.EventToolResult {
			result = f.Data.(*frame.ToolResult)
		}
	}
	require.NotNil(t, result)
	assert.Contains(t, result.Error, "not available to agent alice")
	assert.Empty(t, result.Result)

	final := recorder.final()
	require.NotNil(t, final)
	assert.Equal(t, "No tool then.", final.Content)
}

type recordingProvider struct {
	*provider.Scripted
	last *provider.Request
}

func (p *recordingProvider) Stream(ctx context.Context, req *provider.Request) (provider.Stream, error) {
	p.last = req
	return p.Scripted.Stream(ctx, req)
}

func TestExecute_ContextInjection(t *testing.T) {
	store := rag.NewMemory(rag.DefaultConfig())
	require.NoError(t, store.Store(context.Background(), &rag.Item{
		ID:        "item-1",
		UserID:    "user-1",
		Text:      "prefers answers in French",
		CreatedAt: clock.Now().Add(-time.Hour),
	}))

	recording := &recordingProvider{
		Scripted: provider.NewScripted(provider.Script{Chunks: []string{"Bien sûr. TERMINATE"}}),
	}
	svc, err := orchestrator.New(recording,
		orchestrator.WithMemory(store, rag.DefaultConfig()))
	require.NoError(t, err)

	run := &orchestrator.Run{
		Session: newSession("answers please, French preferred"),
		Team:    newTeam("alice", "bob"),
	}
	require.NoError(t, svc.Execute(context.Background(), run))

	require.NotNil(t, recording.last)
	assert.Contains(t, recording.last.System, "prefers answers in French")
	assert.True(t, strings.Contains(recording.last.System, "@bob") ||
		strings.Contains(recording.last.System, "@alice"))
}
