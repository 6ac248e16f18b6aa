package tool_test

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/policy"
	"github.com/plenum-ai/plenum/service/approval"
	approvalmem "github.com/plenum-ai/plenum/service/approval/memory"
	"github.com/plenum-ai/plenum/service/tool"
)

type echoService struct{}

type echoInput struct {
	Text   string `json:"text" description:"Text to echo back"`
	Repeat int    `json:"repeat,omitempty"`
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
		input := in.(*echoInput)
		output := out.(*echoOutput)
		repeat := input.Repeat
		if repeat <= 0 {
			repeat = 1
		}
		output.Text = strings.TrimSpace(strings.Repeat(input.Text+" ", repeat))
		return nil
	}, nil
}

func newTestDispatcher(t *testing.T, opts ...tool.Option) *tool.Dispatcher {
	registry := tool.New()
	registry.Register(&echoService{})
	dispatcher, err := tool.NewDispatcher(registry, opts...)
	require.NoError(t, err)
	return dispatcher
}

func TestDispatcher_Dispatch(t *testing.T) {
	dispatcher := newTestDispatcher(t)
	call := &chat.ToolCall{
		ID:     "call-1",
		Action: "echo.say",
		Args:   json.RawMessage(`{"text":"hi","repeat":2}`),
	}
	err := dispatcher.Dispatch(context.Background(), "session-1", "alice", call)
	require.NoError(t, err)

	var output echoOutput
	require.NoError(t, json.Unmarshal(call.Result, &output))
	assert.Equal(t, "hi hi", output.Text)
	assert.Empty(t, call.Error)
}

func TestDispatcher_WireName(t *testing.T) {
	dispatcher := newTestDispatcher(t)
	call := &chat.ToolCall{
		ID:     "call-2",
		Action: "echo_say",
		Args:   json.RawMessage(`{"text":"hello"}`),
	}
	require.NoError(t, dispatcher.Dispatch(context.Background(), "session-1", "alice", call))

	var output echoOutput
	require.NoError(t, json.Unmarshal(call.Result, &output))
	assert.Equal(t, "hello", output.Text)
}

func TestDispatcher_UnknownTool(t *testing.T) {
	dispatcher := newTestDispatcher(t)
	call := &chat.ToolCall{ID: "call-3", Action: "missing.op"}
	err := dispatcher.Dispatch(context.Background(), "session-1", "alice", call)
	require.Error(t, err)
	assert.Contains(t, call.Error, "not found")
}

func TestDispatcher_PolicyDeny(t *testing.T) {
	dispatcher := newTestDispatcher(t)
	ctx := policy.WithPolicy(context.Background(), &policy.Policy{
		Mode:      policy.ModeAuto,
		BlockList: []string{"echo.say"},
	})
	call := &chat.ToolCall{
		ID:     "call-4",
		Action: "echo.say",
		Args:   json.RawMessage(`{"text":"hi"}`),
	}
	err := dispatcher.Dispatch(ctx, "session-1", "alice", call)
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrDenied)
	assert.Empty(t, call.Result)
}

func TestDispatcher_AskApproved(t *testing.T) {
	approvals := approvalmem.New()
	dispatcher := newTestDispatcher(t,
		tool.WithApprovalService(approvals),
		tool.WithApprovalTimeout(2*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := approval.AutoApprove(ctx, approvals, 10*time.Millisecond)
	defer stop()

	ctx = policy.WithPolicy(ctx, &policy.Policy{Mode: policy.ModeAsk})
	call := &chat.ToolCall{
		ID:     "call-5",
		Action: "echo.say",
		Args:   json.RawMessage(`{"text":"approved"}`),
	}
	require.NoError(t, dispatcher.Dispatch(ctx, "session-1", "alice", call))

	var output echoOutput
	require.NoError(t, json.Unmarshal(call.Result, &output))
	assert.Equal(t, "approved", output.Text)
}

func TestDispatcher_AskRejected(t *testing.T) {
	approvals := approvalmem.New()
	dispatcher := newTestDispatcher(t,
		tool.WithApprovalService(approvals),
		tool.WithApprovalTimeout(2*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := approval.AutoReject(ctx, approvals, "not today", 10*time.Millisecond)
	defer stop()

	ctx = policy.WithPolicy(ctx, &policy.Policy{Mode: policy.ModeAsk})
	call := &chat.ToolCall{
		ID:     "call-6",
		Action: "echo.say",
		Args:   json.RawMessage(`{"text":"rejected"}`),
	}
	err := dispatcher.Dispatch(ctx, "session-1", "alice", call)
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrRejected)
	assert.Contains(t, call.Error, "not today")
}

func TestRegistry_Definitions(t *testing.T) {
	registry := tool.New()
	registry.Register(&echoService{})

	defs := registry.Definitions("echo.say")
	require.Len(t, defs, 1)
	assert.Equal(t, "echo_say", defs[0].Name)
	assert.Equal(t, "Echoes the given text.", defs[0].Description)
	assert.Equal(t, []string{"text"}, defs[0].Required)

	text, ok := defs[0].Properties["text"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "string", text["type"])
	assert.Equal(t, "Text to echo back", text["description"])

	repeat, ok := defs[0].Properties["repeat"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "integer", repeat["type"])

	assert.Empty(t, registry.Definitions("other.tool"))
	assert.Len(t, registry.Definitions(), 1)
}
