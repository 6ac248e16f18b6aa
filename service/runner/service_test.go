package runner_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
	sessiondao "github.com/plenum-ai/plenum/service/dao/session"
	"github.com/plenum-ai/plenum/service/messaging/memory"
	"github.com/plenum-ai/plenum/service/orchestrator"
	"github.com/plenum-ai/plenum/service/provider"
	"github.com/plenum-ai/plenum/service/runner"
)

func TestService_ProcessesTask(t *testing.T) {
	scripted := provider.NewScripted(provider.Script{
		Chunks: []string{"All done. TERMINATE"},
		Usage:  provider.Usage{InputTokens: 4, OutputTokens: 2},
	})
	orch, err := orchestrator.New(scripted)
	require.NoError(t, err)

	team := &agent.Team{
		Name: "crew",
		Agents: []*agent.Agent{
			{Name: "alice", SystemPrompt: "You are alice.", Model: "claude-sonnet-4"},
		},
	}
	sessions, err := sessiondao.OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })
	queue := memory.NewQueue[runner.Task](memory.DefaultConfig())

	svc, err := runner.New(
		runner.WithOrchestrator(orch),
		runner.WithSessionDAO(sessions),
		runner.WithMessageQueue(queue),
		runner.WithTeams(team),
		runner.WithWorkers(2),
	)
	require.NoError(t, err)

	ctx := context.Background()
	session := &chat.Session{
		ID:        "session-1",
		UserID:    "user-1",
		Team:      "crew",
		Status:    chat.StatusActive,
		StartedAt: clock.Now(),
	}
	require.NoError(t, sessions.Save(ctx, session))

	require.NoError(t, svc.Start(ctx))
	defer svc.Shutdown()

	require.NoError(t, svc.Submit(ctx, &runner.Task{
		SessionID: "session-1",
		Message:   "do the thing",
	}))

	require.Eventually(t, func() bool {
		loaded, err := sessions.Load(ctx, "session-1")
		if err != nil || loaded == nil {
			return false
		}
		return loaded.Rounds == 1
	}, 2*time.Second, 10*time.Millisecond)

	loaded, err := sessions.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "All done.", loaded.LastMessage().Content)
	assert.Equal(t, int64(4), loaded.InputTokens)
	assert.Equal(t, chat.StatusCompleted, loaded.Status)
	assert.Equal(t, chat.TerminationFinal, loaded.Termination)
	assert.Equal(t, 1, scripted.Calls())

	// a follow-up task reopens the finished session
	require.NoError(t, svc.Submit(ctx, &runner.Task{
		SessionID: "session-1",
		Message:   "one more thing",
	}))
	require.Eventually(t, func() bool {
		loaded, err := sessions.Load(ctx, "session-1")
		return err == nil && loaded != nil && loaded.Rounds == 2 &&
			loaded.Status == chat.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_RequiresDependencies(t *testing.T) {
	_, err := runner.New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orchestrator is required")
}

func TestService_UnknownSession(t *testing.T) {
	scripted := provider.NewScripted(provider.Script{Chunks: []string{"x TERMINATE"}})
	orch, err := orchestrator.New(scripted)
	require.NoError(t, err)

	svc, err := runner.New(
		runner.WithOrchestrator(orch),
		runner.WithSessionDAO(sessiondao.NewMemory()),
		runner.WithMessageQueue(memory.NewQueue[runner.Task](memory.DefaultConfig())),
		runner.WithTeams(&agent.Team{Name: "crew"}),
	)
	require.NoError(t, err)

	err = svc.Submit(context.Background(), &runner.Task{})
	require.Error(t, err)
}
