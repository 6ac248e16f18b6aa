package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/service/dao"
)

func sampleSession(id, userID string) *chat.Session {
	session := &chat.Session{
		ID:        id,
		UserID:    userID,
		Team:      "crew",
		Status:    chat.StatusActive,
		StartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	session.Append(&chat.Message{
		ID:        id + "-msg-1",
		Role:      chat.RoleUser,
		Content:   "hello",
		CreatedAt: session.StartedAt,
	})
	return session
}

func backends(t *testing.T) map[string]dao.Service[string, chat.Session] {
	fsBackend, err := NewFs(afs.New(), filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)

	sqliteBackend, err := OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteBackend.Close() })

	return map[string]dao.Service[string, chat.Session]{
		"memory": NewMemory(),
		"fs":     fsBackend,
		"sqlite": sqliteBackend,
	}
}

func TestBackends_RoundTrip(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			session := sampleSession("s-1", "user-1")
			require.NoError(t, backend.Save(ctx, session))

			loaded, err := backend.Load(ctx, "s-1")
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, "user-1", loaded.UserID)
			assert.Equal(t, chat.StatusActive, loaded.Status)
			require.Len(t, loaded.Messages(), 1)
			assert.Equal(t, "hello", loaded.Messages()[0].Content)

			missing, err := backend.Load(ctx, "absent")
			require.NoError(t, err)
			assert.Nil(t, missing)

			require.NoError(t, backend.Delete(ctx, "s-1"))
			gone, err := backend.Load(ctx, "s-1")
			require.NoError(t, err)
			assert.Nil(t, gone)
		})
	}
}

func TestBackends_ListFilters(t *testing.T) {
	for name, backend := range backends(t) {
		if name == "memory" {
			// the generic in-memory store lists everything
			continue
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := sampleSession("s-1", "user-1")
			second := sampleSession("s-2", "user-2")
			second.Finish(chat.StatusCompleted, chat.TerminationFinal, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC))
			require.NoError(t, backend.Save(ctx, first))
			require.NoError(t, backend.Save(ctx, second))

			byUser, err := backend.List(ctx, dao.NewParameter("userId", "user-1"))
			require.NoError(t, err)
			require.Len(t, byUser, 1)
			assert.Equal(t, "s-1", byUser[0].ID)

			completed, err := backend.List(ctx, dao.NewParameter("status", string(chat.StatusCompleted)))
			require.NoError(t, err)
			require.Len(t, completed, 1)
			assert.Equal(t, "s-2", completed[0].ID)
			require.NotNil(t, completed[0].EndedAt)

			all, err := backend.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}
