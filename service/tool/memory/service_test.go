package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenum-ai/plenum/service/rag"
)

func TestService_StoreAndSearch(t *testing.T) {
	store := rag.NewMemory(rag.DefaultConfig())
	svc := New(store, 0)
	ctx := rag.WithUserID(context.Background(), "user-1")

	save, err := svc.Method("store")
	require.NoError(t, err)

	var stored StoreOutput
	require.NoError(t, save(ctx, &StoreInput{Text: "prefers dark roast coffee"}, &stored))
	assert.NotEmpty(t, stored.ID)

	search, err := svc.Method("search")
	require.NoError(t, err)

	var found SearchOutput
	require.NoError(t, search(ctx, &SearchInput{Query: "coffee roast"}, &found))
	require.Len(t, found.Memories, 1)
	assert.Equal(t, "prefers dark roast coffee", found.Memories[0])
}

func TestService_RequiresUser(t *testing.T) {
	svc := New(rag.NewMemory(rag.DefaultConfig()), 0)
	search, err := svc.Method("search")
	require.NoError(t, err)

	var found SearchOutput
	err = search(context.Background(), &SearchInput{Query: "anything"}, &found)
	assert.EqualError(t, err, "no user in context")
}
