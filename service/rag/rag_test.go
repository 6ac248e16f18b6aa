package rag

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"

	"github.com/plenum-ai/plenum/internal/clock"
)

func TestMemorySearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(Config{TopK: 2, HalfLife: 24 * time.Hour})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock.NowFunc = func() time.Time { return now }
	defer func() { clock.NowFunc = time.Now }()

	items := []*Item{
		{UserID: "u1", Text: "user prefers golang for backend work", CreatedAt: now.Add(-1 * time.Hour)},
		{UserID: "u1", Text: "user prefers golang", CreatedAt: now.Add(-72 * time.Hour)},
		{UserID: "u1", Text: "favourite colour is green", CreatedAt: now},
		{UserID: "u2", Text: "golang golang golang", CreatedAt: now},
	}
	for _, item := range items {
		assert.NoError(t, store.Store(ctx, item))
		assert.NotEmpty(t, item.ID)
	}

	matches, err := store.Search(ctx, "u1", "which language does the user prefer, golang?", 0)
	assert.NoError(t, err)
	assert.Len(t, matches, 2, "TopK caps results")
	// fresher item with same overlap outranks the decayed one
	assert.Equal(t, items[0].ID, matches[0].Item.ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)

	// scoping: u2 items are invisible to u1 and vice versa
	for _, match := range matches {
		assert.Equal(t, "u1", match.Item.UserID)
	}

	none, err := store.Search(ctx, "u1", "quantum entanglement", 0)
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestContextBlock(t *testing.T) {
	assert.Equal(t, "", ContextBlock(nil))
	block := ContextBlock([]Match{
		{Item: &Item{Text: "fact one"}},
		{Item: &Item{Text: "fact two"}},
	})
	assert.Contains(t, block, "Relevant context from memory:")
	assert.Contains(t, block, "- fact one\n")
	assert.Contains(t, block, "- fact two\n")
}

func TestFsStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "rag-test")
	assert.NoError(t, err)
	defer os.RemoveAll(tempDir)

	ctx := context.Background()
	store, err := NewFs(afs.New(), tempDir, Config{TopK: 3, HalfLife: 0})
	assert.NoError(t, err)

	item := &Item{UserID: "u1", Text: "deploys run on kubernetes"}
	assert.NoError(t, store.Store(ctx, item))

	matches, err := store.Search(ctx, "u1", "how do we deploy to kubernetes", 0)
	assert.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, item.ID, matches[0].Item.ID)

	// unknown user has no directory and no results
	matches, err = store.Search(ctx, "u2", "kubernetes", 0)
	assert.NoError(t, err)
	assert.Empty(t, matches)

	_, err = NewFs(afs.New(), "", Config{})
	assert.Error(t, err)
}
