package rag

import (
	"context"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/internal/idgen"
	"github.com/plenum-ai/plenum/service/dao"
	"github.com/plenum-ai/plenum/service/dao/store"
)

// Memory is the in-memory Service backend built on the generic DAO store.
type Memory struct {
	config Config
	items  dao.Service[string, Item]
}

func itemKey(i *Item) string { return i.ID }

// NewMemory creates an in-memory RAG store.
func NewMemory(config Config) *Memory {
	if config.TopK <= 0 {
		config = DefaultConfig()
	}
	return &Memory{
		config: config,
		items:  store.NewMemoryStore[string, Item](itemKey),
	}
}

// Store saves one memory item, assigning id and timestamp when absent.
func (m *Memory) Store(ctx context.Context, item *Item) error {
	if item == nil {
		return dao.ErrNilEntity
	}
	if item.ID == "" {
		item.ID = idgen.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = clock.Now()
	}
	return m.items.Save(ctx, item)
}

// Search returns the top scored matches for the query.
func (m *Memory) Search(ctx context.Context, userID, query string, limit int) ([]Match, error) {
	all, err := m.items.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = m.config.TopK
	}
	return rank(all, userID, query, limit, m.config.HalfLife), nil
}

var _ Service = (*Memory)(nil)
