// Package session provides persistence backends for chat sessions behind the
// generic DAO contract.
package session

import (
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/service/dao"
	"github.com/plenum-ai/plenum/service/dao/store"
)

// NewMemory returns an in-memory session DAO keyed by session id.
func NewMemory() dao.Service[string, chat.Session] {
	return store.NewMemoryStore[string, chat.Session](func(s *chat.Session) string {
		return s.ID
	})
}
