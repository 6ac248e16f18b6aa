package dao

import (
	"context"
)

// Service is a generic persistence contract shared by all entity DAOs
// (sessions, approval requests, decisions, memory items).
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
