package rag

import "context"

type userIDKeyT struct{}

var userIDKey userIDKeyT

// WithUserID scopes memory operations in ctx to the given user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the user scope or "" when none was set.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}
