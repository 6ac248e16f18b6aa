package idgen

import "github.com/google/uuid"

// NewFunc produces identifiers for sessions, messages, chunks and approval
// requests. Tests stub it for determinism.
var NewFunc = func() string { return uuid.NewString() }

func New() string { return NewFunc() }
