package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowed(t *testing.T) {
	testCases := []struct {
		description string
		policy      *Policy
		action      string
		expected    bool
	}{
		{
			description: "nil policy allows everything",
			action:      "rag.search",
			expected:    true,
		},
		{
			description: "block list wins over allow list",
			policy:      &Policy{AllowList: []string{"rag.search"}, BlockList: []string{"rag.search"}},
			action:      "rag.search",
			expected:    false,
		},
		{
			description: "empty allow list permits all",
			policy:      &Policy{Mode: ModeAuto},
			action:      "rag.store",
			expected:    true,
		},
		{
			description: "allow list is exclusive",
			policy:      &Policy{AllowList: []string{"rag.search"}},
			action:      "rag.store",
			expected:    false,
		},
		{
			description: "matching is case-insensitive",
			policy:      &Policy{AllowList: []string{"RAG.Search"}},
			action:      "rag.search",
			expected:    true,
		},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, tc.policy.IsAllowed(tc.action), tc.description)
	}
}

func TestRequiresApproval(t *testing.T) {
	var nilPolicy *Policy
	assert.False(t, nilPolicy.RequiresApproval("rag.search"))

	ask := &Policy{Mode: ModeAsk}
	assert.True(t, ask.RequiresApproval("rag.search"))

	askBlocked := &Policy{Mode: ModeAsk, BlockList: []string{"rag.search"}}
	assert.False(t, askBlocked.RequiresApproval("rag.search"), "blocked actions are rejected, not asked")

	auto := &Policy{Mode: ModeAuto}
	assert.False(t, auto.RequiresApproval("rag.search"))
}

func TestContextRoundTrip(t *testing.T) {
	p := &Policy{Mode: ModeAsk}
	ctx := WithPolicy(context.Background(), p)
	assert.Equal(t, p, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
