package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plenum-ai/plenum/model/frame"
)

func textDelta(id, content string) *frame.Server {
	return frame.NewStream(frame.EventDelta, &frame.Delta{
		ChunkID:   id,
		SessionID: "s-1",
		AgentName: "alice",
		ChunkType: frame.ChunkTypeText,
		Content:   content,
	})
}

func TestRelay_CoalescesAtWindow(t *testing.T) {
	var sent []*frame.Server
	r := newRelay(3, func(f *frame.Server) error {
		sent = append(sent, f)
		return nil
	})

	require.NoError(t, r.Forward(textDelta("c1", "a")))
	require.NoError(t, r.Forward(textDelta("c2", "b")))
	assert.Empty(t, sent)

	require.NoError(t, r.Forward(textDelta("c3", "c")))
	require.Len(t, sent, 1)
	merged := sent[0].Data.(*frame.Delta)
	assert.Equal(t, "c1", merged.ChunkID)
	assert.Equal(t, "abc", merged.Content)
}

func TestRelay_NonTextFlushesImmediately(t *testing.T) {
	var sent []*frame.Server
	r := newRelay(5, func(f *frame.Server) error {
		sent = append(sent, f)
		return nil
	})

	require.NoError(t, r.Forward(textDelta("c1", "partial ")))
	toolCall := frame.NewStream(frame.EventToolCall, &frame.ToolCall{CallID: "call-1"})
	require.NoError(t, r.Forward(toolCall))

	require.Len(t, sent, 2)
	assert.Equal(t, frame.EventDelta, sent[0].Event)
	assert.Equal(t, "partial ", sent[0].Data.(*frame.Delta).Content)
	assert.Equal(t, frame.EventToolCall, sent[1].Event)
}

func TestRelay_FlushDrainsBuffer(t *testing.T) {
	var sent []*frame.Server
	r := newRelay(5, func(f *frame.Server) error {
		sent = append(sent, f)
		return nil
	})
	require.NoError(t, r.Forward(textDelta("c1", "tail")))
	require.NoError(t, r.Flush())
	require.NoError(t, r.Flush())
	require.Len(t, sent, 1)
	assert.Equal(t, "tail", sent[0].Data.(*frame.Delta).Content)
}
