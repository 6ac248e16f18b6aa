package frame

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeltaRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	original := NewStream(EventDelta, &Delta{
		ChunkID:   "c-1",
		SessionID: "s-1",
		AgentName: "planner",
		ChunkType: ChunkTypeText,
		Content:   "hello",
		Timestamp: now,
	})

	data, err := json.Marshal(original)
	assert.NoError(t, err)

	// every delta frame must carry all six data fields
	var raw struct {
		Type  string                 `json:"type"`
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, TypeStream, raw.Type)
	assert.Equal(t, EventDelta, raw.Event)
	for _, field := range []string{"chunk_id", "session_id", "agent_name", "chunk_type", "content", "timestamp"} {
		assert.Contains(t, raw.Data, field)
	}
}

func TestClientFrame(t *testing.T) {
	var client Client
	err := json.Unmarshal([]byte(`{"message":"hi","context":{"locale":"en"}}`), &client)
	assert.NoError(t, err)
	assert.Equal(t, "hi", client.Message)
	assert.JSONEq(t, `{"locale":"en"}`, string(client.Context))

	var bare Client
	err = json.Unmarshal([]byte(`{"message":"bare"}`), &bare)
	assert.NoError(t, err)
	assert.Equal(t, "bare", bare.Message)
	assert.Nil(t, bare.Context)
}

func TestEnvelopeTypes(t *testing.T) {
	assert.Equal(t, TypeStatus, NewStatus(EventHeartbeat, nil).Type)
	assert.Equal(t, TypeError, NewError(&Error{Message: "boom"}).Type)
	assert.Equal(t, EventError, NewError(&Error{Message: "boom"}).Event)
}
