package server

import (
	"strings"
	"sync"

	"github.com/plenum-ai/plenum/model/frame"
)

// defaultWindow is how many text chunks the relay coalesces before flushing.
const defaultWindow = 5

// relay applies the streaming backpressure rule: consecutive text deltas are
// buffered up to the window size and coalesced into one delta frame; any
// other frame flushes the buffer first and is forwarded at once.
type relay struct {
	send   func(*frame.Server) error
	window int

	mu      sync.Mutex
	pending []*frame.Delta
}

func newRelay(window int, send func(*frame.Server) error) *relay {
	if window <= 0 {
		window = defaultWindow
	}
	return &relay{send: send, window: window}
}

// Forward routes one frame through the buffer.
func (r *relay) Forward(f *frame.Server) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if delta, ok := f.Data.(*frame.Delta); ok && f.Event == frame.EventDelta && delta.ChunkType == frame.ChunkTypeText {
		r.pending = append(r.pending, delta)
		if len(r.pending) >= r.window {
			return r.flushLocked()
		}
		return nil
	}
	if err := r.flushLocked(); err != nil {
		return err
	}
	return r.send(f)
}

// Flush drains any buffered chunks.
func (r *relay) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *relay) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}
	first := r.pending[0]
	last := r.pending[len(r.pending)-1]
	var content strings.Builder
	for _, delta := range r.pending {
		content.WriteString(delta.Content)
	}
	merged := &frame.Delta{
		ChunkID:   first.ChunkID,
		SessionID: first.SessionID,
		AgentName: first.AgentName,
		ChunkType: frame.ChunkTypeText,
		Content:   content.String(),
		Timestamp: last.Timestamp,
	}
	r.pending = r.pending[:0]
	return r.send(frame.NewStream(frame.EventDelta, merged))
}
