package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/internal/idgen"
	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/model/frame"
	"github.com/plenum-ai/plenum/policy"
	"github.com/plenum-ai/plenum/service/cost"
	"github.com/plenum-ai/plenum/service/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the endpoint carries no cookies or credentials
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsConn serialises writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) WriteClose(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
}

func (s *Server) handleStreaming(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	agentName := r.PathValue("agent_name")

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithField("error", err).Warn("websocket upgrade failed")
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	if !s.config.Streaming.Enabled {
		_ = conn.WriteJSON(frame.NewStatus(frame.EventDisabled, map[string]string{
			"reason": "streaming is disabled",
		}))
		conn.WriteClose(websocket.CloseNormalClosure, "streaming disabled")
		return
	}

	team := s.resolver(agentName)
	if team == nil {
		_ = conn.WriteJSON(frame.NewError(&frame.Error{
			Message:   "unknown agent " + agentName,
			Timestamp: clock.Now(),
		}))
		conn.WriteClose(websocket.CloseNormalClosure, "unknown agent")
		return
	}

	session := &chat.Session{
		ID:        idgen.New(),
		UserID:    userID,
		Team:      team.Name,
		Status:    chat.StatusActive,
		StartedAt: clock.Now(),
	}
	s.saveSession(r.Context(), session)

	if err := conn.WriteJSON(frame.NewStatus(frame.EventSessionCreated, &frame.SessionCreated{
		SessionID: session.ID,
		UserID:    userID,
		AgentName: agentName,
		Timestamp: clock.Now(),
	})); err != nil {
		return
	}

	logger := s.logger.WithFields(logrus.Fields{
		"session": session.ID,
		"user":    userID,
	})
	logger.Info("streaming session started")

	var busy atomic.Bool
	heartbeatCtx, stopHeartbeat := context.WithCancel(r.Context())
	defer stopHeartbeat()
	go s.heartbeat(heartbeatCtx, conn, session.ID, &busy)

	ctx := r.Context()
	if s.policy != nil {
		ctx = policy.WithPolicy(ctx, s.policy)
	}
	tracker := cost.NewTracker(nil)

	for {
		var client frame.Client
		if err := raw.ReadJSON(&client); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithField("error", err).Warn("client connection lost")
			}
			break
		}
		if client.Message == "" {
			continue
		}
		// a finished run resumes when the client keeps talking
		if session.Status != chat.StatusActive {
			session.Reopen()
		}

		session.Append(&chat.Message{
			ID:        idgen.New(),
			Role:      chat.RoleUser,
			Content:   client.Message,
			Context:   client.Context,
			CreatedAt: clock.Now(),
		})

		busy.Store(true)
		err := s.runOnce(ctx, conn, session, team, tracker)
		busy.Store(false)

		s.saveSession(ctx, session)
		if err != nil {
			conn.WriteClose(websocket.CloseNormalClosure, "session failed")
			return
		}
	}

	// completed runs already carry their termination; only a session the
	// client abandoned mid-flight is still active here
	if session.Status == chat.StatusActive {
		session.Finish(chat.StatusCancelled, chat.TerminationCancelled, clock.Now())
		s.saveSession(context.Background(), session)
	}
	logger.Info("streaming session closed")
}

// runOnce drives one orchestrator pass, relaying its frames through the
// backpressure buffer. Tracker state lives on the run so spend accumulates
// across messages of the same connection.
func (s *Server) runOnce(ctx context.Context, conn *wsConn, session *chat.Session, team *agent.Team, tracker *cost.Tracker) error {
	buffer := newRelay(s.config.Streaming.Window, func(f *frame.Server) error {
		return conn.WriteJSON(f)
	})
	run := &orchestrator.Run{
		Session: session,
		Team:    team,
		Tracker: tracker,
		Sink: func(f *frame.Server) {
			if err := buffer.Forward(f); err != nil {
				s.logger.WithField("error", err).Debug("frame relay failed")
			}
		},
	}
	err := s.orchestrator.Execute(ctx, run)
	if flushErr := buffer.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	return err
}

func (s *Server) heartbeat(ctx context.Context, conn *wsConn, sessionID string, busy *atomic.Bool) {
	interval := s.config.Streaming.Heartbeat
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if busy.Load() {
				continue
			}
			_ = conn.WriteJSON(frame.NewStatus(frame.EventHeartbeat, map[string]interface{}{
				"session_id": sessionID,
				"timestamp":  clock.Now(),
			}))
		}
	}
}

func (s *Server) saveSession(ctx context.Context, session *chat.Session) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.WithFields(logrus.Fields{
			"session": session.ID,
			"error":   err,
		}).Warn("session save failed")
	}
}
