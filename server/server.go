// Package server exposes the orchestrator over HTTP: the streaming WebSocket
// endpoint, a health probe and a small approval REST surface for
// human-in-the-loop decisions.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plenum-ai/plenum/internal/log"
	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/policy"
	"github.com/plenum-ai/plenum/service/approval"
	"github.com/plenum-ai/plenum/service/dao"
	"github.com/plenum-ai/plenum/service/orchestrator"
)

// StreamingConfig tunes the WebSocket relay.
type StreamingConfig struct {
	// Enabled is the TRUE_STREAMING feature flag; when false connections get
	// a disabled status frame and are closed.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Window is how many text chunks are coalesced per delta flush.
	Window int `json:"window" yaml:"window"`
	// Heartbeat is the idle heartbeat interval.
	Heartbeat time.Duration `json:"heartbeat" yaml:"heartbeat"`
}

// Config represents server configuration.
type Config struct {
	Addr      string          `json:"addr" yaml:"addr"`
	Streaming StreamingConfig `json:"streaming" yaml:"streaming"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr: ":8080",
		Streaming: StreamingConfig{
			Enabled:   true,
			Window:    defaultWindow,
			Heartbeat: 30 * time.Second,
		},
	}
}

// TeamResolver maps the {agent_name} path segment to a roster: either a team
// name or the name of an agent inside a team.
type TeamResolver func(name string) *agent.Team

// Server wires the HTTP surface.
type Server struct {
	config       Config
	orchestrator *orchestrator.Service
	sessions     dao.Service[string, chat.Session]
	approvals    approval.Service
	resolver     TeamResolver
	policy       *policy.Policy
	logger       *logrus.Logger
	httpServer   *http.Server
}

// Option customises the server.
type Option func(*Server)

// WithConfig overrides the server configuration.
func WithConfig(config Config) Option {
	return func(s *Server) {
		s.config = config
	}
}

// WithSessionDAO sets the session store.
func WithSessionDAO(sessions dao.Service[string, chat.Session]) Option {
	return func(s *Server) {
		s.sessions = sessions
	}
}

// WithApprovalService exposes the approval REST surface.
func WithApprovalService(svc approval.Service) Option {
	return func(s *Server) {
		s.approvals = svc
	}
}

// WithTeamResolver sets how the path agent name resolves to a roster.
func WithTeamResolver(resolver TeamResolver) Option {
	return func(s *Server) {
		s.resolver = resolver
	}
}

// WithTeams resolves the path agent name against a fixed set: first by team
// name, then by member name.
func WithTeams(teams ...*agent.Team) Option {
	return WithTeamResolver(func(name string) *agent.Team {
		for _, team := range teams {
			if strings.EqualFold(team.Name, name) {
				return team
			}
		}
		for _, team := range teams {
			if team.Lookup(name) != nil {
				return team
			}
		}
		return nil
	})
}

// WithPolicy attaches the tool approval policy applied to every run.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Server) {
		s.policy = p
	}
}

// New creates a server.
func New(orch *orchestrator.Service, opts ...Option) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	s := &Server{
		config:       DefaultConfig(),
		orchestrator: orch,
		logger:       log.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		return nil, fmt.Errorf("team resolver is required")
	}
	return s, nil
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/agents/ws/streaming/{user_id}/{agent_name}", s.handleStreaming)
	if s.approvals != nil {
		mux.HandleFunc("GET /api/approvals", s.handleListApprovals)
		mux.HandleFunc("POST /api/approvals/{id}/decision", s.handleDecideApproval)
	}
	return mux
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	filters := []approval.PendingFilter{}
	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		filters = append(filters, approval.WithSessionID(sessionID))
	}
	pending, err := approval.ListPending(r.Context(), s.approvals, filters...)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleDecideApproval(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Approved bool   `json:"approved"`
		Reason   string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	decision, err := s.approvals.Decide(r.Context(), r.PathValue("id"), body.Approved, body.Reason)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
