// Package orchestrator runs the group-chat loop: it selects the next speaker,
// injects retrieved context, streams the provider reply, dispatches tool
// calls through the policy and approval gates and decides when the run is
// over.
package orchestrator

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/internal/idgen"
	"github.com/plenum-ai/plenum/internal/log"
	"github.com/plenum-ai/plenum/model/agent"
	"github.com/plenum-ai/plenum/model/chat"
	"github.com/plenum-ai/plenum/model/frame"
	"github.com/plenum-ai/plenum/service/cost"
	"github.com/plenum-ai/plenum/service/provider"
	"github.com/plenum-ai/plenum/service/rag"
	"github.com/plenum-ai/plenum/service/selector"
	"github.com/plenum-ai/plenum/service/tool"
	"github.com/plenum-ai/plenum/tracing"
)

// terminateMarker ends a run when it appears in an agent reply.
const terminateMarker = "TERMINATE"

// Config bounds a session run.
type Config struct {
	MaxRounds         int     `json:"maxRounds" yaml:"maxRounds"`
	MaxToolIterations int     `json:"maxToolIterations" yaml:"maxToolIterations"`
	HistoryWindow     int     `json:"historyWindow" yaml:"historyWindow"`
	BudgetUSD         float64 `json:"budgetUsd" yaml:"budgetUsd"`
}

// DefaultConfig returns the default run bounds; BudgetUSD zero means
// unlimited.
func DefaultConfig() Config {
	return Config{
		MaxRounds:         8,
		MaxToolIterations: 4,
		HistoryWindow:     20,
	}
}

// Sink receives every frame a run emits, in order.
type Sink func(*frame.Server)

// Run describes one orchestration pass over a session. The newest user
// message is expected to already be on the transcript.
type Run struct {
	Session *chat.Session
	Team    *agent.Team
	Tracker *cost.Tracker // accumulates across runs of one session; created when nil
	Sink    Sink          // optional frame observer
}

// Service drives session runs.
type Service struct {
	config    Config
	provider  provider.Provider
	selector  *selector.Service
	tools     *tool.Dispatcher
	registry  *tool.Registry
	memory    rag.Service
	ragConfig rag.Config
	pricing   cost.PricingTable
	emitter   *Emitter
	logger    *logrus.Logger
}

// Option customises the orchestrator.
type Option func(*Service)

// WithConfig overrides the run bounds.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithSelector overrides the speaker selector.
func WithSelector(svc *selector.Service) Option {
	return func(s *Service) {
		s.selector = svc
	}
}

// WithTools attaches the tool registry and its dispatcher.
func WithTools(registry *tool.Registry, dispatcher *tool.Dispatcher) Option {
	return func(s *Service) {
		s.registry = registry
		s.tools = dispatcher
	}
}

// WithMemory attaches the retrieval store used for context injection.
func WithMemory(store rag.Service, config rag.Config) Option {
	return func(s *Service) {
		s.memory = store
		s.ragConfig = config
	}
}

// WithEmitter mirrors run frames onto the typed event bus.
func WithEmitter(e *Emitter) Option {
	return func(s *Service) {
		s.emitter = e
	}
}

// WithPricing sets the table used when a run brings no tracker.
func WithPricing(pricing cost.PricingTable) Option {
	return func(s *Service) {
		s.pricing = pricing
	}
}

// New creates an orchestrator over the given provider.
func New(p provider.Provider, opts ...Option) (*Service, error) {
	if p == nil {
		return nil, errors.New("provider was nil")
	}
	s := &Service{
		config:    DefaultConfig(),
		provider:  p,
		selector:  selector.New(selector.Weights{}),
		ragConfig: rag.DefaultConfig(),
		logger:    log.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.MaxRounds <= 0 {
		s.config.MaxRounds = DefaultConfig().MaxRounds
	}
	if s.config.MaxToolIterations <= 0 {
		s.config.MaxToolIterations = DefaultConfig().MaxToolIterations
	}
	if s.config.HistoryWindow <= 0 {
		s.config.HistoryWindow = DefaultConfig().HistoryWindow
	}
	return s, nil
}

// Execute runs rounds until an agent produces a final answer or a bound
// trips. Every exit records its termination reason on the session: final,
// max_rounds, budget_exceeded, cancelled or error. The caller persists the
// session afterwards.
func (s *Service) Execute(ctx context.Context, run *Run) error {
	if run == nil || run.Session == nil || run.Team == nil {
		return errors.New("run was incomplete")
	}
	if run.Session.Status != chat.StatusActive {
		return errors.Errorf("session %v is not active", run.Session.ID)
	}
	if run.Tracker == nil {
		run.Tracker = cost.NewTracker(s.pricing)
	}
	session := run.Session
	ctx = rag.WithUserID(ctx, session.UserID)
	ctx, span := tracing.StartSpan(ctx, "orchestrator.execute", "INTERNAL")
	defer span.End()
	span.WithAttributes(map[string]string{"session.id": session.ID, "team": run.Team.Name})

	var next *agent.Agent
	for round := 0; round < s.config.MaxRounds; round++ {
		if ctx.Err() != nil {
			return s.cancel(ctx, run)
		}
		speaker := next
		next = nil
		if speaker == nil {
			chosen, scores, err := s.selector.Select(&selector.Request{
				Team:    run.Team,
				Session: session,
			})
			if err != nil {
				return s.fail(ctx, run, err)
			}
			speaker = chosen
			s.logger.WithFields(logrus.Fields{
				"session": session.ID,
				"agent":   speaker.Name,
				"round":   round,
				"scores":  scores,
			}).Debug("speaker selected")
		}

		s.emit(ctx, run, frame.NewStream(frame.EventAgentStatus, &frame.AgentStatus{
			SessionID: session.ID,
			AgentName: speaker.Name,
			Status:    "speaking",
			Timestamp: clock.Now(),
		}))

		reply, err := s.turn(ctx, run, speaker)
		if err != nil {
			// a cancelled context surfaces as a provider or tool error
			if ctx.Err() != nil {
				return s.cancel(ctx, run)
			}
			return s.fail(ctx, run, err)
		}

		terminal := strings.Contains(reply, terminateMarker)
		content := strings.TrimSpace(strings.ReplaceAll(reply, terminateMarker, ""))

		message := &chat.Message{
			ID:        idgen.New(),
			Role:      chat.RoleAssistant,
			Agent:     speaker.Name,
			Content:   content,
			CreatedAt: clock.Now(),
		}
		session.Append(message)
		session.Rounds++
		totals := run.Tracker.Total()
		session.InputTokens = totals.InputTokens
		session.OutputTokens = totals.OutputTokens
		session.CostUSD = totals.CostUSD

		if run.Tracker.Exceeds(s.config.BudgetUSD) {
			s.finish(ctx, run, speaker.Name, content, chat.TerminationBudgetExceeded)
			session.Finish(chat.StatusCompleted, chat.TerminationBudgetExceeded, clock.Now())
			return nil
		}
		if terminal {
			s.finish(ctx, run, speaker.Name, content, chat.TerminationFinal)
			session.Finish(chat.StatusCompleted, chat.TerminationFinal, clock.Now())
			return nil
		}

		successor := s.handoffTarget(message, run.Team, speaker)
		if successor == nil {
			s.finish(ctx, run, speaker.Name, content, chat.TerminationFinal)
			session.Finish(chat.StatusCompleted, chat.TerminationFinal, clock.Now())
			return nil
		}
		s.emit(ctx, run, frame.NewStream(frame.EventHandoff, &frame.Handoff{
			SessionID: session.ID,
			From:      speaker.Name,
			To:        successor.Name,
			Timestamp: clock.Now(),
		}))
		next = successor
	}

	last := session.LastMessage()
	content := ""
	agentName := ""
	if last != nil {
		content = last.Content
		agentName = last.Agent
	}
	s.finish(ctx, run, agentName, content, chat.TerminationMaxRounds)
	session.Finish(chat.StatusCompleted, chat.TerminationMaxRounds, clock.Now())
	return nil
}

// handoffTarget returns the first team member addressed as @name in the
// reply, or nil when the reply addresses nobody or only the user.
func (s *Service) handoffTarget(message *chat.Message, team *agent.Team, speaker *agent.Agent) *agent.Agent {
	for _, mention := range message.Mentions() {
		if strings.EqualFold(mention, speaker.Name) || strings.EqualFold(mention, "user") {
			continue
		}
		if successor := team.Lookup(mention); successor != nil {
			return successor
		}
	}
	return nil
}

func (s *Service) finish(ctx context.Context, run *Run, agentName, content string, reason chat.Termination) {
	s.emit(ctx, run, frame.NewStream(frame.EventFinal, &frame.Final{
		SessionID:   run.Session.ID,
		AgentName:   agentName,
		Content:     content,
		Termination: string(reason),
		Timestamp:   clock.Now(),
	}))
}

// cancel records an aborted run. Cancellation is not a failure: the session
// closes with the cancelled reason and the context error is returned as-is.
func (s *Service) cancel(ctx context.Context, run *Run) error {
	agentName, content := "", ""
	if last := run.Session.LastMessage(); last != nil {
		agentName, content = last.Agent, last.Content
	}
	s.finish(ctx, run, agentName, content, chat.TerminationCancelled)
	run.Session.Finish(chat.StatusCancelled, chat.TerminationCancelled, clock.Now())
	return ctx.Err()
}

func (s *Service) fail(ctx context.Context, run *Run, err error) error {
	s.logger.WithFields(logrus.Fields{
		"session": run.Session.ID,
		"error":   err,
	}).Error("session run failed")
	s.emit(ctx, run, frame.NewError(&frame.Error{
		SessionID: run.Session.ID,
		Message:   err.Error(),
		Timestamp: clock.Now(),
	}))
	run.Session.Error = err.Error()
	run.Session.Finish(chat.StatusFailed, chat.TerminationError, clock.Now())
	return err
}

func (s *Service) emit(ctx context.Context, run *Run, f *frame.Server) {
	if run.Sink != nil {
		run.Sink(f)
	}
	if s.emitter != nil {
		s.emitter.publish(ctx, run.Session.ID, f)
	}
}
