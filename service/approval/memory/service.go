package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/plenum-ai/plenum/internal/clock"
	"github.com/plenum-ai/plenum/internal/idgen"
	"github.com/plenum-ai/plenum/service/approval"
	"github.com/plenum-ai/plenum/service/dao"
	"github.com/plenum-ai/plenum/service/dao/store"
	"github.com/plenum-ai/plenum/service/messaging"
	qmem "github.com/plenum-ai/plenum/service/messaging/memory"
)

type service struct {
	// DAO-backed stores
	reqDAO dao.Service[string, approval.Request]
	decDAO dao.Service[string, approval.Decision]

	// fan-out queue
	events messaging.Queue[approval.Event]
}

// key selectors – grab ID field
func reqKey(r *approval.Request) string  { return r.ID }
func decKey(d *approval.Decision) string { return d.ID }

func New(options ...Option) approval.Service {
	ret := &service{
		reqDAO: store.NewMemoryStore[string, approval.Request](reqKey),
		decDAO: store.NewMemoryStore[string, approval.Decision](decKey),
		events: qmem.NewQueue[approval.Event](qmem.DefaultConfig()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *service) RequestApproval(ctx context.Context, r *approval.Request) error {
	if r == nil {
		return errors.New("invalid request")
	}
	// Ensure the request has a globally unique identifier.  Fallback to the
	// tool call id (unique within a run) to protect against silent drops
	// caused by empty IDs.
	if r.ID == "" {
		if r.CallID != "" {
			r.ID = r.CallID
		} else {
			r.ID = idgen.New()
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = clock.Now()
	}

	// Idempotent save – overwrite any previous copy to handle re-submissions
	// gracefully.
	_ = s.reqDAO.Save(ctx, r)
	_ = s.events.Publish(ctx, &approval.Event{Topic: approval.TopicRequestCreated, Data: r})
	return nil
}

func (s *service) ListPending(ctx context.Context) ([]*approval.Request, error) {
	all, err := s.reqDAO.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*approval.Request, 0, len(all))
	for _, r := range all {
		if d, _ := s.decDAO.Load(ctx, r.ID); d == nil {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func (s *service) Decide(ctx context.Context, id string, ok bool, reason string) (*approval.Decision, error) {
	if id == "" {
		return nil, errors.New("empty id")
	}
	request, _ := s.reqDAO.Load(ctx, id)
	if request == nil {
		return nil, fmt.Errorf("request %s not found", id)
	}
	if d, _ := s.decDAO.Load(ctx, id); d != nil {
		return nil, fmt.Errorf("already decided")
	}

	d := &approval.Decision{
		ID:        id,
		Approved:  ok,
		Reason:    reason,
		DecidedAt: clock.Now(),
	}
	_ = s.decDAO.Save(ctx, d)
	_ = s.events.Publish(ctx, &approval.Event{Topic: approval.TopicDecisionCreated, Data: d})
	return d, nil
}

func (s *service) Decision(ctx context.Context, id string) (*approval.Decision, error) {
	return s.decDAO.Load(ctx, id)
}

func (s *service) Queue() messaging.Queue[approval.Event] { return s.events }

var _ approval.Service = (*service)(nil)
