package memory

import (
	"github.com/plenum-ai/plenum/service/approval"
	"github.com/plenum-ai/plenum/service/dao"
	"github.com/plenum-ai/plenum/service/messaging"
)

type Option func(*service)

// WithRequestDAO overrides the request store (e.g. with a persistent DAO).
func WithRequestDAO(d dao.Service[string, approval.Request]) Option {
	return func(s *service) { s.reqDAO = d }
}

// WithDecisionDAO overrides the decision store.
func WithDecisionDAO(d dao.Service[string, approval.Decision]) Option {
	return func(s *service) { s.decDAO = d }
}

// WithEventQueue overrides the fan-out queue, allowing durable (fs) delivery
// of approval events.
func WithEventQueue(q messaging.Queue[approval.Event]) Option {
	return func(s *service) { s.events = q }
}
