package approval

import (
	"context"
	"strings"
	"time"

	"github.com/plenum-ai/plenum/internal/clock"
)

// DecisionFunc decides what to do with a pending request.
// Return (true,  "") to approve
//
//	(false, "…") to reject with reason.
type DecisionFunc func(r *Request) (approved bool, reason string)

// AutoDecider starts a goroutine that polls ListPending and applies fn to
// every request.  It returns stop() – call it (or cancel ctx) to exit.
func AutoDecider(ctx context.Context,
	svc Service,
	fn DecisionFunc,
	interval time.Duration) (stop func()) {

	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				reqs, _ := svc.ListPending(ctx)
				for _, r := range reqs {
					ok, reason := fn(r)
					_, _ = svc.Decide(ctx, r.ID, ok, reason)
				}
			}
		}
	}()
	return func() { close(done) }
}

// AutoApprove automatically approves all pending requests
func AutoApprove(ctx context.Context,
	svc Service,
	interval time.Duration) func() {
	return AutoDecider(ctx, svc,
		func(*Request) (bool, string) { return true, "" }, interval)
}

// AutoReject automatically rejects all pending requests with the given reason
func AutoReject(ctx context.Context,
	svc Service,
	reason string,
	interval time.Duration) func() {
	return AutoDecider(ctx, svc,
		func(*Request) (bool, string) { return false, reason }, interval)
}

// AutoExpire rejects requests whose ExpiresAt deadline has passed; requests
// without a deadline are left untouched.
func AutoExpire(ctx context.Context,
	svc Service,
	reason string,
	interval time.Duration) func() {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				reqs, _ := svc.ListPending(ctx)
				for _, r := range reqs {
					if r.ExpiresAt != nil && clock.Now().After(*r.ExpiresAt) {
						_, _ = svc.Decide(ctx, r.ID, false, reason)
					}
				}
			}
		}
	}()
	return func() { close(done) }
}

// PendingFilter narrows the result of ListPending.
type PendingFilter func(*Request) bool

// WithSessionID keeps requests belonging to the given session.
func WithSessionID(sessionID string) PendingFilter {
	return func(r *Request) bool { return r.SessionID == sessionID }
}

// WithAction keeps requests for the given fully-qualified action.
func WithAction(action string) PendingFilter {
	return func(r *Request) bool { return strings.EqualFold(r.Action, action) }
}

// ListPending returns the service's pending requests matching all filters.
func ListPending(ctx context.Context, svc Service, filters ...PendingFilter) ([]*Request, error) {
	all, err := svc.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return all, nil
	}
	out := make([]*Request, 0, len(all))
outer:
	for _, r := range all {
		for _, filter := range filters {
			if !filter(r) {
				continue outer
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// WaitForDecision blocks until a decision for the given request id is
// recorded or the timeout elapses.
func WaitForDecision(ctx context.Context, svc Service, id string, timeout time.Duration) (*Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		d, err := svc.Decision(ctx, id)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
