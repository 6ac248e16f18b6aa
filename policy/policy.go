// Package policy provides a simple, optional per-tool approval layer that can
// be attached to a session run via context.  It is deliberately decoupled from
// the rest of Plenum so that using it is entirely opt-in – runs that do not
// embed the Policy in their context keep the original "auto" behaviour.

package policy

import (
	"context"
	"strings"
)

// Execution modes recognised by the orchestrator.
const (
	ModeAsk  = "ask"  // park the tool call until a human decision is recorded
	ModeAuto = "auto" // execute automatically (default)
	ModeDeny = "deny" // block execution
)

// Policy represents the approval settings for the current session run.
//
//   - Mode controls the high-level behaviour (ask / auto / deny).
//   - AllowList, BlockList allow coarse filtering regardless of Mode.
//
// A nil *Policy means "execute everything automatically" and is therefore the
// zero-cost default.
type Policy struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// IsAllowed evaluates AllowList / BlockList.  Both lists match by exact string
// comparison (case-insensitive) of the fully-qualified action name
// "service.method".
func (p *Policy) IsAllowed(action string) bool {
	if p == nil {
		return true
	}

	normalized := strings.ToLower(action)

	// BlockList has priority.
	for _, b := range p.BlockList {
		if normalized == strings.ToLower(b) {
			return false
		}
	}

	// AllowList – if empty everything is allowed, otherwise only the listed
	// entries.
	if len(p.AllowList) == 0 {
		return true
	}
	for _, a := range p.AllowList {
		if normalized == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether the action must wait for a human decision.
func (p *Policy) RequiresApproval(action string) bool {
	if p == nil {
		return false
	}
	return strings.ToLower(p.Mode) == ModeAsk && p.IsAllowed(action)
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
