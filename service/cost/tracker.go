// Package cost tracks token usage and model spend per session and per agent.
// The orchestrator records usage after every provider call; the session budget
// check stops a run before it overshoots.
package cost

import (
	"sync"
)

// Usage is one recorded provider call.
type Usage struct {
	Agent        string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Totals aggregates usage for one agent or one whole session.
type Totals struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	Calls        int     `json:"calls"`
	CostUSD      float64 `json:"costUsd"`
}

// Tracker accumulates usage for a single session. It is safe for concurrent
// use.
type Tracker struct {
	mu      sync.Mutex
	pricing PricingTable
	total   Totals
	byAgent map[string]*Totals
}

// NewTracker creates a tracker priced by the supplied table; a nil table
// falls back to DefaultPricing.
func NewTracker(pricing PricingTable) *Tracker {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	return &Tracker{
		pricing: pricing,
		byAgent: make(map[string]*Totals),
	}
}

// Add records usage from one provider call.
func (t *Tracker) Add(u Usage) {
	cost := t.pricing.Cost(u.Model, u.InputTokens, u.OutputTokens)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total.InputTokens += u.InputTokens
	t.total.OutputTokens += u.OutputTokens
	t.total.Calls++
	t.total.CostUSD += cost

	agent := t.byAgent[u.Agent]
	if agent == nil {
		agent = &Totals{}
		t.byAgent[u.Agent] = agent
	}
	agent.InputTokens += u.InputTokens
	agent.OutputTokens += u.OutputTokens
	agent.Calls++
	agent.CostUSD += cost
}

// Total returns the session-wide aggregate.
func (t *Tracker) Total() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Agent returns the aggregate for one agent.
func (t *Tracker) Agent(name string) Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	if agent := t.byAgent[name]; agent != nil {
		return *agent
	}
	return Totals{}
}

// Agents returns a copy of the per-agent breakdown.
func (t *Tracker) Agents() map[string]Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Totals, len(t.byAgent))
	for name, totals := range t.byAgent {
		out[name] = *totals
	}
	return out
}

// Exceeds reports whether spend has crossed the budget; a zero or negative
// budget never trips.
func (t *Tracker) Exceeds(budgetUSD float64) bool {
	if budgetUSD <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total.CostUSD >= budgetUSD
}

// Reset clears all tracked usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = Totals{}
	t.byAgent = make(map[string]*Totals)
}
