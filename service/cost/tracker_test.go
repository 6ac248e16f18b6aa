package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricingLookup(t *testing.T) {
	table := DefaultPricing()

	pricing, ok := table.Lookup("claude-sonnet-4-20250514")
	assert.True(t, ok)
	assert.Equal(t, 3.0, pricing.InputPerMTok)

	_, ok = table.Lookup("gpt-4o")
	assert.False(t, ok)
	assert.Equal(t, 0.0, table.Cost("gpt-4o", 1000, 1000))

	// 1M input + 1M output on sonnet = 3 + 15
	assert.InDelta(t, 18.0, table.Cost("claude-sonnet-4", 1_000_000, 1_000_000), 1e-9)
}

func TestTracker(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Add(Usage{Agent: "planner", Model: "claude-sonnet-4", InputTokens: 1_000_000, OutputTokens: 0})
	tracker.Add(Usage{Agent: "coder", Model: "claude-haiku-4", InputTokens: 0, OutputTokens: 1_000_000})

	total := tracker.Total()
	assert.Equal(t, int64(1_000_000), total.InputTokens)
	assert.Equal(t, int64(1_000_000), total.OutputTokens)
	assert.Equal(t, 2, total.Calls)
	assert.InDelta(t, 3.0+4.0, total.CostUSD, 1e-9)

	planner := tracker.Agent("planner")
	assert.Equal(t, 1, planner.Calls)
	assert.InDelta(t, 3.0, planner.CostUSD, 1e-9)
	assert.Equal(t, Totals{}, tracker.Agent("unknown"))

	assert.Len(t, tracker.Agents(), 2)

	assert.False(t, tracker.Exceeds(0), "zero budget never trips")
	assert.False(t, tracker.Exceeds(100))
	assert.True(t, tracker.Exceeds(5))

	tracker.Reset()
	assert.Equal(t, Totals{}, tracker.Total())
}

func TestTrackerConcurrent(t *testing.T) {
	tracker := NewTracker(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Add(Usage{Agent: "planner", Model: "claude-sonnet-4", InputTokens: 10, OutputTokens: 5})
		}()
	}
	wg.Wait()
	total := tracker.Total()
	assert.Equal(t, int64(500), total.InputTokens)
	assert.Equal(t, int64(250), total.OutputTokens)
	assert.Equal(t, 50, total.Calls)
}
