package cost

import "strings"

// Pricing holds USD rates per one million tokens.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// PricingTable maps a model name prefix to its rates. Longest matching prefix
// wins so families ("claude-sonnet-4") can be priced with one entry.
type PricingTable map[string]Pricing

// DefaultPricing returns approximate current Anthropic list prices.
func DefaultPricing() PricingTable {
	return PricingTable{
		"claude-opus":   {InputPerMTok: 15.0, OutputPerMTok: 75.0},
		"claude-sonnet": {InputPerMTok: 3.0, OutputPerMTok: 15.0},
		"claude-haiku":  {InputPerMTok: 0.8, OutputPerMTok: 4.0},
	}
}

// Lookup returns the rates for the model and whether any entry matched.
func (t PricingTable) Lookup(model string) (Pricing, bool) {
	model = strings.ToLower(model)
	var best string
	var found Pricing
	for prefix, pricing := range t {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
			found = pricing
		}
	}
	return found, best != ""
}

// Cost computes the USD cost of the given token counts for the model; unknown
// models cost zero.
func (t PricingTable) Cost(model string, inputTokens, outputTokens int64) float64 {
	pricing, ok := t.Lookup(model)
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000*pricing.InputPerMTok +
		float64(outputTokens)/1_000_000*pricing.OutputPerMTok
}
