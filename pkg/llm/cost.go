package llm

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Usage is the token count of one model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// Total is input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// ModelPricing holds per-model token costs in USD per million tokens.
type ModelPricing struct {
	InputPerMTok  decimal.Decimal
	OutputPerMTok decimal.Decimal
}

var million = decimal.NewFromInt(1_000_000)

// defaultPricing covers the hosted models the Anthropic backend defaults to.
// Local models are free and simply absent.
var defaultPricing = map[string]ModelPricing{
	"claude-sonnet-4-5": {InputPerMTok: decimal.NewFromInt(3), OutputPerMTok: decimal.NewFromInt(15)},
	"claude-haiku-4-5":  {InputPerMTok: decimal.RequireFromString("0.80"), OutputPerMTok: decimal.NewFromInt(4)},
	"claude-opus-4-1":   {InputPerMTok: decimal.NewFromInt(15), OutputPerMTok: decimal.NewFromInt(75)},
}

var pricingMu sync.RWMutex

// GetPricing returns the pricing for a model and whether it was found.
func GetPricing(model string) (ModelPricing, bool) {
	pricingMu.RLock()
	defer pricingMu.RUnlock()
	p, ok := defaultPricing[model]
	return p, ok
}

// SetPricing sets the pricing for a model. Safe for concurrent use.
func SetPricing(model string, p ModelPricing) {
	pricingMu.Lock()
	defer pricingMu.Unlock()
	defaultPricing[model] = p
}

// CalculateCost computes the USD cost of one call. Unknown models cost zero.
func CalculateCost(model string, usage Usage) decimal.Decimal {
	pricing, ok := GetPricing(model)
	if !ok {
		return decimal.Zero
	}
	in := decimal.NewFromInt(int64(usage.InputTokens)).Mul(pricing.InputPerMTok)
	out := decimal.NewFromInt(int64(usage.OutputTokens)).Mul(pricing.OutputPerMTok)
	return in.Add(out).Div(million)
}

// CostTracker accumulates usage and cost across calls.
// Safe for concurrent use.
type CostTracker struct {
	mu         sync.Mutex
	total      decimal.Decimal
	modelUsage map[string]*ModelUsage
}

// ModelUsage is the per-model accumulation.
type ModelUsage struct {
	Usage Usage
	Calls int
	Cost  decimal.Decimal
}

func NewCostTracker() *CostTracker {
	return &CostTracker{modelUsage: make(map[string]*ModelUsage)}
}

// Add records one call and returns the cumulative cost.
func (ct *CostTracker) Add(model string, usage Usage) decimal.Decimal {
	cost := CalculateCost(model, usage)

	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.total = ct.total.Add(cost)
	mu, ok := ct.modelUsage[model]
	if !ok {
		mu = &ModelUsage{}
		ct.modelUsage[model] = mu
	}
	mu.Usage = mu.Usage.Add(usage)
	mu.Calls++
	mu.Cost = mu.Cost.Add(cost)
	return ct.total
}

// TotalCost returns the cumulative cost.
func (ct *CostTracker) TotalCost() decimal.Decimal {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.total
}

// ModelUsage returns a snapshot of per-model usage.
func (ct *CostTracker) ModelUsage() map[string]ModelUsage {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	out := make(map[string]ModelUsage, len(ct.modelUsage))
	for k, v := range ct.modelUsage {
		out[k] = *v
	}
	return out
}

// record is a nil-safe helper for providers.
func (ct *CostTracker) record(model string, usage Usage) {
	if ct == nil || usage.Total() == 0 {
		return
	}
	ct.Add(model, usage)
}
