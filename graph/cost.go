package graph

import (
	"fmt"
	"sync"
	"time"
)

// ModelPricing defines input and output token costs for LLM models.
// Prices are in USD per 1M tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// Static pricing for the models the assistant is configured with.
// Prices are list prices and change over time; override with SetPricing.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4.1":                  {InputPer1M: 2.00, OutputPer1M: 8.00},
	"gpt-4.1-mini":             {InputPer1M: 0.40, OutputPer1M: 1.60},
	"gpt-4.1-nano":             {InputPer1M: 0.10, OutputPer1M: 0.40},
	"gpt-4o":                   {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":              {InputPer1M: 0.15, OutputPer1M: 0.60},
	"claude-sonnet-4-20250514": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-haiku-latest":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"gemini-2.0-flash":         {InputPer1M: 0.10, OutputPer1M: 0.40},
	"gemini-1.5-pro":           {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":         {InputPer1M: 0.075, OutputPer1M: 0.30},
}

// LLMCall represents a single LLM API invocation with token usage and cost.
type LLMCall struct {
	ThreadID     string
	NodeID       string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
}

// CostTracker accumulates token usage and cost per model and per thread.
//
// A single tracker is shared by every agent node of a process. Unknown
// models are recorded with zero cost so token counts stay accurate.
//
// Example:
//
//	tracker := graph.NewCostTracker()
//	call := tracker.Record("thread-1", "product_qa_agent", "gpt-4.1", 1200, 300)
//	fmt.Printf("$%.4f\n", call.CostUSD)
type CostTracker struct {
	mu           sync.RWMutex
	pricing      map[string]ModelPricing
	totalCost    float64
	modelCosts   map[string]float64
	threadCosts  map[string]float64
	inputTokens  int64
	outputTokens int64
	calls        int
}

// NewCostTracker creates a tracker with the default pricing table.
func NewCostTracker() *CostTracker {
	pricing := make(map[string]ModelPricing, len(defaultModelPricing))
	for k, v := range defaultModelPricing {
		pricing[k] = v
	}
	return &CostTracker{
		pricing:     pricing,
		modelCosts:  make(map[string]float64),
		threadCosts: make(map[string]float64),
	}
}

// Record adds one LLM call and returns it with its computed cost.
func (ct *CostTracker) Record(threadID, nodeID, model string, inputTokens, outputTokens int) LLMCall {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	p := ct.pricing[model]
	cost := float64(inputTokens)/1_000_000.0*p.InputPer1M + float64(outputTokens)/1_000_000.0*p.OutputPer1M

	ct.totalCost += cost
	ct.modelCosts[model] += cost
	ct.threadCosts[threadID] += cost
	ct.inputTokens += int64(inputTokens)
	ct.outputTokens += int64(outputTokens)
	ct.calls++

	return LLMCall{
		ThreadID:     threadID,
		NodeID:       nodeID,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
		Timestamp:    time.Now(),
	}
}

// TotalCost returns the cumulative cost in USD.
func (ct *CostTracker) TotalCost() float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.totalCost
}

// ThreadCost returns the cumulative cost of one thread.
func (ct *CostTracker) ThreadCost(threadID string) float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.threadCosts[threadID]
}

// CostByModel returns a copy of the per-model cost breakdown.
func (ct *CostTracker) CostByModel() map[string]float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	costs := make(map[string]float64, len(ct.modelCosts))
	for model, cost := range ct.modelCosts {
		costs[model] = cost
	}
	return costs
}

// TokenUsage returns cumulative input and output tokens.
func (ct *CostTracker) TokenUsage() (inputTokens, outputTokens int64) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.inputTokens, ct.outputTokens
}

// SetPricing overrides or adds pricing for a model.
func (ct *CostTracker) SetPricing(model string, inputPer1M, outputPer1M float64) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.pricing[model] = ModelPricing{InputPer1M: inputPer1M, OutputPer1M: outputPer1M}
}

// String implements fmt.Stringer.
func (ct *CostTracker) String() string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return fmt.Sprintf("CostTracker{Calls: %d, TotalCost: $%.4f, InputTokens: %d, OutputTokens: %d}",
		ct.calls, ct.totalCost, ct.inputTokens, ct.outputTokens)
}
