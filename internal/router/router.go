// Package router selects reasoning models per task tier and tracks
// per-model usage and cost across the fleet.
package router

import (
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
)

// Tier classifies how much reasoning a task needs.
type Tier string

const (
	// TierFast suits mechanical tasks: formatting, extraction, triage.
	TierFast Tier = "fast"
	// TierBalanced is the default for ordinary agent work.
	TierBalanced Tier = "balanced"
	// TierDeep suits decomposition, synthesis and other planning-heavy
	// work.
	TierDeep Tier = "deep"
)

// Router selects a model for a task and records what each call cost.
type Router interface {
	// SelectModel returns the model to use for a task of the given tier.
	SelectModel(tier Tier) anthropic.Model

	// RecordUsage records a completed call against the model.
	RecordUsage(model anthropic.Model, inputTokens, outputTokens int64)

	// Stats returns a snapshot of accumulated routing statistics.
	Stats() Stats
}

// ModelUsage accumulates per-model call statistics.
type ModelUsage struct {
	// Calls counts completed calls to the model.
	Calls int64 `json:"calls"`
	// InputTokens and OutputTokens are cumulative token counts.
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	// Cost is the estimated spend in dollars.
	Cost float64 `json:"cost"`
}

// Stats is a point-in-time copy of routing statistics.
type Stats struct {
	// Enabled reports whether tier routing is active.
	Enabled bool `json:"enabled"`
	// TotalCalls counts calls across all models.
	TotalCalls int64 `json:"total_calls"`
	// TotalCost is the estimated fleet-wide spend in dollars.
	TotalCost float64 `json:"total_cost"`
	// ByModel breaks usage down per model.
	ByModel map[string]ModelUsage `json:"by_model"`
}

// pricing holds per-million-token dollar rates for a model.
type pricing struct {
	input  float64
	output float64
}

// Approximate public API pricing. Unknown models fall back to Sonnet
// rates.
var modelPricing = map[anthropic.Model]pricing{
	anthropic.ModelClaudeSonnet4_20250514: {input: 3.0, output: 15.0},
	anthropic.ModelClaude3_5Haiku20241022: {input: 0.8, output: 4.0},
	anthropic.ModelClaudeOpus4_1_20250805: {input: 15.0, output: 75.0},
}

var defaultPricing = pricing{input: 3.0, output: 15.0}

// CostTracker is the default Router. It maps tiers to a static model
// table and tallies usage per model. Safe for concurrent use.
type CostTracker struct {
	enabled      bool
	defaultModel anthropic.Model
	tiers        map[Tier]anthropic.Model

	mu      sync.Mutex
	byModel map[anthropic.Model]*ModelUsage
}

var _ Router = (*CostTracker)(nil)

// Option configures a CostTracker.
type Option func(*CostTracker)

// WithDefaultModel overrides the model used when routing is disabled or
// a tier is unknown.
func WithDefaultModel(model anthropic.Model) Option {
	return func(t *CostTracker) {
		t.defaultModel = model
	}
}

// WithTierModel overrides the model for a single tier.
func WithTierModel(tier Tier, model anthropic.Model) Option {
	return func(t *CostTracker) {
		t.tiers[tier] = model
	}
}

// NewCostTracker creates the default router. When enabled is false
// every tier resolves to the default model; usage is tracked either
// way.
func NewCostTracker(enabled bool, opts ...Option) *CostTracker {
	t := &CostTracker{
		enabled:      enabled,
		defaultModel: anthropic.ModelClaudeSonnet4_20250514,
		tiers: map[Tier]anthropic.Model{
			TierFast:     anthropic.ModelClaude3_5Haiku20241022,
			TierBalanced: anthropic.ModelClaudeSonnet4_20250514,
			TierDeep:     anthropic.ModelClaudeOpus4_1_20250805,
		},
		byModel: make(map[anthropic.Model]*ModelUsage),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SelectModel returns the tier's model, or the default model when
// routing is disabled or the tier is unknown.
func (t *CostTracker) SelectModel(tier Tier) anthropic.Model {
	if !t.enabled {
		return t.defaultModel
	}
	if model, ok := t.tiers[tier]; ok {
		return model
	}
	return t.defaultModel
}

// RecordUsage tallies a completed call against the model.
func (t *CostTracker) RecordUsage(model anthropic.Model, inputTokens, outputTokens int64) {
	rates, ok := modelPricing[model]
	if !ok {
		rates = defaultPricing
	}
	cost := float64(inputTokens)/1_000_000*rates.input + float64(outputTokens)/1_000_000*rates.output

	t.mu.Lock()
	defer t.mu.Unlock()
	usage, ok := t.byModel[model]
	if !ok {
		usage = &ModelUsage{}
		t.byModel[model] = usage
	}
	usage.Calls++
	usage.InputTokens += inputTokens
	usage.OutputTokens += outputTokens
	usage.Cost += cost
}

// Stats copies the accumulated statistics.
func (t *CostTracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{
		Enabled: t.enabled,
		ByModel: make(map[string]ModelUsage, len(t.byModel)),
	}
	for model, usage := range t.byModel {
		stats.ByModel[string(model)] = *usage
		stats.TotalCalls += usage.Calls
		stats.TotalCost += usage.Cost
	}
	return stats
}
