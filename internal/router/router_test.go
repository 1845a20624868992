package router

import (
	"math"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestSelectModel_Tiers(t *testing.T) {
	r := NewCostTracker(true)

	tests := []struct {
		tier Tier
		want anthropic.Model
	}{
		{TierFast, anthropic.ModelClaude3_5Haiku20241022},
		{TierBalanced, anthropic.ModelClaudeSonnet4_20250514},
		{TierDeep, anthropic.ModelClaudeOpus4_1_20250805},
		{Tier("unknown"), anthropic.ModelClaudeSonnet4_20250514},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			if got := r.SelectModel(tt.tier); got != tt.want {
				t.Errorf("SelectModel(%q) = %q, want %q", tt.tier, got, tt.want)
			}
		})
	}
}

func TestSelectModel_RoutingDisabled(t *testing.T) {
	r := NewCostTracker(false)
	for _, tier := range []Tier{TierFast, TierBalanced, TierDeep} {
		if got := r.SelectModel(tier); got != anthropic.ModelClaudeSonnet4_20250514 {
			t.Errorf("SelectModel(%q) = %q, want default model", tier, got)
		}
	}
}

func TestSelectModel_Overrides(t *testing.T) {
	custom := anthropic.Model("custom-model")
	r := NewCostTracker(true,
		WithDefaultModel(custom),
		WithTierModel(TierFast, custom),
	)
	if got := r.SelectModel(TierFast); got != custom {
		t.Errorf("SelectModel(fast) = %q, want %q", got, custom)
	}
	if got := r.SelectModel(Tier("unknown")); got != custom {
		t.Errorf("SelectModel(unknown) = %q, want default override", got)
	}
}

func TestRecordUsage_Cost(t *testing.T) {
	r := NewCostTracker(true)

	// 1M input + 1M output on Sonnet rates: $3 + $15.
	r.RecordUsage(anthropic.ModelClaudeSonnet4_20250514, 1_000_000, 1_000_000)

	stats := r.Stats()
	if stats.TotalCalls != 1 {
		t.Errorf("TotalCalls = %d, want 1", stats.TotalCalls)
	}
	if math.Abs(stats.TotalCost-18.0) > 1e-9 {
		t.Errorf("TotalCost = %f, want 18.0", stats.TotalCost)
	}

	usage := stats.ByModel[string(anthropic.ModelClaudeSonnet4_20250514)]
	if usage.InputTokens != 1_000_000 || usage.OutputTokens != 1_000_000 {
		t.Errorf("usage tokens = %d/%d", usage.InputTokens, usage.OutputTokens)
	}
}

func TestRecordUsage_UnknownModelFallsBackToDefaultRates(t *testing.T) {
	r := NewCostTracker(true)
	r.RecordUsage(anthropic.Model("mystery"), 1_000_000, 0)

	stats := r.Stats()
	if math.Abs(stats.TotalCost-3.0) > 1e-9 {
		t.Errorf("TotalCost = %f, want 3.0 (default input rate)", stats.TotalCost)
	}
}

func TestStats_AggregatesAcrossModels(t *testing.T) {
	r := NewCostTracker(true)
	r.RecordUsage(anthropic.ModelClaude3_5Haiku20241022, 1000, 1000)
	r.RecordUsage(anthropic.ModelClaude3_5Haiku20241022, 1000, 1000)
	r.RecordUsage(anthropic.ModelClaudeOpus4_1_20250805, 500, 500)

	stats := r.Stats()
	if stats.TotalCalls != 3 {
		t.Errorf("TotalCalls = %d, want 3", stats.TotalCalls)
	}
	if len(stats.ByModel) != 2 {
		t.Errorf("len(ByModel) = %d, want 2", len(stats.ByModel))
	}
	haiku := stats.ByModel[string(anthropic.ModelClaude3_5Haiku20241022)]
	if haiku.Calls != 2 {
		t.Errorf("haiku calls = %d, want 2", haiku.Calls)
	}
	if !stats.Enabled {
		t.Error("Stats.Enabled should reflect the constructor flag")
	}
}

func TestRecordUsage_Concurrent(t *testing.T) {
	r := NewCostTracker(true)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.RecordUsage(anthropic.ModelClaudeSonnet4_20250514, 10, 10)
			}
		}()
	}
	wg.Wait()

	if stats := r.Stats(); stats.TotalCalls != 1600 {
		t.Errorf("TotalCalls = %d, want 1600", stats.TotalCalls)
	}
}
