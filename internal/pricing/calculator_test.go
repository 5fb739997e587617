package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
)

var evalNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func standardRules() []domain.PricingRule {
	return []domain.PricingRule{
		{ID: "r-early", ItemID: "evt-1", Kind: domain.RuleKindEarlyBird, Multiplier: 0.8, Active: true},
		{ID: "r-demand", ItemID: "evt-1", Kind: domain.RuleKindHighDemand, Multiplier: 1.2, Active: true},
		{ID: "r-chance", ItemID: "evt-1", Kind: domain.RuleKindLastChance, Multiplier: 1.5, Active: true},
		{ID: "r-week", ItemID: "evt-1", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Active: true},
	}
}

func inputs(base int64, attendees, capacity int, daysOut float64, rules []domain.PricingRule) Inputs {
	return Inputs{
		BasePrice:        decimal.NewFromInt(base),
		CurrentAttendees: attendees,
		MaxAttendees:     capacity,
		StartsAt:         evalNow.Add(time.Duration(daysOut * float64(domain.Day))),
		Rules:            rules,
		Now:              evalNow,
	}
}

func TestCalculator_Scenarios(t *testing.T) {
	calc := NewCalculator(DefaultRounding())

	tests := []struct {
		name       string
		in         Inputs
		wantPrice  int64
		wantReason string
	}{
		{
			name:       "early bird discount",
			in:         inputs(100, 0, 100, 60, standardRules()),
			wantPrice:  80,
			wantReason: "early_bird",
		},
		{
			name:       "high demand surcharge",
			in:         inputs(100, 75, 100, 10, standardRules()),
			wantPrice:  120,
			wantReason: "high_demand",
		},
		{
			name:       "last chance and last week stack",
			in:         inputs(100, 95, 100, 3, standardRules()),
			wantPrice:  165,
			wantReason: "last_chance, last_week",
		},
		{
			name: "no matching thresholds",
			in: inputs(50, 10, 100, 200, []domain.PricingRule{
				{ID: "r-demand", Kind: domain.RuleKindHighDemand, Multiplier: 1.2, Active: true},
				{ID: "r-chance", Kind: domain.RuleKindLastChance, Multiplier: 1.5, Active: true},
				{ID: "r-week", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Active: true},
			}),
			wantPrice:  50,
			wantReason: domain.BasePriceReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Evaluate(tt.in)
			assert.True(t, got.Price.Equal(decimal.NewFromInt(tt.wantPrice)), "expected %d, got %s", tt.wantPrice, got.Price)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestCalculator_NoRules_RoundsBasePrice(t *testing.T) {
	calc := NewCalculator(DefaultRounding())
	in := inputs(0, 10, 100, 5, nil)
	in.BasePrice = decimal.RequireFromString("49.5")

	got := calc.Evaluate(in)
	assert.Equal(t, "50", got.Price.String())
	assert.Equal(t, domain.BasePriceReason, got.Reason)
	assert.Empty(t, got.Applied)
}

func TestCalculator_MultipliersCommute(t *testing.T) {
	calc := NewCalculator(DefaultRounding())
	rules := standardRules()
	reversed := make([]domain.PricingRule, len(rules))
	for i, r := range rules {
		reversed[len(rules)-1-i] = r
	}

	a := calc.Evaluate(inputs(100, 95, 100, 3, rules))
	b := calc.Evaluate(inputs(100, 95, 100, 3, reversed))
	assert.True(t, a.Price.Equal(b.Price))
	assert.Equal(t, a.Reason, b.Reason)
	assert.Equal(t, a.Applied, b.Applied)
}

func TestCalculator_Idempotent(t *testing.T) {
	calc := NewCalculator(DefaultRounding())
	in := inputs(100, 80, 100, 5, standardRules())

	first := calc.Evaluate(in)
	second := calc.Evaluate(in)
	assert.True(t, first.Price.Equal(second.Price))
	assert.Equal(t, first.Reason, second.Reason)
}

func TestCalculator_OccupancyBoundaries(t *testing.T) {
	calc := NewCalculator(DefaultRounding())

	atHighDemand := calc.Evaluate(inputs(100, 70, 100, 20, standardRules()))
	assert.Equal(t, "high_demand", atHighDemand.Reason)
	assert.Equal(t, "120", atHighDemand.Price.String())

	atLastChance := calc.Evaluate(inputs(100, 90, 100, 20, standardRules()))
	assert.Equal(t, "last_chance", atLastChance.Reason)
	assert.Equal(t, "150", atLastChance.Price.String())

	below := calc.Evaluate(inputs(100, 69, 100, 20, standardRules()))
	assert.Equal(t, domain.BasePriceReason, below.Reason)
}

func TestCalculator_DayBoundaries(t *testing.T) {
	calc := NewCalculator(DefaultRounding())

	// exactly 30 days out is not early bird, exactly 7 days out is last week
	assert.Equal(t, domain.BasePriceReason, calc.Evaluate(inputs(100, 0, 100, 30, standardRules())).Reason)
	assert.Equal(t, "last_week", calc.Evaluate(inputs(100, 0, 100, 7, standardRules())).Reason)

	// once the event has started last_week no longer applies
	started := calc.Evaluate(inputs(100, 0, 100, -0.5, standardRules()))
	assert.Equal(t, domain.BasePriceReason, started.Reason)
	assert.Less(t, started.DaysUntilEvent, 0.0)
}

func TestCalculator_ZeroCapacity(t *testing.T) {
	calc := NewCalculator(DefaultRounding())

	var got Result
	require.NotPanics(t, func() {
		got = calc.Evaluate(inputs(100, 5, 0, 10, standardRules()))
	})
	assert.Equal(t, 0.0, got.Occupancy)
	assert.Equal(t, domain.BasePriceReason, got.Reason)
	assert.Equal(t, "100", got.Price.String())
}

func TestCalculator_InvalidRulesAreSkipped(t *testing.T) {
	calc := NewCalculator(DefaultRounding())
	rules := append(standardRules(),
		domain.PricingRule{ID: "r-zero", Kind: domain.RuleKindHighDemand, Multiplier: 0, Active: true},
		domain.PricingRule{ID: "r-unknown", Kind: domain.RuleKind("flash_sale"), Multiplier: 2, Active: true},
	)

	got := calc.Evaluate(inputs(100, 75, 100, 10, rules))
	assert.Equal(t, "120", got.Price.String())
	require.Len(t, got.Skipped, 2)
	assert.Equal(t, "r-zero", got.Skipped[0].RuleID)
	assert.True(t, domain.HasCode(got.Skipped[1].Err, domain.ErrCodeInvalidRule))
}

func TestCalculator_InactiveRulesIgnored(t *testing.T) {
	calc := NewCalculator(DefaultRounding())
	rules := standardRules()
	rules[1].Active = false

	got := calc.Evaluate(inputs(100, 75, 100, 10, rules))
	assert.Equal(t, "100", got.Price.String())
}

func TestCalculator_DuplicateKindsStackButReasonIsUnique(t *testing.T) {
	calc := NewCalculator(DefaultRounding())
	rules := []domain.PricingRule{
		{ID: "a", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Active: true},
		{ID: "b", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Active: true},
	}

	got := calc.Evaluate(inputs(100, 0, 100, 2, rules))
	assert.Equal(t, "121", got.Price.String())
	assert.Equal(t, "last_week", got.Reason)
	assert.Len(t, got.Applied, 2)
}

func TestCalculator_RoundingGranularity(t *testing.T) {
	rules := []domain.PricingRule{{ID: "a", Kind: domain.RuleKindLastWeek, Multiplier: 1.125, Active: true}}
	in := inputs(0, 0, 100, 2, rules)
	in.BasePrice = decimal.RequireFromString("19.99")

	// 19.99 * 1.125 = 22.48875
	cents := NewCalculator(Rounding{Places: 2, Mode: RoundHalfUp}).Evaluate(in)
	assert.Equal(t, "22.49", cents.Price.String())

	whole := NewCalculator(DefaultRounding()).Evaluate(in)
	assert.Equal(t, "22", whole.Price.String())

	in.BasePrice = decimal.NewFromInt(2)
	in.Rules = []domain.PricingRule{{ID: "a", Kind: domain.RuleKindLastWeek, Multiplier: 1.25, Active: true}}
	assert.Equal(t, "3", NewCalculator(DefaultRounding()).Evaluate(in).Price.String())
	assert.Equal(t, "2", NewCalculator(Rounding{Mode: RoundBankers}).Evaluate(in).Price.String())
}

func TestCalculator_CustomThresholds(t *testing.T) {
	calc := NewCalculator(DefaultRounding())
	rules := []domain.PricingRule{
		{ID: "early-60", Kind: domain.RuleKindEarlyBird, Threshold: 60, Multiplier: 0.5, Active: true},
		{ID: "inv", Kind: domain.RuleKindInventory, Threshold: 0.4, Multiplier: 1.1, Active: true},
	}

	assert.Equal(t, domain.BasePriceReason, calc.Evaluate(inputs(100, 0, 100, 45, rules)).Reason)
	got := calc.Evaluate(inputs(100, 40, 100, 61, rules))
	assert.Equal(t, "early_bird, inventory", got.Reason)
	assert.Equal(t, "55", got.Price.String())
}

func TestParseRoundingMode(t *testing.T) {
	mode, err := ParseRoundingMode("")
	require.NoError(t, err)
	assert.Equal(t, RoundHalfUp, mode)

	mode, err = ParseRoundingMode("Bankers")
	require.NoError(t, err)
	assert.Equal(t, RoundBankers, mode)

	_, err = ParseRoundingMode("ceiling")
	assert.Error(t, err)
}
