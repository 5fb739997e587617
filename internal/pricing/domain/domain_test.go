package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(price int64) PriceSnapshot {
	return PriceSnapshot{Price: decimal.NewFromInt(price), Timestamp: time.Unix(price, 0), Reason: BasePriceReason}
}

func TestHistory_CapsAtLimit(t *testing.T) {
	h := NewHistory(DefaultHistorySize)
	for i := int64(1); i <= 11; i++ {
		require.True(t, h.Append(snapshot(i)))
	}

	entries := h.Entries()
	require.Len(t, entries, 10)
	assert.Equal(t, "2", entries[0].Price.String(), "oldest entry should be evicted first")
	assert.Equal(t, "11", entries[9].Price.String())
}

func TestHistory_SkipsRepeatedPrice(t *testing.T) {
	h := NewHistory(3)
	assert.True(t, h.Append(snapshot(100)))
	assert.False(t, h.Append(snapshot(100)))
	assert.True(t, h.Append(snapshot(120)))
	assert.True(t, h.Append(snapshot(100)))
	assert.Equal(t, 3, h.Len())
}

func TestHistory_DefaultLimit(t *testing.T) {
	h := NewHistory(0)
	for i := int64(1); i <= DefaultHistorySize+1; i++ {
		h.Append(snapshot(i))
	}
	assert.Equal(t, DefaultHistorySize, h.Len())
	_, ok := NewHistory(1).Last()
	assert.False(t, ok)
}

func TestHistory_EntriesIsACopy(t *testing.T) {
	h := NewHistory(2)
	h.Append(snapshot(1))
	entries := h.Entries()
	entries[0].Reason = "mutated"

	last, _ := h.Last()
	assert.Equal(t, BasePriceReason, last.Reason)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		rule    PricingRule
		want    Condition
		wantErr bool
	}{
		{name: "early bird default", rule: PricingRule{Kind: RuleKindEarlyBird, Multiplier: 0.8}, want: EarlyBird{MinDays: 30}},
		{name: "high demand default", rule: PricingRule{Kind: RuleKindHighDemand, Multiplier: 1.2}, want: HighDemand{From: 0.7, Until: 0.9}},
		{name: "high demand custom", rule: PricingRule{Kind: RuleKindHighDemand, Threshold: 0.6, Multiplier: 1.2}, want: HighDemand{From: 0.6, Until: 0.9}},
		{name: "last chance", rule: PricingRule{Kind: RuleKindLastChance, Multiplier: 1.5}, want: LastChance{From: 0.9}},
		{name: "last week", rule: PricingRule{Kind: RuleKindLastWeek, Multiplier: 1.1}, want: LastWeek{WithinDays: 7}},
		{name: "generic time", rule: PricingRule{Kind: RuleKindTime, Threshold: 3, Multiplier: 1.3}, want: TimeWindow{WithinDays: 3}},
		{name: "generic inventory", rule: PricingRule{Kind: RuleKindInventory, Multiplier: 1.05}, want: InventoryLevel{From: 0.5}},
		{name: "zero multiplier", rule: PricingRule{Kind: RuleKindLastWeek}, wantErr: true},
		{name: "negative multiplier", rule: PricingRule{Kind: RuleKindLastWeek, Multiplier: -1}, wantErr: true},
		{name: "negative threshold", rule: PricingRule{Kind: RuleKindLastWeek, Threshold: -2, Multiplier: 1}, wantErr: true},
		{name: "high demand above last chance", rule: PricingRule{Kind: RuleKindHighDemand, Threshold: 0.95, Multiplier: 1}, wantErr: true},
		{name: "unknown kind", rule: PricingRule{Kind: "flash_sale", Multiplier: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.rule)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, HasCode(err, ErrCodeInvalidRule))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rule.Kind, got.Kind())
		})
	}
}

func TestRuleKind(t *testing.T) {
	assert.Equal(t, CategoryTime, RuleKindEarlyBird.Category())
	assert.Equal(t, CategoryInventory, RuleKindLastChance.Category())
	assert.False(t, RuleKind("bogus").IsValid())

	kind, err := ParseRuleKind("  High_Demand ")
	require.NoError(t, err)
	assert.Equal(t, RuleKindHighDemand, kind)

	_, err = ParseRuleKind("surge")
	assert.True(t, HasCode(err, ErrCodeInvalidInput))
	details := GetDomainError(err).Details
	assert.Contains(t, details, `"surge"`)
	for _, k := range KnownRuleKinds() {
		assert.Contains(t, details, string(k))
	}
}

func TestSignals(t *testing.T) {
	assert.Equal(t, 0.0, Occupancy(10, 0))
	assert.Equal(t, 0.5, Occupancy(50, 100))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.5, DaysUntil(now, now.Add(36*time.Hour)))
	assert.Equal(t, -1.0, DaysUntil(now, now.Add(-Day)))
}

func TestRuleFetchErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("refresh: %w", NewRuleFetchError("evt-1", cause))

	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, ErrCodeRuleFetchFailed))
	assert.Contains(t, err.Error(), "evt-1")
	assert.Nil(t, GetDomainError(cause))
}
