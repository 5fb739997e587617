package usecase

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
)

type recordingTrigger struct {
	mu    sync.Mutex
	items []string
}

func (r *recordingTrigger) Trigger(ctx context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, itemID)
	return nil
}

func TestNormalize(t *testing.T) {
	rule, err := Normalize(domain.PricingRule{ItemID: " evt-1 ", Kind: " High_Demand ", Multiplier: 1.2, Description: " surge "})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", rule.ItemID)
	assert.Equal(t, domain.RuleKindHighDemand, rule.Kind)
	assert.Equal(t, "surge", rule.Description)

	tests := []struct {
		name string
		rule domain.PricingRule
	}{
		{"missing item", domain.PricingRule{Kind: domain.RuleKindEarlyBird, Multiplier: 0.8}},
		{"unknown kind", domain.PricingRule{ItemID: "evt-1", Kind: "flash_sale", Multiplier: 0.8}},
		{"zero multiplier", domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindEarlyBird}},
		{"negative multiplier", domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindEarlyBird, Multiplier: -1}},
		{"infinite multiplier", domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindEarlyBird, Multiplier: math.Inf(1)}},
		{"negative threshold", domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Threshold: -2}},
		{"high demand overlapping last chance", domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindHighDemand, Multiplier: 1.2, Threshold: 0.95}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.rule)
			assert.True(t, domain.HasCode(err, domain.ErrCodeInvalidInput), "got %v", err)
		})
	}
}

func TestRuleUseCase_UpsertTriggersReEvaluation(t *testing.T) {
	ctx := context.Background()
	store := pricing.NewMemoryStore()
	trigger := &recordingTrigger{}
	uc := NewRuleUseCase(store, trigger)

	saved, err := uc.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: "EARLY_BIRD", Multiplier: 0.8, Active: true})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, domain.RuleKindEarlyBird, saved.Kind)
	assert.Equal(t, []string{"evt-1"}, trigger.items)

	_, err = uc.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: "bogus", Multiplier: 0.8})
	require.Error(t, err)
	assert.Len(t, trigger.items, 1, "invalid rules do not re-price")
}

func TestRuleUseCase_BulkValidatesFirst(t *testing.T) {
	ctx := context.Background()
	store := pricing.NewMemoryStore()
	uc := NewRuleUseCase(store, nil)

	_, err := uc.BulkUpsertRules(ctx, []domain.PricingRule{
		{ItemID: "evt-1", Kind: domain.RuleKindEarlyBird, Multiplier: 0.8, Active: true},
		{ItemID: "evt-1", Kind: domain.RuleKindLastWeek, Multiplier: 0, Active: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 1")

	rules, err := store.ListRules(ctx, "evt-1")
	require.NoError(t, err)
	assert.Empty(t, rules)

	_, err = uc.BulkUpsertRules(ctx, nil)
	assert.True(t, domain.HasCode(err, domain.ErrCodeInvalidInput))
}

func TestRuleUseCase_BulkTriggersEachItemOnce(t *testing.T) {
	ctx := context.Background()
	trigger := &recordingTrigger{}
	uc := NewRuleUseCase(pricing.NewMemoryStore(), trigger)

	res, err := uc.BulkUpsertRules(ctx, []domain.PricingRule{
		{ItemID: "evt-1", Kind: domain.RuleKindEarlyBird, Multiplier: 0.8, Active: true},
		{ItemID: "evt-1", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Active: true},
		{ItemID: "evt-2", Kind: domain.RuleKindHighDemand, Multiplier: 1.2, Active: true},
	})
	require.NoError(t, err)
	assert.Len(t, res.Saved, 3)
	assert.Equal(t, []string{"evt-1", "evt-2"}, res.Items)
	assert.Equal(t, []string{"evt-1", "evt-2"}, trigger.items)
}

func TestRuleUseCase_ActivationAndDelete(t *testing.T) {
	ctx := context.Background()
	trigger := &recordingTrigger{}
	uc := NewRuleUseCase(pricing.NewMemoryStore(), trigger)

	saved, err := uc.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindLastChance, Multiplier: 1.5, Active: true})
	require.NoError(t, err)

	off, err := uc.SetRuleActive(ctx, saved.ID, false)
	require.NoError(t, err)
	assert.False(t, off.Active)

	_, err = uc.SetRuleActive(ctx, "missing", true)
	assert.True(t, domain.HasCode(err, domain.ErrCodeNotFound))

	require.NoError(t, uc.DeleteRule(ctx, saved.ID))
	err = uc.DeleteRule(ctx, saved.ID)
	assert.True(t, domain.HasCode(err, domain.ErrCodeNotFound))

	assert.Equal(t, []string{"evt-1", "evt-1", "evt-1"}, trigger.items)

	rules, err := uc.ListRules(ctx, "evt-1")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestWarnings(t *testing.T) {
	warnings := Warnings([]domain.PricingRule{
		{ID: "ok", Kind: domain.RuleKindEarlyBird, Multiplier: 0.8, Active: true},
		{ID: "bad-kind", Kind: "flash_sale", Multiplier: 0.8, Active: true},
		{ID: "bad-mult", Kind: domain.RuleKindLastWeek, Multiplier: 0, Active: true},
		{ID: "inactive", Kind: "flash_sale", Multiplier: 0.8},
	})
	require.Len(t, warnings, 2)
	assert.Equal(t, "bad-kind", warnings[0].RuleID)
	assert.Equal(t, "bad-mult", warnings[1].RuleID)
	assert.Contains(t, warnings[1].Reason, "multiplier")
}

func TestAttendanceUseCase(t *testing.T) {
	ctx := context.Background()
	store := pricing.NewMemoryStore()
	store.PutItem(domain.SalesState{ItemID: "evt-1", BasePrice: decimal.NewFromInt(100), MaxAttendees: 100, StartsAt: t0})

	var notified []string
	uc := NewAttendanceUseCase(store, NotifyFunc(func(ctx context.Context, itemID string) error {
		notified = append(notified, itemID)
		return nil
	}))

	state, err := uc.UpdateAttendance(ctx, "evt-1", 75)
	require.NoError(t, err)
	assert.Equal(t, 75, state.CurrentAttendees)
	assert.Equal(t, []string{"evt-1"}, notified)

	_, err = uc.UpdateAttendance(ctx, "evt-1", 101)
	assert.True(t, domain.HasCode(err, domain.ErrCodeInvalidInput))

	_, err = uc.UpdateAttendance(ctx, "evt-1", -1)
	assert.True(t, domain.HasCode(err, domain.ErrCodeInvalidInput))

	_, err = uc.UpdateAttendance(ctx, "ghost", 1)
	assert.True(t, domain.HasCode(err, domain.ErrCodeNotFound))

	assert.Len(t, notified, 1)
}

type auditTrail struct {
	actions   []string
	attendees []int
}

func (a *auditTrail) LogRuleChange(ctx context.Context, action string, rule domain.PricingRule, err error) error {
	a.actions = append(a.actions, action+":"+rule.ID)
	return nil
}

func (a *auditTrail) LogAttendanceChange(ctx context.Context, itemID string, attendees int, err error) error {
	a.attendees = append(a.attendees, attendees)
	return nil
}

func TestRuleUseCase_AuditsStoredChanges(t *testing.T) {
	ctx := context.Background()
	trail := &auditTrail{}
	uc := NewRuleUseCase(pricing.NewMemoryStore(), nil)
	uc.SetAuditor(trail)

	_, err := uc.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: "flash_sale", Multiplier: 2})
	require.Error(t, err)
	assert.Empty(t, trail.actions, "rejected input is not audited")

	saved, err := uc.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Active: true})
	require.NoError(t, err)
	_, err = uc.SetRuleActive(ctx, saved.ID, false)
	require.NoError(t, err)
	require.NoError(t, uc.DeleteRule(ctx, saved.ID))

	assert.Equal(t, []string{
		"upsert:" + saved.ID,
		"deactivate:" + saved.ID,
		"delete:" + saved.ID,
	}, trail.actions)
}

func TestAttendanceUseCase_Audits(t *testing.T) {
	store := pricing.NewMemoryStore()
	store.PutItem(domain.SalesState{ItemID: "evt-1", BasePrice: decimal.NewFromInt(10), MaxAttendees: 10})
	trail := &auditTrail{}
	uc := NewAttendanceUseCase(store, nil)
	uc.SetAuditor(trail)

	_, err := uc.UpdateAttendance(context.Background(), "evt-1", 4)
	require.NoError(t, err)
	_, err = uc.UpdateAttendance(context.Background(), "evt-1", 11)
	require.Error(t, err)

	assert.Equal(t, []int{4}, trail.attendees)
}
