package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
)

func TestMemoryStore_UpsertAssignsIDAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rule := domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Active: true}
	first, err := store.UpsertRule(ctx, rule)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	again, err := store.UpsertRule(ctx, rule)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "replaying an insert must not duplicate the rule")

	replay, err := store.UpsertRule(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first, replay)

	all, err := store.ListRules(ctx, "evt-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStore_UpdateKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	created, err := store.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindLastChance, Multiplier: 1.5, Active: true})
	require.NoError(t, err)

	created.Multiplier = 1.6
	updated, err := store.UpsertRule(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, 1.6, updated.Multiplier)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestMemoryStore_ListActiveFiltersByItemAndFlag(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, _ := store.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Active: true})
	_, _ = store.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindEarlyBird, Multiplier: 0.8, Active: false})
	_, _ = store.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-2", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Active: true})

	active, err := store.ListActiveRules(ctx, "evt-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	toggled, err := store.SetRuleActive(ctx, a.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	active, _ = store.ListActiveRules(ctx, "evt-1")
	assert.Empty(t, active)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetRule(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, store.DeleteRule(ctx, "missing"), repo.ErrNotFound)
	_, err = store.SetRuleActive(ctx, "missing", true)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = store.GetSalesState(ctx, "evt-x")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, store.UpdateAttendance(ctx, "evt-x", 3), repo.ErrNotFound)
}

func TestMemoryStore_SalesState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutItem(domain.SalesState{ItemID: "evt-1", BasePrice: decimal.NewFromInt(40), MaxAttendees: 200})

	require.NoError(t, store.UpdateAttendance(ctx, "evt-1", 150))
	state, err := store.GetSalesState(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, 150, state.CurrentAttendees)
	assert.Equal(t, "40", state.BasePrice.String())
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r, _ := store.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindLastWeek, Multiplier: 1.1, Active: true})

	require.NoError(t, store.DeleteRule(ctx, r.ID))
	rules, _ := store.ListRules(ctx, "evt-1")
	assert.Empty(t, rules)
}
