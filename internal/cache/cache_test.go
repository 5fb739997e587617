package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewCache(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

// countingRepo records how often active rules are read from the backing store
type countingRepo struct {
	repo.RuleRepository
	activeReads int
}

func (c *countingRepo) ListActiveRules(ctx context.Context, itemID string) ([]domain.PricingRule, error) {
	c.activeReads++
	return c.RuleRepository.ListActiveRules(ctx, itemID)
}

func TestCache_SetGetDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))

	var got map[string]int
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["a"])

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestCache_Expiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	var got string
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestCachedRuleRepository_ServesFromCache(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	store := pricing.NewMemoryStore()
	_, err := store.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindEarlyBird, Multiplier: 0.8, Active: true})
	require.NoError(t, err)

	inner := &countingRepo{RuleRepository: store}
	cached := NewCachedRuleRepository(inner, c, time.Minute)

	first, err := cached.ListActiveRules(ctx, "evt-1")
	require.NoError(t, err)
	second, err := cached.ListActiveRules(ctx, "evt-1")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.activeReads)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, domain.RuleKindEarlyBird, second[0].Kind)
}

func TestCachedRuleRepository_WritesInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	store := pricing.NewMemoryStore()
	inner := &countingRepo{RuleRepository: store}
	cached := NewCachedRuleRepository(inner, c, time.Minute)

	rules, err := cached.ListActiveRules(ctx, "evt-1")
	require.NoError(t, err)
	assert.Empty(t, rules)

	saved, err := cached.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindHighDemand, Multiplier: 1.2, Active: true})
	require.NoError(t, err)

	rules, err = cached.ListActiveRules(ctx, "evt-1")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.Equal(t, 2, inner.activeReads)

	_, err = cached.SetRuleActive(ctx, saved.ID, false)
	require.NoError(t, err)
	rules, err = cached.ListActiveRules(ctx, "evt-1")
	require.NoError(t, err)
	assert.Empty(t, rules)
	assert.Equal(t, 3, inner.activeReads)

	require.NoError(t, cached.DeleteRule(ctx, saved.ID))
	_, err = cached.GetRule(ctx, saved.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestCachedRuleRepository_FallsThroughWhenRedisDown(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	store := pricing.NewMemoryStore()
	_, err := store.UpsertRule(ctx, domain.PricingRule{ItemID: "evt-1", Kind: domain.RuleKindLastChance, Multiplier: 1.5, Active: true})
	require.NoError(t, err)

	cached := NewCachedRuleRepository(store, c, time.Minute)
	mr.Close()

	rules, err := cached.ListActiveRules(ctx, "evt-1")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestHistoryMirror_TrimsToLimit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	mirror := NewHistoryMirror(c, 3)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		err := mirror.Append(ctx, "evt-1", domain.PriceSnapshot{
			Price:     decimal.NewFromInt(int64(i * 10)),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Reason:    domain.BasePriceReason,
		})
		require.NoError(t, err)
	}

	got, err := mirror.Load(ctx, "evt-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(30)))
	assert.True(t, got[2].Price.Equal(decimal.NewFromInt(50)))

	require.NoError(t, mirror.Clear(ctx, "evt-1"))
	got, err = mirror.Load(ctx, "evt-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
