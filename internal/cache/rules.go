package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/log"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/metrics"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
)

// DefaultRuleTTL bounds how stale a cached rule list can get when an
// invalidation is lost.
const DefaultRuleTTL = time.Minute

// CachedRuleRepository is a cache-aside decorator over a RuleRepository.
// Only active-rule lists are cached; every write invalidates the item.
// Redis failures never fail a call, they fall through to the backing store.
type CachedRuleRepository struct {
	next  repo.RuleRepository
	cache *Cache
	ttl   time.Duration
}

var _ repo.RuleRepository = (*CachedRuleRepository)(nil)

// NewCachedRuleRepository wraps next with a Redis cache
func NewCachedRuleRepository(next repo.RuleRepository, cache *Cache, ttl time.Duration) *CachedRuleRepository {
	if ttl <= 0 {
		ttl = DefaultRuleTTL
	}
	return &CachedRuleRepository{next: next, cache: cache, ttl: ttl}
}

// ActiveRulesKey is the cache key of an item's active rule list
func ActiveRulesKey(itemID string) string {
	return fmt.Sprintf("pricing:rules:active:%s", itemID)
}

func (r *CachedRuleRepository) ListActiveRules(ctx context.Context, itemID string) ([]domain.PricingRule, error) {
	key := ActiveRulesKey(itemID)

	var cached []domain.PricingRule
	err := r.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		metrics.RecordRuleCacheHit()
		return cached, nil
	case errors.Is(err, ErrCacheMiss):
		metrics.RecordRuleCacheMiss()
	default:
		metrics.RecordRuleCacheMiss()
		log.Warn(ctx, "Rule cache read failed, falling back to store",
			zap.String("item_id", itemID), zap.Error(err))
	}

	rules, err := r.next.ListActiveRules(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, rules, r.ttl); err != nil {
		log.Warn(ctx, "Rule cache write failed",
			zap.String("item_id", itemID), zap.Error(err))
	}
	return rules, nil
}

func (r *CachedRuleRepository) ListRules(ctx context.Context, itemID string) ([]domain.PricingRule, error) {
	return r.next.ListRules(ctx, itemID)
}

func (r *CachedRuleRepository) GetRule(ctx context.Context, id string) (domain.PricingRule, error) {
	return r.next.GetRule(ctx, id)
}

func (r *CachedRuleRepository) UpsertRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error) {
	var previousItem string
	if rule.ID != "" {
		if existing, err := r.next.GetRule(ctx, rule.ID); err == nil {
			previousItem = existing.ItemID
		}
	}

	saved, err := r.next.UpsertRule(ctx, rule)
	if err != nil {
		return domain.PricingRule{}, err
	}

	r.invalidate(ctx, saved.ItemID, previousItem)
	return saved, nil
}

func (r *CachedRuleRepository) SetRuleActive(ctx context.Context, id string, active bool) (domain.PricingRule, error) {
	saved, err := r.next.SetRuleActive(ctx, id, active)
	if err != nil {
		return domain.PricingRule{}, err
	}
	r.invalidate(ctx, saved.ItemID)
	return saved, nil
}

func (r *CachedRuleRepository) DeleteRule(ctx context.Context, id string) error {
	existing, err := r.next.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if err := r.next.DeleteRule(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, existing.ItemID)
	return nil
}

// Invalidate drops the cached active-rule list of an item
func (r *CachedRuleRepository) Invalidate(ctx context.Context, itemID string) {
	r.invalidate(ctx, itemID)
}

func (r *CachedRuleRepository) invalidate(ctx context.Context, itemIDs ...string) {
	keys := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		if id != "" {
			keys = append(keys, ActiveRulesKey(id))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		log.Warn(ctx, "Rule cache invalidation failed",
			zap.Strings("keys", keys), zap.Error(err))
	}
}
