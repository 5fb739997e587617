package circuitbreaker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
)

// Store is the backend guarded by GuardedStore
type Store interface {
	repo.RuleRepository
	repo.SalesStateRepository
}

// GuardedStore fails fast with ErrCircuitOpen once the backing store keeps
// failing, so refreshes of every watched item stop queueing on a dead
// database. Missing rows and cancelled callers are not backend failures.
type GuardedStore struct {
	next    Store
	breaker *CircuitBreaker
}

var (
	_ repo.RuleRepository       = (*GuardedStore)(nil)
	_ repo.SalesStateRepository = (*GuardedStore)(nil)
)

// NewGuardedStore wraps next with a breaker named "store"
func NewGuardedStore(next Store, config Config, logger *zap.Logger, opts ...Option) *GuardedStore {
	opts = append([]Option{WithFailureFilter(IsBackendFailure)}, opts...)
	return &GuardedStore{
		next:    next,
		breaker: New("store", config, logger, opts...),
	}
}

// Breaker exposes the underlying circuit breaker
func (g *GuardedStore) Breaker() *CircuitBreaker {
	return g.breaker
}

// IsBackendFailure reports whether err says something about the backend's health
func IsBackendFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	return domain.GetDomainError(err) == nil
}

func (g *GuardedStore) ListActiveRules(ctx context.Context, itemID string) (rules []domain.PricingRule, err error) {
	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		rules, err = g.next.ListActiveRules(ctx, itemID)
		return err
	})
	return rules, err
}

func (g *GuardedStore) ListRules(ctx context.Context, itemID string) (rules []domain.PricingRule, err error) {
	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		rules, err = g.next.ListRules(ctx, itemID)
		return err
	})
	return rules, err
}

func (g *GuardedStore) GetRule(ctx context.Context, id string) (rule domain.PricingRule, err error) {
	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		rule, err = g.next.GetRule(ctx, id)
		return err
	})
	return rule, err
}

func (g *GuardedStore) UpsertRule(ctx context.Context, in domain.PricingRule) (rule domain.PricingRule, err error) {
	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		rule, err = g.next.UpsertRule(ctx, in)
		return err
	})
	return rule, err
}

func (g *GuardedStore) SetRuleActive(ctx context.Context, id string, active bool) (rule domain.PricingRule, err error) {
	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		rule, err = g.next.SetRuleActive(ctx, id, active)
		return err
	})
	return rule, err
}

func (g *GuardedStore) DeleteRule(ctx context.Context, id string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.DeleteRule(ctx, id)
	})
}

func (g *GuardedStore) GetSalesState(ctx context.Context, itemID string) (state domain.SalesState, err error) {
	err = g.breaker.Execute(ctx, func(ctx context.Context) error {
		state, err = g.next.GetSalesState(ctx, itemID)
		return err
	})
	return state, err
}

func (g *GuardedStore) UpdateAttendance(ctx context.Context, itemID string, attendees int) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.next.UpdateAttendance(ctx, itemID, attendees)
	})
}
