package repo

import (
	"context"
	"errors"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
)

// ErrNotFound is returned when a rule or item does not exist
var ErrNotFound = errors.New("record not found")

// RuleRepository persists pricing rules keyed by item.
type RuleRepository interface {
	// ListActiveRules returns every active rule of the item, in no particular order
	ListActiveRules(ctx context.Context, itemID string) ([]domain.PricingRule, error)

	// ListRules returns active and inactive rules of the item
	ListRules(ctx context.Context, itemID string) ([]domain.PricingRule, error)

	// GetRule retrieves a rule by ID
	GetRule(ctx context.Context, id string) (domain.PricingRule, error)

	// UpsertRule inserts a rule without ID or updates the rule with the given ID
	UpsertRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error)

	// SetRuleActive flips the manual activation flag
	SetRuleActive(ctx context.Context, id string, active bool) (domain.PricingRule, error)

	// DeleteRule removes a rule
	DeleteRule(ctx context.Context, id string) error
}

// SalesStateRepository reads and updates the sales picture of items.
type SalesStateRepository interface {
	// GetSalesState returns the base price, attendance and start time of an item
	GetSalesState(ctx context.Context, itemID string) (domain.SalesState, error)

	// UpdateAttendance sets the current attendee count of an item
	UpdateAttendance(ctx context.Context, itemID string, attendees int) error
}
