package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
)

// MemoryStore is an in-memory implementation of repo.RuleRepository and
// repo.SalesStateRepository.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]domain.PricingRule
	order []string // insertion order, keeps listings stable
	items map[string]domain.SalesState
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules: make(map[string]domain.PricingRule),
		items: make(map[string]domain.SalesState),
		now:   time.Now,
	}
}

var (
	_ repo.RuleRepository       = (*MemoryStore)(nil)
	_ repo.SalesStateRepository = (*MemoryStore)(nil)
)

// PutItem registers or replaces the sales state of an item.
func (s *MemoryStore) PutItem(state domain.SalesState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.ItemID] = state
}

func (s *MemoryStore) GetSalesState(ctx context.Context, itemID string) (domain.SalesState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[itemID]
	if !ok {
		return domain.SalesState{}, repo.ErrNotFound
	}
	return state, nil
}

func (s *MemoryStore) UpdateAttendance(ctx context.Context, itemID string, attendees int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.items[itemID]
	if !ok {
		return repo.ErrNotFound
	}
	state.CurrentAttendees = attendees
	s.items[itemID] = state
	return nil
}

func (s *MemoryStore) ListActiveRules(ctx context.Context, itemID string) ([]domain.PricingRule, error) {
	return s.list(itemID, true), nil
}

func (s *MemoryStore) ListRules(ctx context.Context, itemID string) ([]domain.PricingRule, error) {
	return s.list(itemID, false), nil
}

func (s *MemoryStore) list(itemID string, activeOnly bool) []domain.PricingRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PricingRule, 0)
	for _, id := range s.order {
		r, ok := s.rules[id]
		if !ok || r.ItemID != itemID {
			continue
		}
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *MemoryStore) GetRule(ctx context.Context, id string) (domain.PricingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return domain.PricingRule{}, repo.ErrNotFound
	}
	return r, nil
}

// UpsertRule inserts rules without an ID and updates rules with one. An
// insert whose definition matches an existing rule of the same item reuses
// that rule, so replaying the same request never creates duplicates.
func (s *MemoryStore) UpsertRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rule.ID == "" {
		for _, id := range s.order {
			existing := s.rules[id]
			if sameDefinition(existing, rule) {
				rule.ID = existing.ID
				break
			}
		}
	}

	existing, exists := s.rules[rule.ID]
	switch {
	case exists && existing.SameContent(rule):
		return existing, nil
	case exists:
		rule.CreatedAt = existing.CreatedAt
		rule.UpdatedAt = now
	case rule.ID == "":
		rule.ID = uuid.NewString()
		fallthrough
	default:
		rule.CreatedAt = now
		rule.UpdatedAt = now
		s.order = append(s.order, rule.ID)
	}

	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *MemoryStore) SetRuleActive(ctx context.Context, id string, active bool) (domain.PricingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return domain.PricingRule{}, repo.ErrNotFound
	}
	if r.Active != active {
		r.Active = active
		r.UpdatedAt = s.now()
		s.rules[id] = r
	}
	return r, nil
}

func (s *MemoryStore) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return repo.ErrNotFound
	}
	for i, orderID := range s.order {
		if orderID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	delete(s.rules, id)
	return nil
}

// sameDefinition compares the natural key used to deduplicate inserts.
func sameDefinition(a, b domain.PricingRule) bool {
	return a.ItemID == b.ItemID &&
		a.Kind == b.Kind &&
		a.Threshold == b.Threshold &&
		a.Multiplier == b.Multiplier &&
		a.Description == b.Description
}
