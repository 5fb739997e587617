package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/audit"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/log"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
)

// ReEvaluator re-prices an item after its rules changed
type ReEvaluator interface {
	Trigger(ctx context.Context, itemID string) error
}

// RuleWarning is a stored rule the evaluator will skip
type RuleWarning struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

// BulkResult summarises a bulk upsert
type BulkResult struct {
	Saved []domain.PricingRule `json:"saved"`
	Items []string             `json:"items"`
}

// RuleAuditor records authoring actions on rules
type RuleAuditor interface {
	LogRuleChange(ctx context.Context, action string, rule domain.PricingRule, err error) error
}

// RuleUseCase provides business logic for rule authoring
type RuleUseCase struct {
	rules       repo.RuleRepository
	reEvaluator ReEvaluator
	auditor     RuleAuditor
}

// NewRuleUseCase creates a new rule use case. reEvaluator may be nil.
func NewRuleUseCase(rules repo.RuleRepository, reEvaluator ReEvaluator) *RuleUseCase {
	return &RuleUseCase{rules: rules, reEvaluator: reEvaluator}
}

// SetReEvaluator wires the re-evaluation hook after construction
func (uc *RuleUseCase) SetReEvaluator(r ReEvaluator) {
	uc.reEvaluator = r
}

// SetAuditor wires an audit trail of stored rule changes
func (uc *RuleUseCase) SetAuditor(a RuleAuditor) {
	uc.auditor = a
}

// Normalize trims and lowercases the authored fields of a rule and checks
// that it can take part in evaluation.
func Normalize(rule domain.PricingRule) (domain.PricingRule, error) {
	rule.ID = strings.TrimSpace(rule.ID)
	rule.ItemID = strings.TrimSpace(rule.ItemID)
	rule.Description = strings.TrimSpace(rule.Description)

	if rule.ItemID == "" {
		return rule, domain.NewInvalidInputError("item id is required", "")
	}

	kind, err := domain.ParseRuleKind(string(rule.Kind))
	if err != nil {
		return rule, domain.NewInvalidInputError("invalid rule type", err.Error())
	}
	rule.Kind = kind

	if math.IsNaN(rule.Multiplier) || math.IsInf(rule.Multiplier, 0) {
		return rule, domain.NewInvalidInputError("price multiplier must be a finite number", "")
	}
	if math.IsNaN(rule.Threshold) || math.IsInf(rule.Threshold, 0) {
		return rule, domain.NewInvalidInputError("threshold must be a finite number", "")
	}

	if _, err := domain.Decode(rule); err != nil {
		details := err.Error()
		if de := domain.GetDomainError(err); de != nil {
			details = de.Details
		}
		return rule, domain.NewInvalidInputError("invalid pricing rule", details)
	}
	return rule, nil
}

// UpsertRule validates and stores a rule, then re-prices its item
func (uc *RuleUseCase) UpsertRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error) {
	rule, err := Normalize(rule)
	if err != nil {
		return domain.PricingRule{}, err
	}

	ctx = log.WithItemID(ctx, rule.ItemID)
	saved, err := uc.rules.UpsertRule(ctx, rule)
	if err != nil {
		if de := domain.GetDomainError(err); de != nil {
			return domain.PricingRule{}, de
		}
		log.Error(ctx, "Failed to upsert pricing rule",
			zap.String("rule_type", string(rule.Kind)),
			zap.Error(err))
		uc.record(ctx, audit.ActionRuleUpsert, rule, err)
		return domain.PricingRule{}, fmt.Errorf("failed to upsert pricing rule: %w", err)
	}
	uc.record(ctx, audit.ActionRuleUpsert, saved, nil)

	log.Info(ctx, "Pricing rule upserted successfully",
		zap.String("rule_id", saved.ID),
		zap.String("rule_type", string(saved.Kind)),
		zap.Float64("multiplier", saved.Multiplier),
		zap.Bool("active", saved.Active))

	uc.reEvaluate(ctx, saved.ItemID)
	return saved, nil
}

// BulkUpsertRules validates every rule before storing any of them
func (uc *RuleUseCase) BulkUpsertRules(ctx context.Context, rules []domain.PricingRule) (BulkResult, error) {
	if len(rules) == 0 {
		return BulkResult{}, domain.NewInvalidInputError("no pricing rules provided", "")
	}

	normalized := make([]domain.PricingRule, 0, len(rules))
	for i, rule := range rules {
		n, err := Normalize(rule)
		if err != nil {
			de := domain.GetDomainError(err)
			return BulkResult{}, domain.NewInvalidInputError(
				fmt.Sprintf("rule at index %d: %s", i, de.Message), de.Details)
		}
		normalized = append(normalized, n)
	}

	result := BulkResult{Saved: make([]domain.PricingRule, 0, len(normalized))}
	seen := make(map[string]struct{})
	for _, rule := range normalized {
		saved, err := uc.rules.UpsertRule(ctx, rule)
		if err != nil {
			log.Error(ctx, "Bulk upsert stopped",
				zap.Int("saved", len(result.Saved)),
				zap.Error(err))
			return result, fmt.Errorf("failed to upsert pricing rule for %s: %w", rule.ItemID, err)
		}
		uc.record(ctx, audit.ActionRuleUpsert, saved, nil)
		result.Saved = append(result.Saved, saved)
		if _, ok := seen[saved.ItemID]; !ok {
			seen[saved.ItemID] = struct{}{}
			result.Items = append(result.Items, saved.ItemID)
		}
	}

	for _, itemID := range result.Items {
		uc.reEvaluate(ctx, itemID)
	}

	log.Info(ctx, "Pricing rules bulk upserted",
		zap.Int("rules", len(result.Saved)),
		zap.Int("items", len(result.Items)))
	return result, nil
}

// ListRules returns the rules of an item, inactive ones included
func (uc *RuleUseCase) ListRules(ctx context.Context, itemID string) ([]domain.PricingRule, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, domain.NewInvalidInputError("item id is required", "")
	}

	rules, err := uc.rules.ListRules(ctx, itemID)
	if err != nil {
		log.Error(ctx, "Failed to list pricing rules", zap.String("item_id", itemID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pricing rules: %w", err)
	}
	return rules, nil
}

// Warnings lists the active rules of an item that evaluation skips
func Warnings(rules []domain.PricingRule) []RuleWarning {
	warnings := make([]RuleWarning, 0)
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if _, err := domain.Decode(r); err != nil {
			reason := err.Error()
			if de := domain.GetDomainError(err); de != nil {
				reason = de.Details
			}
			warnings = append(warnings, RuleWarning{RuleID: r.ID, Reason: reason})
		}
	}
	return warnings
}

// SetRuleActive switches a rule on or off, then re-prices its item
func (uc *RuleUseCase) SetRuleActive(ctx context.Context, id string, active bool) (domain.PricingRule, error) {
	action := audit.ActionRuleDeactivate
	if active {
		action = audit.ActionRuleActivate
	}

	saved, err := uc.rules.SetRuleActive(ctx, id, active)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			uc.record(ctx, action, domain.PricingRule{ID: id, Active: active}, err)
		}
		return domain.PricingRule{}, uc.ruleError(ctx, id, "set active", err)
	}
	uc.record(ctx, action, saved, nil)

	ctx = log.WithItemID(ctx, saved.ItemID)
	log.Info(ctx, "Pricing rule activation changed",
		zap.String("rule_id", id),
		zap.Bool("active", active))

	uc.reEvaluate(ctx, saved.ItemID)
	return saved, nil
}

// DeleteRule removes a rule, then re-prices its item
func (uc *RuleUseCase) DeleteRule(ctx context.Context, id string) error {
	existing, err := uc.rules.GetRule(ctx, id)
	if err != nil {
		return uc.ruleError(ctx, id, "get", err)
	}
	if err := uc.rules.DeleteRule(ctx, id); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			uc.record(ctx, audit.ActionRuleDelete, existing, err)
		}
		return uc.ruleError(ctx, id, "delete", err)
	}
	uc.record(ctx, audit.ActionRuleDelete, existing, nil)

	ctx = log.WithItemID(ctx, existing.ItemID)
	log.Info(ctx, "Pricing rule deleted", zap.String("rule_id", id))

	uc.reEvaluate(ctx, existing.ItemID)
	return nil
}

func (uc *RuleUseCase) ruleError(ctx context.Context, id, op string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return domain.NewNotFoundError("rule", id)
	}
	log.Error(ctx, "Pricing rule operation failed",
		zap.String("op", op),
		zap.String("rule_id", id),
		zap.Error(err))
	return fmt.Errorf("failed to %s pricing rule: %w", op, err)
}

func (uc *RuleUseCase) record(ctx context.Context, action string, rule domain.PricingRule, cause error) {
	if uc.auditor == nil {
		return
	}
	if err := uc.auditor.LogRuleChange(ctx, action, rule, cause); err != nil {
		log.Warn(ctx, "Failed to record audit event", zap.Error(err))
	}
}

func (uc *RuleUseCase) reEvaluate(ctx context.Context, itemID string) {
	if uc.reEvaluator == nil {
		return
	}
	if err := uc.reEvaluator.Trigger(ctx, itemID); err != nil {
		log.Warn(ctx, "Re-evaluation after rule change failed", zap.Error(err))
	}
}
