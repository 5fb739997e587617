package domain

import (
	"fmt"
	"strings"
	"time"
)

// RuleKind identifies the condition a pricing rule is attached to.
type RuleKind string

const (
	RuleKindEarlyBird  RuleKind = "early_bird"
	RuleKindHighDemand RuleKind = "high_demand"
	RuleKindLastChance RuleKind = "last_chance"
	RuleKindLastWeek   RuleKind = "last_week"
	// RuleKindTime and RuleKindInventory are the generic categories; their
	// threshold is the only parameter of the predicate.
	RuleKindTime      RuleKind = "time"
	RuleKindInventory RuleKind = "inventory"
)

// RuleCategory groups rule kinds by the signal they read.
type RuleCategory string

const (
	CategoryTime      RuleCategory = "time"
	CategoryInventory RuleCategory = "inventory"
)

// Category returns the signal family of the kind, or "" for unknown kinds.
func (k RuleKind) Category() RuleCategory {
	switch k {
	case RuleKindEarlyBird, RuleKindLastWeek, RuleKindTime:
		return CategoryTime
	case RuleKindHighDemand, RuleKindLastChance, RuleKindInventory:
		return CategoryInventory
	default:
		return ""
	}
}

// IsValid reports whether k is one of the known rule kinds.
func (k RuleKind) IsValid() bool {
	return k.Category() != ""
}

// ParseRuleKind normalises and validates a kind read from an external source.
func ParseRuleKind(s string) (RuleKind, error) {
	kind := RuleKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.IsValid() {
		known := make([]string, 0, len(KnownRuleKinds()))
		for _, k := range KnownRuleKinds() {
			known = append(known, string(k))
		}
		return "", NewInvalidInputError("unknown rule kind",
			fmt.Sprintf("%q is not one of %s", s, strings.Join(known, ", ")))
	}
	return kind, nil
}

// KnownRuleKinds lists every kind accepted by Decode.
func KnownRuleKinds() []RuleKind {
	return []RuleKind{
		RuleKindEarlyBird,
		RuleKindHighDemand,
		RuleKindLastChance,
		RuleKindLastWeek,
		RuleKindTime,
		RuleKindInventory,
	}
}

// PricingRule is a stored, organizer-authored pricing rule scoped to one item.
type PricingRule struct {
	ID     string   `json:"id" db:"id"`
	ItemID string   `json:"item_id" db:"item_id"`
	Kind   RuleKind `json:"rule_type" db:"rule_type"`
	// Threshold parameterises the predicate; zero selects the kind's default.
	Threshold   float64   `json:"threshold_value" db:"threshold_value"`
	Multiplier  float64   `json:"price_multiplier" db:"price_multiplier"`
	Active      bool      `json:"is_active" db:"is_active"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// SameContent reports whether two rules carry the same authored fields,
// ignoring timestamps.
func (r PricingRule) SameContent(other PricingRule) bool {
	return r.ID == other.ID &&
		r.ItemID == other.ItemID &&
		r.Kind == other.Kind &&
		r.Threshold == other.Threshold &&
		r.Multiplier == other.Multiplier &&
		r.Active == other.Active &&
		r.Description == other.Description
}
