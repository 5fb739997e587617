package domain

import (
	"fmt"
	"time"
)

// Day is the fixed day length used for time-to-event arithmetic. Calendar
// effects such as DST are deliberately ignored so evaluation is reproducible.
const Day = 24 * time.Hour

// Default thresholds applied when a rule leaves Threshold at zero.
const (
	DefaultEarlyBirdDays       = 30.0
	DefaultHighDemandOccupancy = 0.7
	DefaultLastChanceOccupancy = 0.9
	DefaultLastWeekDays        = 7.0
	DefaultTimeWindowDays      = 14.0
	DefaultInventoryOccupancy  = 0.5
)

// Signals are the derived quantities every predicate reads.
type Signals struct {
	Occupancy      float64
	DaysUntilEvent float64
}

// Occupancy returns attendees/capacity, or 0 when capacity is not positive.
func Occupancy(attendees, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(attendees) / float64(capacity)
}

// DaysUntil returns the fractional number of fixed-length days between now
// and start. It is negative once the event has started.
func DaysUntil(now, start time.Time) float64 {
	return float64(start.Sub(now)) / float64(Day)
}

// Condition is the decoded, evaluable form of a PricingRule. The set of
// implementations is closed: EarlyBird, HighDemand, LastChance, LastWeek,
// TimeWindow and InventoryLevel.
type Condition interface {
	Kind() RuleKind
	Holds(s Signals) bool
	isCondition()
}

// EarlyBird holds while the event is more than MinDays away.
type EarlyBird struct{ MinDays float64 }

// HighDemand holds while From <= occupancy < Until.
type HighDemand struct{ From, Until float64 }

// LastChance holds once occupancy reaches From.
type LastChance struct{ From float64 }

// LastWeek holds while the event is in the future and at most WithinDays away.
type LastWeek struct{ WithinDays float64 }

// TimeWindow is the generic "time" rule: same predicate shape as LastWeek.
type TimeWindow struct{ WithinDays float64 }

// InventoryLevel is the generic "inventory" rule: occupancy >= From.
type InventoryLevel struct{ From float64 }

func (EarlyBird) Kind() RuleKind      { return RuleKindEarlyBird }
func (HighDemand) Kind() RuleKind     { return RuleKindHighDemand }
func (LastChance) Kind() RuleKind     { return RuleKindLastChance }
func (LastWeek) Kind() RuleKind       { return RuleKindLastWeek }
func (TimeWindow) Kind() RuleKind     { return RuleKindTime }
func (InventoryLevel) Kind() RuleKind { return RuleKindInventory }

func (c EarlyBird) Holds(s Signals) bool { return s.DaysUntilEvent > c.MinDays }
func (c HighDemand) Holds(s Signals) bool {
	return s.Occupancy >= c.From && s.Occupancy < c.Until
}
func (c LastChance) Holds(s Signals) bool { return s.Occupancy >= c.From }
func (c LastWeek) Holds(s Signals) bool {
	return s.DaysUntilEvent > 0 && s.DaysUntilEvent <= c.WithinDays
}
func (c TimeWindow) Holds(s Signals) bool {
	return s.DaysUntilEvent > 0 && s.DaysUntilEvent <= c.WithinDays
}
func (c InventoryLevel) Holds(s Signals) bool { return s.Occupancy >= c.From }

func (EarlyBird) isCondition()      {}
func (HighDemand) isCondition()     {}
func (LastChance) isCondition()     {}
func (LastWeek) isCondition()       {}
func (TimeWindow) isCondition()     {}
func (InventoryLevel) isCondition() {}

// Decode validates a stored rule and maps it onto its Condition variant.
// Unknown kinds, non-positive multipliers and negative thresholds are
// reported as INVALID_RULE errors.
func Decode(rule PricingRule) (Condition, error) {
	if !(rule.Multiplier > 0) {
		return nil, NewInvalidRuleError(rule.ID, fmt.Sprintf("price multiplier must be positive, got %v", rule.Multiplier))
	}
	if rule.Threshold < 0 {
		return nil, NewInvalidRuleError(rule.ID, fmt.Sprintf("threshold must be non-negative, got %v", rule.Threshold))
	}

	threshold := func(def float64) float64 {
		if rule.Threshold == 0 {
			return def
		}
		return rule.Threshold
	}

	switch rule.Kind {
	case RuleKindEarlyBird:
		return EarlyBird{MinDays: threshold(DefaultEarlyBirdDays)}, nil
	case RuleKindHighDemand:
		from := threshold(DefaultHighDemandOccupancy)
		if from >= DefaultLastChanceOccupancy {
			return nil, NewInvalidRuleError(rule.ID, fmt.Sprintf("high_demand threshold must be below %v", DefaultLastChanceOccupancy))
		}
		return HighDemand{From: from, Until: DefaultLastChanceOccupancy}, nil
	case RuleKindLastChance:
		return LastChance{From: threshold(DefaultLastChanceOccupancy)}, nil
	case RuleKindLastWeek:
		return LastWeek{WithinDays: threshold(DefaultLastWeekDays)}, nil
	case RuleKindTime:
		return TimeWindow{WithinDays: threshold(DefaultTimeWindowDays)}, nil
	case RuleKindInventory:
		return InventoryLevel{From: threshold(DefaultInventoryOccupancy)}, nil
	default:
		return nil, NewInvalidRuleError(rule.ID, fmt.Sprintf("unknown rule type %q", rule.Kind))
	}
}
