package pricing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
)

// RoundingMode selects how the final price is rounded.
type RoundingMode string

const (
	// RoundHalfUp rounds halves away from zero (prices are positive).
	RoundHalfUp RoundingMode = "half_up"
	// RoundBankers rounds halves to the nearest even digit.
	RoundBankers RoundingMode = "bankers"
)

// Rounding is the granularity policy applied to every computed price.
// Places is the number of decimal places kept; 0 rounds to whole units.
type Rounding struct {
	Places int32
	Mode   RoundingMode
}

// DefaultRounding rounds half-up to whole currency units.
func DefaultRounding() Rounding {
	return Rounding{Places: 0, Mode: RoundHalfUp}
}

// ParseRoundingMode validates a configured rounding mode.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch RoundingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoundHalfUp:
		return RoundHalfUp, nil
	case RoundBankers:
		return RoundBankers, nil
	default:
		return "", fmt.Errorf("unsupported rounding mode: %s", s)
	}
}

// Apply rounds d according to the policy.
func (r Rounding) Apply(d decimal.Decimal) decimal.Decimal {
	if r.Mode == RoundBankers {
		return d.RoundBank(r.Places)
	}
	return d.Round(r.Places)
}

// Inputs are everything a single evaluation reads.
type Inputs struct {
	BasePrice        decimal.Decimal
	CurrentAttendees int
	MaxAttendees     int
	StartsAt         time.Time
	Rules            []domain.PricingRule
	Now              time.Time
}

// InputsFromState builds evaluation inputs from an item's sales state.
func InputsFromState(state domain.SalesState, rules []domain.PricingRule, now time.Time) Inputs {
	return Inputs{
		BasePrice:        state.BasePrice,
		CurrentAttendees: state.CurrentAttendees,
		MaxAttendees:     state.MaxAttendees,
		StartsAt:         state.StartsAt,
		Rules:            rules,
		Now:              now,
	}
}

// AppliedRule describes a rule whose condition held during an evaluation.
type AppliedRule struct {
	RuleID      string          `json:"rule_id"`
	Kind        domain.RuleKind `json:"rule_type"`
	Multiplier  float64         `json:"price_multiplier"`
	Description string          `json:"description,omitempty"`
}

// RuleIssue is a rule that was skipped because it could not be decoded.
type RuleIssue struct {
	RuleID string
	Err    error
}

// Result is the outcome of one evaluation.
type Result struct {
	Price          decimal.Decimal
	Reason         string
	Conditions     []string
	Applied        []AppliedRule
	Skipped        []RuleIssue
	Occupancy      float64
	DaysUntilEvent float64
}

// Calculator evaluates pricing rules against an item's sales state.
// Evaluation is a pure function of its inputs.
type Calculator struct {
	rounding Rounding
}

// NewCalculator creates a calculator with the given rounding policy.
func NewCalculator(rounding Rounding) *Calculator {
	if rounding.Mode == "" {
		rounding.Mode = RoundHalfUp
	}
	return &Calculator{rounding: rounding}
}

// Rounding returns the calculator's rounding policy.
func (c *Calculator) Rounding() Rounding {
	return c.rounding
}

// Evaluate computes the current price. Every rule is evaluated
// independently and every active multiplier is applied, so overlapping
// conditions stack. Rules that fail to decode are skipped and reported in
// Result.Skipped; they never abort the computation.
func (c *Calculator) Evaluate(in Inputs) Result {
	signals := domain.Signals{
		Occupancy:      domain.Occupancy(in.CurrentAttendees, in.MaxAttendees),
		DaysUntilEvent: domain.DaysUntil(in.Now, in.StartsAt),
	}

	price := in.BasePrice
	var (
		applied []AppliedRule
		skipped []RuleIssue
		names   = make(map[string]struct{})
	)

	for _, rule := range in.Rules {
		if !rule.Active {
			continue
		}

		cond, err := domain.Decode(rule)
		if err != nil {
			skipped = append(skipped, RuleIssue{RuleID: rule.ID, Err: err})
			continue
		}
		if !cond.Holds(signals) {
			continue
		}

		price = price.Mul(decimal.NewFromFloat(rule.Multiplier))
		names[string(cond.Kind())] = struct{}{}
		applied = append(applied, AppliedRule{
			RuleID:      rule.ID,
			Kind:        cond.Kind(),
			Multiplier:  rule.Multiplier,
			Description: rule.Description,
		})
	}

	conditions := make([]string, 0, len(names))
	for name := range names {
		conditions = append(conditions, name)
	}
	sort.Strings(conditions)
	sort.Slice(applied, func(i, j int) bool {
		if applied[i].Kind != applied[j].Kind {
			return applied[i].Kind < applied[j].Kind
		}
		return applied[i].RuleID < applied[j].RuleID
	})

	return Result{
		Price:          c.rounding.Apply(price),
		Reason:         Reason(conditions),
		Conditions:     conditions,
		Applied:        applied,
		Skipped:        skipped,
		Occupancy:      signals.Occupancy,
		DaysUntilEvent: signals.DaysUntilEvent,
	}
}

// Reason joins active condition names for history display, or returns the
// base price sentinel when none were active.
func Reason(conditions []string) string {
	if len(conditions) == 0 {
		return domain.BasePriceReason
	}
	return strings.Join(conditions, ", ")
}
