package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/usecase"
)

// RowWarning reports a CSV row that was skipped
type RowWarning struct {
	Line   int
	Reason string
}

func (w RowWarning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Reason)
}

// readRules parses item_id,kind,threshold,multiplier,active,description rows.
// The first row is a header. Rows that do not form a valid rule are skipped
// and reported.
func readRules(r io.Reader) ([]domain.PricingRule, []RowWarning, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rules []domain.PricingRule
	var warnings []RowWarning
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		rule, err := parseRule(record)
		if err != nil {
			warnings = append(warnings, RowWarning{Line: line, Reason: err.Error()})
			continue
		}
		rules = append(rules, rule)
	}

	return rules, warnings, nil
}

func parseRule(record []string) (domain.PricingRule, error) {
	if len(record) < 4 {
		return domain.PricingRule{}, fmt.Errorf("expected at least 4 columns, got %d", len(record))
	}

	threshold, err := parseFloat(record[2])
	if err != nil {
		return domain.PricingRule{}, fmt.Errorf("invalid threshold %q", record[2])
	}
	multiplier, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil {
		return domain.PricingRule{}, fmt.Errorf("invalid multiplier %q", record[3])
	}

	active := true
	if len(record) > 4 && strings.TrimSpace(record[4]) != "" {
		active, err = strconv.ParseBool(strings.TrimSpace(record[4]))
		if err != nil {
			return domain.PricingRule{}, fmt.Errorf("invalid active flag %q", record[4])
		}
	}

	var description string
	if len(record) > 5 {
		description = record[5]
	}

	rule, err := usecase.Normalize(domain.PricingRule{
		ItemID:      record[0],
		Kind:        domain.RuleKind(record[1]),
		Threshold:   threshold,
		Multiplier:  multiplier,
		Active:      active,
		Description: description,
	})
	if err != nil {
		if de := domain.GetDomainError(err); de != nil && de.Details != "" {
			return domain.PricingRule{}, fmt.Errorf("%s: %s", de.Message, de.Details)
		}
		return domain.PricingRule{}, err
	}
	return rule, nil
}

// An empty threshold selects the kind's default
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// readEvents parses id,base_price,currency,current_attendees,max_attendees,starts_at
// rows, starts_at in RFC 3339. The first row is a header.
func readEvents(r io.Reader) ([]domain.SalesState, []RowWarning, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var states []domain.SalesState
	var warnings []RowWarning
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		state, err := parseEvent(record)
		if err != nil {
			warnings = append(warnings, RowWarning{Line: line, Reason: err.Error()})
			continue
		}
		states = append(states, state)
	}

	return states, warnings, nil
}

func parseEvent(record []string) (domain.SalesState, error) {
	if len(record) < 6 {
		return domain.SalesState{}, fmt.Errorf("expected 6 columns, got %d", len(record))
	}

	id := strings.TrimSpace(record[0])
	if id == "" {
		return domain.SalesState{}, fmt.Errorf("event id is required")
	}
	base, err := decimal.NewFromString(strings.TrimSpace(record[1]))
	if err != nil || base.IsNegative() {
		return domain.SalesState{}, fmt.Errorf("invalid base price %q", record[1])
	}
	current, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil || current < 0 {
		return domain.SalesState{}, fmt.Errorf("invalid current attendees %q", record[3])
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(record[4]))
	if err != nil || capacity < 0 {
		return domain.SalesState{}, fmt.Errorf("invalid max attendees %q", record[4])
	}
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(record[5]))
	if err != nil {
		return domain.SalesState{}, fmt.Errorf("invalid starts_at %q", record[5])
	}

	return domain.SalesState{
		ItemID:           id,
		BasePrice:        base,
		Currency:         strings.ToUpper(strings.TrimSpace(record[2])),
		CurrentAttendees: current,
		MaxAttendees:     capacity,
		StartsAt:         startsAt.UTC(),
	}, nil
}
