package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/metrics"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Store represents the PostgreSQL store implementation
type Store struct {
	db *pgxpool.Pool
}

var (
	_ repo.RuleRepository       = (*Store)(nil)
	_ repo.SalesStateRepository = (*Store)(nil)
)

// PoolConfig tunes the connection pool
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewStore creates a new PostgreSQL store
func NewStore(ctx context.Context, connString string, poolCfg PoolConfig) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if poolCfg.MaxConns > 0 {
		config.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		config.MinConns = poolCfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: pool}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// EnsureSchema creates the events and pricing_rules tables when missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	defer observe("ensure_schema", time.Now())
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func observe(operation string, start time.Time) {
	metrics.RecordDatabaseQuery(operation, time.Since(start))
}

const ruleColumns = `id, event_id, rule_type, threshold_value, price_multiplier, is_active, description, created_at, updated_at`

func scanRule(row pgx.Row) (domain.PricingRule, error) {
	var (
		r    domain.PricingRule
		kind string
	)
	err := row.Scan(&r.ID, &r.ItemID, &kind, &r.Threshold, &r.Multiplier, &r.Active, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.PricingRule{}, err
	}
	// Unknown kinds are passed through; the evaluator reports them as invalid.
	r.Kind = domain.RuleKind(kind)
	return r, nil
}

// GetSalesState returns the pricing inputs of an event
func (s *Store) GetSalesState(ctx context.Context, itemID string) (domain.SalesState, error) {
	defer observe("get_sales_state", time.Now())

	var (
		state domain.SalesState
		base  decimal.Decimal
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, base_price::text, currency, current_attendees, max_attendees, starts_at
		FROM events WHERE id = $1`, itemID,
	).Scan(&state.ItemID, &base, &state.Currency, &state.CurrentAttendees, &state.MaxAttendees, &state.StartsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SalesState{}, repo.ErrNotFound
	}
	if err != nil {
		return domain.SalesState{}, fmt.Errorf("failed to get sales state: %w", err)
	}
	state.BasePrice = base
	return state, nil
}

// UpdateAttendance sets the current attendee count of an event
func (s *Store) UpdateAttendance(ctx context.Context, itemID string, attendees int) error {
	defer observe("update_attendance", time.Now())

	tag, err := s.db.Exec(ctx, `UPDATE events SET current_attendees = $2 WHERE id = $1`, itemID, attendees)
	if err != nil {
		return fmt.Errorf("failed to update attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// UpsertEvent creates or replaces an event's sales state
func (s *Store) UpsertEvent(ctx context.Context, state domain.SalesState) error {
	defer observe("upsert_event", time.Now())

	_, err := s.db.Exec(ctx, `
		INSERT INTO events (id, base_price, currency, current_attendees, max_attendees, starts_at)
		VALUES ($1, $2::numeric, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			base_price = EXCLUDED.base_price,
			currency = EXCLUDED.currency,
			current_attendees = EXCLUDED.current_attendees,
			max_attendees = EXCLUDED.max_attendees,
			starts_at = EXCLUDED.starts_at`,
		state.ItemID, state.BasePrice.String(), state.Currency, state.CurrentAttendees, state.MaxAttendees, state.StartsAt)
	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}
	return nil
}

func (s *Store) ListActiveRules(ctx context.Context, itemID string) ([]domain.PricingRule, error) {
	defer observe("list_active_rules", time.Now())
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM pricing_rules
		WHERE event_id = $1 AND is_active ORDER BY created_at, id`, itemID)
}

func (s *Store) ListRules(ctx context.Context, itemID string) ([]domain.PricingRule, error) {
	defer observe("list_rules", time.Now())
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM pricing_rules
		WHERE event_id = $1 ORDER BY created_at, id`, itemID)
}

func (s *Store) queryRules(ctx context.Context, sql string, args ...any) ([]domain.PricingRule, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]domain.PricingRule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

func (s *Store) GetRule(ctx context.Context, id string) (domain.PricingRule, error) {
	defer observe("get_rule", time.Now())

	r, err := scanRule(s.db.QueryRow(ctx, `SELECT `+ruleColumns+` FROM pricing_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PricingRule{}, repo.ErrNotFound
	}
	if err != nil {
		return domain.PricingRule{}, fmt.Errorf("failed to get rule: %w", err)
	}
	return r, nil
}

// UpsertRule inserts or updates a rule. Inserts without an ID collapse onto
// an existing rule with the same definition.
func (s *Store) UpsertRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error) {
	defer observe("upsert_rule", time.Now())

	var row pgx.Row
	if rule.ID == "" {
		row = s.db.QueryRow(ctx, `
			INSERT INTO pricing_rules (id, event_id, rule_type, threshold_value, price_multiplier, is_active, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT ON CONSTRAINT pricing_rules_definition_key DO UPDATE SET
				is_active = EXCLUDED.is_active,
				updated_at = CASE WHEN pricing_rules.is_active = EXCLUDED.is_active
					THEN pricing_rules.updated_at ELSE now() END
			RETURNING `+ruleColumns,
			uuid.NewString(), rule.ItemID, string(rule.Kind), rule.Threshold, rule.Multiplier, rule.Active, rule.Description)
	} else {
		row = s.db.QueryRow(ctx, `
			INSERT INTO pricing_rules (id, event_id, rule_type, threshold_value, price_multiplier, is_active, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				event_id = EXCLUDED.event_id,
				rule_type = EXCLUDED.rule_type,
				threshold_value = EXCLUDED.threshold_value,
				price_multiplier = EXCLUDED.price_multiplier,
				is_active = EXCLUDED.is_active,
				description = EXCLUDED.description,
				updated_at = now()
			RETURNING `+ruleColumns,
			rule.ID, rule.ItemID, string(rule.Kind), rule.Threshold, rule.Multiplier, rule.Active, rule.Description)
	}

	saved, err := scanRule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.PricingRule{}, domain.NewInvalidInputError("duplicate rule",
				"another rule of this item has the same definition")
		}
		return domain.PricingRule{}, fmt.Errorf("failed to upsert rule: %w", err)
	}
	return saved, nil
}

func (s *Store) SetRuleActive(ctx context.Context, id string, active bool) (domain.PricingRule, error) {
	defer observe("set_rule_active", time.Now())

	r, err := scanRule(s.db.QueryRow(ctx, `
		UPDATE pricing_rules SET
			is_active = $2,
			updated_at = CASE WHEN is_active = $2 THEN updated_at ELSE now() END
		WHERE id = $1
		RETURNING `+ruleColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PricingRule{}, repo.ErrNotFound
	}
	if err != nil {
		return domain.PricingRule{}, fmt.Errorf("failed to set rule active: %w", err)
	}
	return r, nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	defer observe("delete_rule", time.Now())

	tag, err := s.db.Exec(ctx, `DELETE FROM pricing_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
