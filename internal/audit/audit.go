package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/log"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
)

// Actions recorded for pricing changes
const (
	ActionRuleUpsert       = "upsert"
	ActionRuleActivate     = "activate"
	ActionRuleDeactivate   = "deactivate"
	ActionRuleDelete       = "delete"
	ActionAttendanceUpdate = "update"
)

// Event represents an audit event
type Event struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	OrganizerID string                 `json:"organizer_id"`
	RequestID   string                 `json:"request_id,omitempty"`
	Action      string                 `json:"action"`
	Resource    string                 `json:"resource"`
	ResourceID  string                 `json:"resource_id"`
	Details     map[string]interface{} `json:"details"`
	Timestamp   time.Time              `json:"timestamp"`
	Result      string                 `json:"result"` // success, failure
	Error       string                 `json:"error,omitempty"`
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// ZapAuditLogger implements audit logging using zap
type ZapAuditLogger struct {
	logger *zap.Logger
}

// NewZapAuditLogger creates a new zap-based audit logger
func NewZapAuditLogger(logger *zap.Logger) *ZapAuditLogger {
	return &ZapAuditLogger{logger: logger.Named("audit")}
}

// Log logs an audit event
func (l *ZapAuditLogger) Log(ctx context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("audit_id", event.ID),
		zap.String("audit_type", event.Type),
		zap.String("audit_action", event.Action),
		zap.String("audit_resource", event.Resource),
		zap.String("audit_resource_id", event.ResourceID),
		zap.String("audit_result", event.Result),
		zap.Time("audit_timestamp", event.Timestamp),
	}

	if event.OrganizerID != "" {
		fields = append(fields, zap.String("audit_organizer_id", event.OrganizerID))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("audit_request_id", event.RequestID))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("audit_error", event.Error))
	}
	if len(event.Details) > 0 {
		detailsJSON, _ := json.Marshal(event.Details)
		fields = append(fields, zap.String("audit_details", string(detailsJSON)))
	}

	if event.Result == "success" {
		l.logger.Info("Audit event", fields...)
	} else {
		l.logger.Warn("Audit event", fields...)
	}
	return nil
}

// Manager records who changed which pricing inputs
type Manager struct {
	logger Logger
	now    func() time.Time
}

// NewManager creates a new audit manager
func NewManager(logger Logger) *Manager {
	return &Manager{logger: logger, now: time.Now}
}

// LogRuleChange records an authoring action on a pricing rule. The organizer
// and request ids are taken from ctx.
func (m *Manager) LogRuleChange(ctx context.Context, action string, rule domain.PricingRule, err error) error {
	event := m.newEvent(ctx, "pricing_rule", action, err)
	event.Resource = "pricing_rule"
	event.ResourceID = rule.ID
	event.Details = map[string]interface{}{
		"item_id":    rule.ItemID,
		"rule_type":  string(rule.Kind),
		"threshold":  rule.Threshold,
		"multiplier": rule.Multiplier,
		"active":     rule.Active,
	}
	return m.logger.Log(ctx, event)
}

// LogAttendanceChange records a manual attendance update of an item
func (m *Manager) LogAttendanceChange(ctx context.Context, itemID string, attendees int, err error) error {
	event := m.newEvent(ctx, "sales_state", ActionAttendanceUpdate, err)
	event.Resource = "event"
	event.ResourceID = itemID
	event.Details = map[string]interface{}{
		"current_attendees": attendees,
	}
	return m.logger.Log(ctx, event)
}

func (m *Manager) newEvent(ctx context.Context, eventType, action string, err error) Event {
	event := Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		OrganizerID: log.OrganizerIDFrom(ctx),
		RequestID:   log.RequestIDFrom(ctx),
		Action:      action,
		Timestamp:   m.now().UTC(),
		Result:      "success",
	}
	if err != nil {
		event.Result = "failure"
		event.Error = err.Error()
	}
	return event
}
