package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/log"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
)

// ChangeNotifier announces that an item's sales state changed
type ChangeNotifier interface {
	Notify(ctx context.Context, itemID string) error
}

// NotifyFunc adapts a function to ChangeNotifier
type NotifyFunc func(ctx context.Context, itemID string) error

func (f NotifyFunc) Notify(ctx context.Context, itemID string) error { return f(ctx, itemID) }

// AttendanceAuditor records manual attendance updates
type AttendanceAuditor interface {
	LogAttendanceChange(ctx context.Context, itemID string, attendees int, err error) error
}

// AttendanceUseCase records ticket sales and announces them
type AttendanceUseCase struct {
	sales    repo.SalesStateRepository
	notifier ChangeNotifier
	auditor  AttendanceAuditor
}

func NewAttendanceUseCase(sales repo.SalesStateRepository, notifier ChangeNotifier) *AttendanceUseCase {
	return &AttendanceUseCase{sales: sales, notifier: notifier}
}

func (uc *AttendanceUseCase) SetAuditor(a AttendanceAuditor) {
	uc.auditor = a
}

// UpdateAttendance stores the attendee count of an item and notifies
// listeners. Counts above a known capacity are rejected.
func (uc *AttendanceUseCase) UpdateAttendance(ctx context.Context, itemID string, attendees int) (domain.SalesState, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.SalesState{}, domain.NewInvalidInputError("item id is required", "")
	}
	if attendees < 0 {
		return domain.SalesState{}, domain.NewInvalidInputError("attendees must be non-negative", "")
	}

	ctx = log.WithItemID(ctx, itemID)
	state, err := uc.sales.GetSalesState(ctx, itemID)
	if err != nil {
		return domain.SalesState{}, uc.stateError(ctx, itemID, err)
	}
	if state.MaxAttendees > 0 && attendees > state.MaxAttendees {
		return domain.SalesState{}, domain.NewInvalidInputError("attendees exceed capacity",
			fmt.Sprintf("capacity is %d", state.MaxAttendees))
	}

	err = uc.sales.UpdateAttendance(ctx, itemID, attendees)
	if uc.auditor != nil {
		if auditErr := uc.auditor.LogAttendanceChange(ctx, itemID, attendees, err); auditErr != nil {
			log.Warn(ctx, "Failed to record audit event", zap.Error(auditErr))
		}
	}
	if err != nil {
		return domain.SalesState{}, uc.stateError(ctx, itemID, err)
	}
	state.CurrentAttendees = attendees

	log.Info(ctx, "Attendance updated", zap.Int("attendees", attendees))

	if uc.notifier != nil {
		if err := uc.notifier.Notify(ctx, itemID); err != nil {
			log.Warn(ctx, "Failed to announce attendance change", zap.Error(err))
		}
	}
	return state, nil
}

func (uc *AttendanceUseCase) stateError(ctx context.Context, itemID string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return domain.NewNotFoundError("item", itemID)
	}
	log.Error(ctx, "Failed to update attendance", zap.Error(err))
	return fmt.Errorf("failed to update attendance: %w", err)
}
