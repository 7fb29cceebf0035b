// internal/app/attendance_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"recurring_events/internal/domain/attendance"
	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/override"
	"recurring_events/internal/domain/recurrence"
)

// Rejection outcomes of an RSVP. They are expected results, not system errors.
var (
	ErrDeadlinePassed      = fmt.Errorf("rsvp deadline has passed")
	ErrOccurrenceCancelled = fmt.Errorf("occurrence is cancelled")
	ErrNegativeGuestCount  = fmt.Errorf("guest count must not be negative")
	ErrCapacityExceeded    = attendance.ErrCapacityExceeded
)

// RSVP is one attendance submission.
type RSVP struct {
	EventID       string
	Date          recurrence.Date
	ParticipantID string
	Status        attendance.Status
	GuestCount    int
	Notes         string
}

type AttendanceService struct {
	eventRepo    event.Repository
	overrideRepo override.Repository
	ledger       attendance.Repository
	logger       *logrus.Entry
}

func NewAttendanceService(er event.Repository, or override.Repository, ledger attendance.Repository, logger *logrus.Entry) *AttendanceService {
	return &AttendanceService{
		eventRepo:    er,
		overrideRepo: or,
		ledger:       ledger,
		logger:       logger.WithField("component", "attendance_service"),
	}
}

// Upsert records rsvp as of now, replacing the participant's previous answer for the
// occurrence. The capacity check runs inside the ledger write.
func (s *AttendanceService) Upsert(ctx context.Context, now time.Time, rsvp RSVP) (*attendance.Record, error) {
	logCtx := s.logger.WithFields(logrus.Fields{
		"event_id":       rsvp.EventID,
		"occurrence":     rsvp.Date.String(),
		"participant_id": rsvp.ParticipantID,
		"status":         rsvp.Status,
	})

	if _, err := attendance.ParseStatus(string(rsvp.Status)); err != nil {
		return nil, err
	}
	if rsvp.GuestCount < 0 {
		return nil, ErrNegativeGuestCount
	}

	e, err := s.eventRepo.GetByID(ctx, rsvp.EventID)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load event %s: %w", rsvp.EventID, err)
	}
	if e.DeadlinePassed(now) {
		logCtx.Info("RSVP rejected: deadline passed")
		return nil, ErrDeadlinePassed
	}

	occurs, err := e.OccursOn(rsvp.Date)
	if err != nil {
		return nil, err
	}
	if !occurs {
		logCtx.Info("RSVP rejected: not an occurrence")
		return nil, ErrNotAnOccurrence
	}

	cancelled, err := s.overrideRepo.IsCancelled(ctx, rsvp.EventID, rsvp.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to check override: %w", err)
	}
	if cancelled {
		logCtx.Info("RSVP rejected: occurrence cancelled")
		return nil, ErrOccurrenceCancelled
	}

	rec := &attendance.Record{
		EventID:       rsvp.EventID,
		Date:          rsvp.Date,
		ParticipantID: rsvp.ParticipantID,
		Status:        rsvp.Status,
		GuestCount:    rsvp.GuestCount,
		Notes:         sql.NullString{String: rsvp.Notes, Valid: rsvp.Notes != ""},
	}
	if err := s.ledger.Upsert(ctx, rec, e.Capacity()); err != nil {
		if errors.Is(err, attendance.ErrCapacityExceeded) {
			logCtx.WithField("guest_count", rsvp.GuestCount).Info("RSVP rejected: capacity exceeded")
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to store RSVP")
		return nil, fmt.Errorf("failed to store attendance record: %w", err)
	}
	logCtx.Debug("RSVP stored")
	return rec, nil
}

func (s *AttendanceService) Get(ctx context.Context, eventID string, date recurrence.Date, participantID string) (*attendance.Record, error) {
	return s.ledger.Get(ctx, eventID, date, participantID)
}

func (s *AttendanceService) List(ctx context.Context, eventID string, date recurrence.Date) ([]*attendance.Record, error) {
	return s.ledger.List(ctx, eventID, date)
}

func (s *AttendanceService) CountByStatus(ctx context.Context, eventID string, date recurrence.Date, status attendance.Status) (int, error) {
	return s.ledger.CountByStatus(ctx, eventID, date, status)
}

func (s *AttendanceService) Headcount(ctx context.Context, eventID string, date recurrence.Date) (int, error) {
	return s.ledger.Headcount(ctx, eventID, date)
}
