// internal/app/override_service.go
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/override"
	"recurring_events/internal/domain/recurrence"
)

var ErrNotAnOccurrence = fmt.Errorf("date is not an occurrence of the event")

// OverrideService cancels and restores single occurrences. Cancelling leaves attendance
// records in place; they stay queryable but the occurrence is no longer scheduled.
type OverrideService struct {
	eventRepo    event.Repository
	overrideRepo override.Repository
	logger       *logrus.Entry
}

func NewOverrideService(er event.Repository, or override.Repository, logger *logrus.Entry) *OverrideService {
	return &OverrideService{
		eventRepo:    er,
		overrideRepo: or,
		logger:       logger.WithField("component", "override_service"),
	}
}

func (s *OverrideService) Cancel(ctx context.Context, eventID string, date recurrence.Date) error {
	return s.setCancelled(ctx, eventID, date, true)
}

// Uncancel restores an occurrence. It is a no-op for occurrences that were never cancelled.
func (s *OverrideService) Uncancel(ctx context.Context, eventID string, date recurrence.Date) error {
	return s.setCancelled(ctx, eventID, date, false)
}

func (s *OverrideService) IsCancelled(ctx context.Context, eventID string, date recurrence.Date) (bool, error) {
	cancelled, err := s.overrideRepo.IsCancelled(ctx, eventID, date)
	if err != nil {
		return false, fmt.Errorf("failed to check override for event %s on %s: %w", eventID, date, err)
	}
	return cancelled, nil
}

func (s *OverrideService) setCancelled(ctx context.Context, eventID string, date recurrence.Date, cancelled bool) error {
	logCtx := s.logger.WithFields(logrus.Fields{"event_id": eventID, "occurrence": date.String(), "cancelled": cancelled})

	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return err
		}
		return fmt.Errorf("failed to load event %s: %w", eventID, err)
	}
	occurs, err := e.OccursOn(date)
	if err != nil {
		return err
	}
	if !occurs {
		logCtx.Info("Rejected override for a date that is not an occurrence")
		return ErrNotAnOccurrence
	}

	if err := s.overrideRepo.Upsert(ctx, &override.Override{EventID: eventID, Date: date, IsCancelled: cancelled}); err != nil {
		logCtx.WithError(err).Error("Failed to store override")
		return fmt.Errorf("failed to store override: %w", err)
	}
	logCtx.Info("Occurrence override stored")
	return nil
}
