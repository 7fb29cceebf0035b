// internal/app/event_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/recurrence"
	"recurring_events/internal/domain/reminder"
)

var ErrRecurrenceLocked = fmt.Errorf("recurrence cannot change: reminders were already sent for affected occurrences")

type EventService struct {
	eventRepo event.Repository
	logRepo   reminder.LogRepository
	logger    *logrus.Entry
}

func NewEventService(er event.Repository, lr reminder.LogRepository, logger *logrus.Entry) *EventService {
	return &EventService{
		eventRepo: er,
		logRepo:   lr,
		logger:    logger.WithField("component", "event_service"),
	}
}

// Create validates and stores a new event. A recurring event's start date is its rule anchor.
func (s *EventService) Create(ctx context.Context, e *event.Event) error {
	rule, err := e.Rule()
	if err != nil {
		return err
	}
	if r, ok := rule.Get(); ok {
		e.StartDate = r.Anchor
	}
	if e.StartDate.IsZero() {
		return fmt.Errorf("event start date is required")
	}
	if e.Status == "" {
		e.Status = event.StatusDraft
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"event_id": e.ID, "recurring": e.IsRecurring()}).Info("Event created")
	return nil
}

// ReviseRecurrence replaces an event's rule. Once any reminder references the event its
// rule is frozen: the old version is cut off the day before newRule's anchor and a new
// event version carries newRule. That split is only allowed when the new anchor is in the
// future and no sent reminder concerns a date on or after it; otherwise
// ErrRecurrenceLocked is returned. The event that now carries newRule is returned.
func (s *EventService) ReviseRecurrence(ctx context.Context, eventID string, newRule recurrence.Rule, today recurrence.Date) (*event.Event, error) {
	logCtx := s.logger.WithFields(logrus.Fields{"event_id": eventID, "rule": recurrence.Encode(newRule)})

	if err := newRule.Validate(); err != nil {
		return nil, err
	}
	current, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	referenced, err := s.logRepo.ReferencesEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to check reminder log for event %s: %w", eventID, err)
	}
	if !referenced {
		if err := current.SetRule(newRule); err != nil {
			return nil, err
		}
		if err := s.eventRepo.Update(ctx, current); err != nil {
			return nil, fmt.Errorf("failed to update event %s: %w", eventID, err)
		}
		logCtx.Info("Recurrence replaced in place")
		return current, nil
	}

	if !newRule.Anchor.After(today) || !newRule.Anchor.After(current.StartDate) {
		logCtx.Warn("Recurrence revision rejected: new anchor not in the future")
		return nil, ErrRecurrenceLocked
	}
	latest, err := s.logRepo.LatestSentOccurrence(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reminder log for event %s: %w", eventID, err)
	}
	if d, ok := latest.Get(); ok && !d.Before(newRule.Anchor) {
		logCtx.WithField("latest_sent", d.String()).Warn("Recurrence revision rejected: reminders sent past the new anchor")
		return nil, ErrRecurrenceLocked
	}

	truncated := *current
	if err := truncateBefore(&truncated, newRule.Anchor); err != nil {
		return nil, err
	}
	next := &event.Event{
		ID:              uuid.NewString(),
		Title:           current.Title,
		Status:          current.Status,
		MaxAttendees:    current.MaxAttendees,
		RSVPDeadline:    current.RSVPDeadline,
		PreviousEventID: sql.NullString{String: current.ID, Valid: true},
	}
	if err := next.SetRule(newRule); err != nil {
		return nil, err
	}
	if err := s.eventRepo.SaveRevision(ctx, &truncated, next); err != nil {
		return nil, fmt.Errorf("failed to save revision of event %s: %w", eventID, err)
	}
	logCtx.WithField("new_event_id", next.ID).Info("Recurrence revised as a new event version")
	return next, nil
}

// truncateBefore ends e's series strictly before cutoff while keeping every earlier
// occurrence unchanged. A counted rule keeps its kind with a smaller count so its dates
// stay identical.
func truncateBefore(e *event.Event, cutoff recurrence.Date) error {
	rule, err := e.Rule()
	if err != nil {
		return err
	}
	r, ok := rule.Get()
	if !ok {
		// A one-off event dated before cutoff is already entirely before it.
		return nil
	}
	switch r.End.Kind {
	case recurrence.EndAfterCount:
		kept := len(recurrence.Between(r, r.Anchor, cutoff))
		if kept < r.End.Count {
			r.End = recurrence.AfterCount(kept)
		}
	default:
		last := cutoff.AddDays(-1)
		if r.End.IsNever() || r.End.Until.After(last) {
			r.End = recurrence.OnDate(last)
		}
	}
	return e.SetRule(r)
}
