// internal/app/schedule_service.go
package app

import (
	"context"
	"fmt"

	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/override"
	"recurring_events/internal/domain/recurrence"
)

// Occurrence is an enumerated event date with its override state.
type Occurrence struct {
	Date      recurrence.Date
	Cancelled bool
}

// ScheduleService combines the enumerator with the override store for previews. The
// enumerator itself never sees overrides.
type ScheduleService struct {
	eventRepo    event.Repository
	overrideRepo override.Repository
}

func NewScheduleService(er event.Repository, or override.Repository) *ScheduleService {
	return &ScheduleService{eventRepo: er, overrideRepo: or}
}

// Occurrences lists the event's dates within [from, to), cancelled ones included and flagged.
func (s *ScheduleService) Occurrences(ctx context.Context, eventID string, from, to recurrence.Date) ([]Occurrence, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	seq, err := e.Occurrences(from, to)
	if err != nil {
		return nil, err
	}
	var dates []recurrence.Date
	for d := range seq {
		dates = append(dates, d)
	}
	return s.flag(ctx, eventID, dates)
}

// Upcoming lists the next n dates on or after from.
func (s *ScheduleService) Upcoming(ctx context.Context, eventID string, from recurrence.Date, n int) ([]Occurrence, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	seq, err := e.Occurrences(from, recurrence.Forever)
	if err != nil {
		return nil, err
	}
	dates := make([]recurrence.Date, 0, n)
	for d := range seq {
		if len(dates) == n {
			break
		}
		dates = append(dates, d)
	}
	return s.flag(ctx, eventID, dates)
}

// Series returns the event with every cancelled date of its series, for export.
func (s *ScheduleService) Series(ctx context.Context, eventID string) (*event.Event, []recurrence.Date, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if !e.IsRecurring() {
		return e, nil, nil
	}
	cancelled, err := s.overrideRepo.ListCancelled(ctx, eventID, e.StartDate, recurrence.Forever)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list cancelled occurrences of %s: %w", eventID, err)
	}
	return e, cancelled, nil
}

func (s *ScheduleService) flag(ctx context.Context, eventID string, dates []recurrence.Date) ([]Occurrence, error) {
	out := make([]Occurrence, len(dates))
	if len(dates) == 0 {
		return out, nil
	}
	cancelled, err := s.overrideRepo.ListCancelled(ctx, eventID, dates[0], dates[len(dates)-1].AddDays(1))
	if err != nil {
		return nil, fmt.Errorf("failed to list cancelled occurrences of %s: %w", eventID, err)
	}
	set := make(map[recurrence.Date]bool, len(cancelled))
	for _, d := range cancelled {
		set[d] = true
	}
	for i, d := range dates {
		out[i] = Occurrence{Date: d, Cancelled: set[d]}
	}
	return out, nil
}
