// internal/domain/event/event.go
package event

import (
	"database/sql"
	"fmt"
	"iter"
	"time"

	"github.com/samber/mo"

	"recurring_events/internal/domain/recurrence"
)

// Status is the publication state of an event. Publishing is decided outside this service.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Event is a one-off or recurring gathering. For a recurring event StartDate always equals
// the anchor of its rule.
type Event struct {
	ID              string
	Title           string
	Status          Status
	StartDate       recurrence.Date
	MaxAttendees    sql.NullInt64  // NULL means unlimited
	RSVPDeadline    sql.NullTime   // NULL means RSVPs never close
	RecurrenceRule  sql.NullString // encoded rule, NULL for one-off events
	PreviousEventID sql.NullString // set on a new version created by a rule revision
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (e *Event) IsRecurring() bool { return e.RecurrenceRule.Valid }
func (e *Event) IsPublished() bool { return e.Status == StatusPublished }

// Rule decodes the stored recurrence rule. It is None for one-off events.
func (e *Event) Rule() (mo.Option[recurrence.Rule], error) {
	if !e.RecurrenceRule.Valid {
		return mo.None[recurrence.Rule](), nil
	}
	r, err := recurrence.Decode(e.RecurrenceRule.String)
	if err != nil {
		return mo.None[recurrence.Rule](), fmt.Errorf("event %s: %w", e.ID, err)
	}
	return mo.Some(r), nil
}

// SetRule stores r as the event's recurrence and moves StartDate to its anchor.
func (e *Event) SetRule(r recurrence.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	e.RecurrenceRule = sql.NullString{String: recurrence.Encode(r), Valid: true}
	e.StartDate = r.Anchor
	return nil
}

// Occurrences yields the event dates within [from, to). A one-off event has exactly one
// occurrence, its StartDate.
func (e *Event) Occurrences(from, to recurrence.Date) (iter.Seq[recurrence.Date], error) {
	rule, err := e.Rule()
	if err != nil {
		return nil, err
	}
	if r, ok := rule.Get(); ok {
		return recurrence.Occurrences(r, from, to), nil
	}
	return func(yield func(recurrence.Date) bool) {
		if !e.StartDate.Before(from) && e.StartDate.Before(to) {
			yield(e.StartDate)
		}
	}, nil
}

// OccursOn reports whether d is one of the event's occurrence dates.
func (e *Event) OccursOn(d recurrence.Date) (bool, error) {
	rule, err := e.Rule()
	if err != nil {
		return false, err
	}
	if r, ok := rule.Get(); ok {
		return recurrence.IsOccurrence(r, d), nil
	}
	return e.StartDate == d, nil
}

// LastDate is the final occurrence date, or None when the event recurs forever. It backs
// the cheap "could this event still occur" filter used when listing active events.
func (e *Event) LastDate() (mo.Option[recurrence.Date], error) {
	rule, err := e.Rule()
	if err != nil {
		return mo.None[recurrence.Date](), err
	}
	r, ok := rule.Get()
	if !ok {
		return mo.Some(e.StartDate), nil
	}
	switch r.End.Kind {
	case recurrence.EndOnDate:
		return mo.Some(r.End.Until), nil
	case recurrence.EndAfterCount:
		var last recurrence.Date
		for d := range recurrence.Occurrences(r, r.Anchor, recurrence.Forever) {
			last = d
		}
		return mo.Some(last), nil
	default:
		return mo.None[recurrence.Date](), nil
	}
}

// DeadlinePassed reports whether RSVPs are closed at now.
func (e *Event) DeadlinePassed(now time.Time) bool {
	return e.RSVPDeadline.Valid && now.After(e.RSVPDeadline.Time)
}

// Capacity returns the attendee limit, None when unlimited.
func (e *Event) Capacity() mo.Option[int] {
	if !e.MaxAttendees.Valid {
		return mo.None[int]()
	}
	return mo.Some(int(e.MaxAttendees.Int64))
}
