package event

import (
	"context"
	"errors"

	"recurring_events/internal/domain/recurrence"
)

var ErrEventNotFound = errors.New("event not found")

// Repository defines the operations for persisting and retrieving events.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, e *Event) error
	// SaveRevision updates the truncated old version and creates its successor in one step.
	SaveRevision(ctx context.Context, truncated, next *Event) error

	// ListPublishedOneOff returns published one-off events dated within [from, to].
	ListPublishedOneOff(ctx context.Context, from, to recurrence.Date) ([]*Event, error)
	// ListPublishedRecurring returns published recurring events that may still occur on
	// or after the given date.
	ListPublishedRecurring(ctx context.Context, activeOn recurrence.Date) ([]*Event, error)
}
