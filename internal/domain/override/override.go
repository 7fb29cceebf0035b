// internal/domain/override/override.go
package override

import (
	"context"
	"time"

	"recurring_events/internal/domain/recurrence"
)

// Override is a per-occurrence exception to an event's rule. Only cancellation exists today.
type Override struct {
	EventID     string
	Date        recurrence.Date
	IsCancelled bool
	UpdatedAt   time.Time
}

// Repository stores overrides keyed by (event, date).
type Repository interface {
	// Upsert creates the override or replaces the flags of an existing one.
	Upsert(ctx context.Context, o *Override) error
	// IsCancelled is false when no override exists.
	IsCancelled(ctx context.Context, eventID string, date recurrence.Date) (bool, error)
	// ListCancelled returns the cancelled dates of an event within [from, to), ascending.
	ListCancelled(ctx context.Context, eventID string, from, to recurrence.Date) ([]recurrence.Date, error)
}
