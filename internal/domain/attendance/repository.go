package attendance

import (
	"context"
	"errors"

	"github.com/samber/mo"

	"recurring_events/internal/domain/recurrence"
)

var (
	ErrRecordNotFound   = errors.New("attendance record not found")
	ErrCapacityExceeded = errors.New("occurrence is at capacity")
)

// Repository is the attendance ledger.
type Repository interface {
	// Upsert writes rec, replacing any record with the same (event, date, participant).
	// When capacity is set and rec is attending, the current headcount of the occurrence
	// (excluding this participant's previous record) plus rec's headcount must not exceed
	// it, otherwise ErrCapacityExceeded is returned and nothing is written. The check and
	// the write are one atomic step.
	Upsert(ctx context.Context, rec *Record, capacity mo.Option[int]) error
	Get(ctx context.Context, eventID string, date recurrence.Date, participantID string) (*Record, error)
	List(ctx context.Context, eventID string, date recurrence.Date) ([]*Record, error)
	CountByStatus(ctx context.Context, eventID string, date recurrence.Date, status Status) (int, error)
	// Headcount is the number of seats taken: attending records plus their guests.
	Headcount(ctx context.Context, eventID string, date recurrence.Date) (int, error)
}
