package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/mo"

	"recurring_events/internal/domain/attendance"
	"recurring_events/internal/domain/recurrence"
)

type occurrenceKey struct {
	eventID string
	date    recurrence.Date
}

// AttendanceRepository keeps records per occurrence. One mutex guards the whole ledger,
// so the capacity check and the write in Upsert see the same state.
type AttendanceRepository struct {
	mu      sync.Mutex
	records map[occurrenceKey]map[string]attendance.Record
}

func NewAttendanceRepository() *AttendanceRepository {
	return &AttendanceRepository{records: make(map[occurrenceKey]map[string]attendance.Record)}
}

func (r *AttendanceRepository) Upsert(ctx context.Context, rec *attendance.Record, capacity mo.Option[int]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := occurrenceKey{rec.EventID, rec.Date}
	byParticipant := r.records[key]
	if byParticipant == nil {
		byParticipant = make(map[string]attendance.Record)
		r.records[key] = byParticipant
	}

	if limit, ok := capacity.Get(); ok && rec.Status == attendance.StatusAttending {
		taken := 0
		for pid, existing := range byParticipant {
			if pid != rec.ParticipantID {
				taken += existing.Headcount()
			}
		}
		if taken+rec.Headcount() > limit {
			return attendance.ErrCapacityExceeded
		}
	}

	now := time.Now()
	if prev, ok := byParticipant[rec.ParticipantID]; ok {
		rec.CreatedAt = prev.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	byParticipant[rec.ParticipantID] = *rec
	return nil
}

func (r *AttendanceRepository) Get(ctx context.Context, eventID string, date recurrence.Date, participantID string) (*attendance.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[occurrenceKey{eventID, date}][participantID]
	if !ok {
		return nil, attendance.ErrRecordNotFound
	}
	return &rec, nil
}

func (r *AttendanceRepository) List(ctx context.Context, eventID string, date recurrence.Date) ([]*attendance.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*attendance.Record, 0)
	for _, rec := range r.records[occurrenceKey{eventID, date}] {
		out = append(out, &rec)
	}
	slices.SortFunc(out, func(a, b *attendance.Record) int { return strings.Compare(a.ParticipantID, b.ParticipantID) })
	return out, nil
}

func (r *AttendanceRepository) CountByStatus(ctx context.Context, eventID string, date recurrence.Date, status attendance.Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records[occurrenceKey{eventID, date}] {
		if rec.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *AttendanceRepository) Headcount(ctx context.Context, eventID string, date recurrence.Date) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records[occurrenceKey{eventID, date}] {
		n += rec.Headcount()
	}
	return n, nil
}
