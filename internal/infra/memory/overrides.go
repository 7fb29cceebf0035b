package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"recurring_events/internal/domain/override"
	"recurring_events/internal/domain/recurrence"
)

type overrideKey struct {
	eventID string
	date    recurrence.Date
}

type OverrideRepository struct {
	mu        sync.RWMutex
	overrides map[overrideKey]override.Override
}

func NewOverrideRepository() *OverrideRepository {
	return &OverrideRepository{overrides: make(map[overrideKey]override.Override)}
}

func (r *OverrideRepository) Upsert(ctx context.Context, o *override.Override) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.UpdatedAt = time.Now()
	r.overrides[overrideKey{o.EventID, o.Date}] = *o
	return nil
}

func (r *OverrideRepository) IsCancelled(ctx context.Context, eventID string, date recurrence.Date) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overrides[overrideKey{eventID, date}].IsCancelled, nil
}

func (r *OverrideRepository) ListCancelled(ctx context.Context, eventID string, from, to recurrence.Date) ([]recurrence.Date, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []recurrence.Date
	for k, o := range r.overrides {
		if k.eventID == eventID && o.IsCancelled && !k.date.Before(from) && k.date.Before(to) {
			out = append(out, k.date)
		}
	}
	slices.SortFunc(out, recurrence.Date.Compare)
	return out, nil
}
