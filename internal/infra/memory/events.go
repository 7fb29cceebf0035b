// Package memory holds mutex-guarded in-memory implementations of the domain
// repositories, used by tests and by local runs without a database.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/recurrence"
)

type EventRepository struct {
	mu     sync.RWMutex
	events map[string]event.Event
}

func NewEventRepository() *EventRepository {
	return &EventRepository{events: make(map[string]event.Event)}
}

func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(e)
}

func (r *EventRepository) create(e *event.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, exists := r.events[e.ID]; exists {
		return fmt.Errorf("event %s already exists", e.ID)
	}
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	r.events[e.ID] = *e
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	return &e, nil
}

func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(e)
}

func (r *EventRepository) update(e *event.Event) error {
	if _, ok := r.events[e.ID]; !ok {
		return event.ErrEventNotFound
	}
	e.UpdatedAt = time.Now()
	r.events[e.ID] = *e
	return nil
}

func (r *EventRepository) SaveRevision(ctx context.Context, truncated, next *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[truncated.ID]; !ok {
		return event.ErrEventNotFound
	}
	if err := r.create(next); err != nil {
		return err
	}
	return r.update(truncated)
}

func (r *EventRepository) ListPublishedOneOff(ctx context.Context, from, to recurrence.Date) ([]*event.Event, error) {
	return r.list(func(e *event.Event) bool {
		return !e.IsRecurring() && !e.StartDate.Before(from) && !e.StartDate.After(to)
	})
}

func (r *EventRepository) ListPublishedRecurring(ctx context.Context, activeOn recurrence.Date) ([]*event.Event, error) {
	return r.list(func(e *event.Event) bool {
		if !e.IsRecurring() {
			return false
		}
		last, err := e.LastDate()
		if err != nil {
			// Undecodable rules are still returned so the caller can report them.
			return true
		}
		d, bounded := last.Get()
		return !bounded || !d.Before(activeOn)
	})
}

func (r *EventRepository) list(keep func(*event.Event) bool) ([]*event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*event.Event, 0)
	for _, e := range r.events {
		if !e.IsPublished() || !keep(&e) {
			continue
		}
		out = append(out, &e)
	}
	slices.SortFunc(out, func(a, b *event.Event) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}
