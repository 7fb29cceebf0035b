package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"recurring_events/internal/domain/participant"
)

type Directory struct {
	mu           sync.RWMutex
	participants map[string]participant.Participant
}

func NewDirectory() *Directory {
	return &Directory{participants: make(map[string]participant.Participant)}
}

func (d *Directory) Create(ctx context.Context, p *participant.Participant) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := d.participants[p.ID]; exists {
		return fmt.Errorf("participant %s already exists", p.ID)
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	d.participants[p.ID] = *p
	return nil
}

func (d *Directory) GetByID(ctx context.Context, id string) (*participant.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.participants[id]
	if !ok {
		return nil, participant.ErrParticipantNotFound
	}
	return &p, nil
}

func (d *Directory) GetByAddress(ctx context.Context, address string) (*participant.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var found *participant.Participant
	for _, p := range d.participants {
		if p.IsGuest || p.Address != address {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) ||
			(p.CreatedAt.Equal(found.CreatedAt) && p.ID < found.ID) {
			found = &p
		}
	}
	if found == nil {
		return nil, participant.ErrParticipantNotFound
	}
	return found, nil
}

func (d *Directory) ListByIDs(ctx context.Context, ids []string) (map[string]*participant.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*participant.Participant, len(ids))
	for _, id := range ids {
		if p, ok := d.participants[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}
