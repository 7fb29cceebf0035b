package participant

import (
	"context"
	"errors"
)

var ErrParticipantNotFound = errors.New("participant not found")

// Directory resolves participant ids to delivery addresses. Membership itself is managed
// elsewhere; this is the read side the reminder job needs plus registration of guests.
type Directory interface {
	Create(ctx context.Context, p *Participant) error
	GetByID(ctx context.Context, id string) (*Participant, error)
	// GetByAddress returns the oldest non-guest participant registered under address.
	GetByAddress(ctx context.Context, address string) (*Participant, error)
	// ListByIDs returns the participants found, keyed by id. Unknown ids are absent.
	ListByIDs(ctx context.Context, ids []string) (map[string]*Participant, error)
}
