package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"recurring_events/internal/domain/participant"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrParticipantAlreadyExists = fmt.Errorf("a participant with this address already exists")
var ErrEmptyAddress = fmt.Errorf("participant address must not be empty")

type AdminService struct {
	directory       participant.Directory
	adminTelegramID int64
}

func NewAdminService(directory participant.Directory, adminID int64) *AdminService {
	return &AdminService{
		directory:       directory,
		adminTelegramID: adminID,
	}
}

// AddParticipant registers a participant reachable at address. Members are unique per
// address; guests are not, since one member may bring several.
func (s *AdminService) AddParticipant(ctx context.Context, performingAdminID int64, address, displayName string, guest bool) (*participant.Participant, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrEmptyAddress
	}

	if !guest {
		_, err := s.directory.GetByAddress(ctx, address)
		if err == nil {
			return nil, ErrParticipantAlreadyExists
		}
		if !errors.Is(err, participant.ErrParticipantNotFound) {
			return nil, fmt.Errorf("failed to check existing participant: %w", err)
		}
	}

	p := &participant.Participant{
		Address:     address,
		DisplayName: sql.NullString{String: displayName, Valid: displayName != ""},
		IsGuest:     guest,
	}
	if err := s.directory.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create participant in directory: %w", err)
	}
	return p, nil
}
