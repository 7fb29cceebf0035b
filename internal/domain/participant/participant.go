package participant

import (
	"database/sql"
	"time"
)

// Participant is someone who can RSVP to an event: a member, or a guest who answered
// without an account. Address is where reminders go (e.g. "tg:123456").
type Participant struct {
	ID          string
	Address     string
	DisplayName sql.NullString
	IsGuest     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
