// internal/domain/attendance/record.go
package attendance

import (
	"database/sql"
	"fmt"
	"time"

	"recurring_events/internal/domain/recurrence"
)

// Status is a participant's answer for one occurrence.
type Status string

const (
	StatusAttending Status = "attending"
	StatusMaybe     Status = "maybe"
	StatusDeclined  Status = "declined"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusAttending, StatusMaybe, StatusDeclined:
		return st, nil
	default:
		return "", fmt.Errorf("unknown attendance status %q", s)
	}
}

// Record is the RSVP of one participant for one occurrence. For a one-off event Date is
// the event's start date.
type Record struct {
	EventID       string
	Date          recurrence.Date
	ParticipantID string
	Status        Status
	GuestCount    int
	Notes         sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Headcount is the number of seats the record takes: the participant plus guests, and
// only while attending.
func (r *Record) Headcount() int {
	if r == nil || r.Status != StatusAttending {
		return 0
	}
	return 1 + r.GuestCount
}
