// internal/domain/reminder/log.go
package reminder

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"recurring_events/internal/domain/recurrence"
)

// ErrAlreadySent is returned by LogRepository.Append when a sent entry with the same
// (template, recipient, related key) already exists.
var ErrAlreadySent = errors.New("reminder already sent")

// TemplateKind selects the reminder message.
type TemplateKind string

const (
	TemplateDayBefore TemplateKind = "day_before"
	TemplateDayOf     TemplateKind = "day_of"
)

// LogStatus is the outcome of one delivery attempt.
type LogStatus string

const (
	LogStatusSent   LogStatus = "sent"
	LogStatusFailed LogStatus = "failed"
)

// LogEntry is an append-only record of a delivery attempt. A sent entry permanently marks
// (TemplateKind, RecipientAddress, RelatedKey) as delivered; failed entries do not.
type LogEntry struct {
	ID               uuid.UUID
	TemplateKind     TemplateKind
	RecipientAddress string
	RelatedKey       string
	EventID          string
	OccurrenceDate   recurrence.Date
	Status           LogStatus
	Error            sql.NullString
	SentAt           time.Time
}

// RelatedKey identifies the occurrence a reminder is about: the event id for one-off
// events, "<event id>:<YYYY-MM-DD>" for occurrences of recurring ones.
func RelatedKey(eventID string, date recurrence.Date, recurring bool) string {
	if !recurring {
		return eventID
	}
	return eventID + ":" + date.String()
}

// LogRepository is the reminder send-log. Entries are never updated or deleted.
type LogRepository interface {
	HasSent(ctx context.Context, kind TemplateKind, address, relatedKey string) (bool, error)
	// Append inserts e. For sent entries the insert is conditional and yields
	// ErrAlreadySent if another sent entry holds the same key.
	Append(ctx context.Context, e *LogEntry) error
	// ReferencesEvent reports whether any entry, sent or failed, belongs to the event.
	ReferencesEvent(ctx context.Context, eventID string) (bool, error)
	// LatestSentOccurrence is the newest occurrence date with a sent entry for the event.
	LatestSentOccurrence(ctx context.Context, eventID string) (mo.Option[recurrence.Date], error)
}
