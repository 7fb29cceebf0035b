package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"recurring_events/internal/domain/recurrence"
	"recurring_events/internal/domain/reminder"
)

type PostgresReminderLog struct {
	db *sql.DB
}

func NewPostgresReminderLog(db *sql.DB) *PostgresReminderLog {
	return &PostgresReminderLog{db: db}
}

func (r *PostgresReminderLog) HasSent(ctx context.Context, kind reminder.TemplateKind, address, relatedKey string) (bool, error) {
	query := `SELECT EXISTS (
                   SELECT 1 FROM reminder_log
                   WHERE template_kind = $1 AND recipient_address = $2 AND related_key = $3 AND status = $4)`
	var sent bool
	err := r.db.QueryRowContext(ctx, query, kind, address, relatedKey, reminder.LogStatusSent).Scan(&sent)
	if err != nil {
		return false, fmt.Errorf("error checking reminder log: %w", err)
	}
	return sent, nil
}

// Append inserts the entry. A sent entry that collides with the partial unique index is
// dropped by ON CONFLICT and reported as reminder.ErrAlreadySent.
func (r *PostgresReminderLog) Append(ctx context.Context, e *reminder.LogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}
	query := `INSERT INTO reminder_log (id, template_kind, recipient_address, related_key, event_id, occurrence, status, error, sent_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               ON CONFLICT (template_kind, recipient_address, related_key) WHERE status = 'sent' DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, e.ID, e.TemplateKind, e.RecipientAddress, e.RelatedKey,
		e.EventID, e.OccurrenceDate, e.Status, e.Error, e.SentAt)
	if err != nil {
		if isUniqueViolation(err) {
			return reminder.ErrAlreadySent
		}
		return fmt.Errorf("error appending reminder log entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading reminder log insert result: %w", err)
	}
	if n == 0 {
		return reminder.ErrAlreadySent
	}
	return nil
}

func (r *PostgresReminderLog) ReferencesEvent(ctx context.Context, eventID string) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reminder_log WHERE event_id = $1)`, eventID).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("error checking reminder log for event: %w", err)
	}
	return found, nil
}

func (r *PostgresReminderLog) LatestSentOccurrence(ctx context.Context, eventID string) (mo.Option[recurrence.Date], error) {
	var latest sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT to_char(MAX(occurrence), 'YYYY-MM-DD') FROM reminder_log
               WHERE event_id = $1 AND status = $2`, eventID, reminder.LogStatusSent).Scan(&latest)
	if err != nil {
		return mo.None[recurrence.Date](), fmt.Errorf("error reading latest reminded occurrence: %w", err)
	}
	if !latest.Valid {
		return mo.None[recurrence.Date](), nil
	}
	d, err := recurrence.ParseDate(latest.String)
	if err != nil {
		return mo.None[recurrence.Date](), err
	}
	return mo.Some(d), nil
}
