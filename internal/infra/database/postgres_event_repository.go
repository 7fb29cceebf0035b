package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/recurrence"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const eventColumns = `id, title, status, start_date, max_attendees, rsvp_deadline, recurrence_rule,
               previous_event_id, created_at, updated_at`

type PostgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) Create(ctx context.Context, e *event.Event) error {
	return insertEvent(ctx, r.db, e)
}

func (r *PostgresEventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e := &event.Event{}
	err := scanEvent(r.db.QueryRowContext(ctx, query, id), e)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("error getting event by ID: %w", err)
	}
	return e, nil
}

func (r *PostgresEventRepository) Update(ctx context.Context, e *event.Event) error {
	return updateEvent(ctx, r.db, e)
}

func (r *PostgresEventRepository) SaveRevision(ctx context.Context, truncated, next *event.Event) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for event revision: %w", err)
	}
	defer txn.Rollback()

	if err := updateEvent(ctx, txn, truncated); err != nil {
		return err
	}
	if err := insertEvent(ctx, txn, next); err != nil {
		return err
	}
	return txn.Commit()
}

func (r *PostgresEventRepository) ListPublishedOneOff(ctx context.Context, from, to recurrence.Date) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
               WHERE status = $1 AND recurrence_rule IS NULL AND start_date BETWEEN $2 AND $3
               ORDER BY id`
	return r.list(ctx, query, event.StatusPublished, from, to)
}

func (r *PostgresEventRepository) ListPublishedRecurring(ctx context.Context, activeOn recurrence.Date) ([]*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
               WHERE status = $1 AND recurrence_rule IS NOT NULL AND (last_date IS NULL OR last_date >= $2)
               ORDER BY id`
	return r.list(ctx, query, event.StatusPublished, activeOn)
}

func (r *PostgresEventRepository) list(ctx context.Context, query string, args ...any) ([]*event.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	defer rows.Close()

	events := make([]*event.Event, 0)
	for rows.Next() {
		e := &event.Event{}
		if err := scanEvent(rows, e); err != nil {
			return nil, fmt.Errorf("error scanning event: %w", err)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

func insertEvent(ctx context.Context, q queryer, e *event.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	lastDate, err := lastDateArg(e)
	if err != nil {
		return err
	}
	query := `INSERT INTO events (id, title, status, start_date, max_attendees, rsvp_deadline,
                   recurrence_rule, last_date, previous_event_id)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               RETURNING created_at, updated_at`
	err = q.QueryRowContext(ctx, query, e.ID, e.Title, e.Status, e.StartDate, e.MaxAttendees, e.RSVPDeadline,
		e.RecurrenceRule, lastDate, e.PreviousEventID).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("event %s already exists: %w", e.ID, err)
		}
		return fmt.Errorf("error creating event: %w", err)
	}
	return nil
}

func updateEvent(ctx context.Context, q queryer, e *event.Event) error {
	lastDate, err := lastDateArg(e)
	if err != nil {
		return err
	}
	query := `UPDATE events
               SET title = $1, status = $2, start_date = $3, max_attendees = $4, rsvp_deadline = $5,
                   recurrence_rule = $6, last_date = $7, previous_event_id = $8, updated_at = NOW()
               WHERE id = $9
               RETURNING updated_at`
	err = q.QueryRowContext(ctx, query, e.Title, e.Status, e.StartDate, e.MaxAttendees, e.RSVPDeadline,
		e.RecurrenceRule, lastDate, e.PreviousEventID, e.ID).Scan(&e.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return event.ErrEventNotFound
		}
		return fmt.Errorf("error updating event: %w", err)
	}
	return nil
}

// lastDateArg is the last_date column value, NULL for never-ending series.
func lastDateArg(e *event.Event) (any, error) {
	last, err := e.LastDate()
	if err != nil {
		return nil, err
	}
	if d, ok := last.Get(); ok {
		return d, nil
	}
	return nil, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner, e *event.Event) error {
	return row.Scan(&e.ID, &e.Title, &e.Status, &e.StartDate, &e.MaxAttendees, &e.RSVPDeadline,
		&e.RecurrenceRule, &e.PreviousEventID, &e.CreatedAt, &e.UpdatedAt)
}
