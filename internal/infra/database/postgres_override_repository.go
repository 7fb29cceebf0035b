package database

import (
	"context"
	"database/sql"
	"fmt"

	"recurring_events/internal/domain/override"
	"recurring_events/internal/domain/recurrence"
)

type PostgresOverrideRepository struct {
	db *sql.DB
}

func NewPostgresOverrideRepository(db *sql.DB) *PostgresOverrideRepository {
	return &PostgresOverrideRepository{db: db}
}

func (r *PostgresOverrideRepository) Upsert(ctx context.Context, o *override.Override) error {
	query := `INSERT INTO instance_overrides (event_id, occurrence, is_cancelled)
               VALUES ($1, $2, $3)
               ON CONFLICT (event_id, occurrence) DO UPDATE
               SET is_cancelled = EXCLUDED.is_cancelled, updated_at = NOW()
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, o.EventID, o.Date, o.IsCancelled).Scan(&o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting override: %w", err)
	}
	return nil
}

func (r *PostgresOverrideRepository) IsCancelled(ctx context.Context, eventID string, date recurrence.Date) (bool, error) {
	query := `SELECT is_cancelled FROM instance_overrides WHERE event_id = $1 AND occurrence = $2`
	var cancelled bool
	err := r.db.QueryRowContext(ctx, query, eventID, date).Scan(&cancelled)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("error reading override: %w", err)
	}
	return cancelled, nil
}

func (r *PostgresOverrideRepository) ListCancelled(ctx context.Context, eventID string, from, to recurrence.Date) ([]recurrence.Date, error) {
	query := `SELECT occurrence FROM instance_overrides
               WHERE event_id = $1 AND is_cancelled AND occurrence >= $2 AND occurrence < $3
               ORDER BY occurrence`
	rows, err := r.db.QueryContext(ctx, query, eventID, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing cancelled occurrences: %w", err)
	}
	defer rows.Close()

	var dates []recurrence.Date
	for rows.Next() {
		var d recurrence.Date
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("error scanning cancelled occurrence: %w", err)
		}
		dates = append(dates, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cancelled occurrences: %w", err)
	}
	return dates, nil
}
