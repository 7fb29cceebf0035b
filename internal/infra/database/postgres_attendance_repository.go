package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/samber/mo"

	"recurring_events/internal/domain/attendance"
	"recurring_events/internal/domain/recurrence"
)

const attendanceColumns = `event_id, occurrence, participant_id, status, guest_count, notes, created_at, updated_at`

type PostgresAttendanceRepository struct {
	db *sql.DB
}

func NewPostgresAttendanceRepository(db *sql.DB) *PostgresAttendanceRepository {
	return &PostgresAttendanceRepository{db: db}
}

// Upsert serializes writers of one occurrence with a transaction-scoped advisory lock, so
// the headcount read and the write cannot interleave with another submission.
func (r *PostgresAttendanceRepository) Upsert(ctx context.Context, rec *attendance.Record, capacity mo.Option[int]) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for attendance upsert: %w", err)
	}
	defer txn.Rollback()

	lockKey := rec.EventID + ":" + rec.Date.String()
	if _, err := txn.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("failed to lock occurrence %s: %w", lockKey, err)
	}

	if limit, ok := capacity.Get(); ok && rec.Status == attendance.StatusAttending {
		var taken int
		err := txn.QueryRowContext(ctx, `SELECT COALESCE(SUM(1 + guest_count), 0) FROM attendance_records
               WHERE event_id = $1 AND occurrence = $2 AND status = $3 AND participant_id <> $4`,
			rec.EventID, rec.Date, attendance.StatusAttending, rec.ParticipantID).Scan(&taken)
		if err != nil {
			return fmt.Errorf("error counting headcount: %w", err)
		}
		if taken+rec.Headcount() > limit {
			return attendance.ErrCapacityExceeded
		}
	}

	query := `INSERT INTO attendance_records (event_id, occurrence, participant_id, status, guest_count, notes)
               VALUES ($1, $2, $3, $4, $5, $6)
               ON CONFLICT (event_id, occurrence, participant_id) DO UPDATE
               SET status = EXCLUDED.status, guest_count = EXCLUDED.guest_count, notes = EXCLUDED.notes, updated_at = NOW()
               RETURNING created_at, updated_at`
	err = txn.QueryRowContext(ctx, query, rec.EventID, rec.Date, rec.ParticipantID, rec.Status, rec.GuestCount, rec.Notes).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting attendance record: %w", err)
	}
	return txn.Commit()
}

func (r *PostgresAttendanceRepository) Get(ctx context.Context, eventID string, date recurrence.Date, participantID string) (*attendance.Record, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
               WHERE event_id = $1 AND occurrence = $2 AND participant_id = $3`
	rec := &attendance.Record{}
	err := scanRecord(r.db.QueryRowContext(ctx, query, eventID, date, participantID), rec)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, attendance.ErrRecordNotFound
		}
		return nil, fmt.Errorf("error getting attendance record: %w", err)
	}
	return rec, nil
}

func (r *PostgresAttendanceRepository) List(ctx context.Context, eventID string, date recurrence.Date) ([]*attendance.Record, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records
               WHERE event_id = $1 AND occurrence = $2 ORDER BY participant_id`
	rows, err := r.db.QueryContext(ctx, query, eventID, date)
	if err != nil {
		return nil, fmt.Errorf("error listing attendance records: %w", err)
	}
	defer rows.Close()

	records := make([]*attendance.Record, 0)
	for rows.Next() {
		rec := &attendance.Record{}
		if err := scanRecord(rows, rec); err != nil {
			return nil, fmt.Errorf("error scanning attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance records: %w", err)
	}
	return records, nil
}

func (r *PostgresAttendanceRepository) CountByStatus(ctx context.Context, eventID string, date recurrence.Date, status attendance.Status) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records
               WHERE event_id = $1 AND occurrence = $2 AND status = $3`, eventID, date, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting attendance records: %w", err)
	}
	return n, nil
}

func (r *PostgresAttendanceRepository) Headcount(ctx context.Context, eventID string, date recurrence.Date) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(1 + guest_count), 0) FROM attendance_records
               WHERE event_id = $1 AND occurrence = $2 AND status = $3`, eventID, date, attendance.StatusAttending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error summing headcount: %w", err)
	}
	return n, nil
}

func scanRecord(row rowScanner, rec *attendance.Record) error {
	return row.Scan(&rec.EventID, &rec.Date, &rec.ParticipantID, &rec.Status, &rec.GuestCount, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt)
}
