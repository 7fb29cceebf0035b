package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"recurring_events/internal/domain/participant"
)

var ErrDuplicateParticipant = fmt.Errorf("participant with this ID already exists")

type PostgresParticipantDirectory struct {
	db *sql.DB
}

func NewPostgresParticipantDirectory(db *sql.DB) *PostgresParticipantDirectory {
	return &PostgresParticipantDirectory{db: db}
}

func (r *PostgresParticipantDirectory) Create(ctx context.Context, p *participant.Participant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `INSERT INTO participants (id, address, display_name, is_guest)
               VALUES ($1, $2, $3, $4)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.Address, p.DisplayName, p.IsGuest).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateParticipant
		}
		return fmt.Errorf("error creating participant: %w", err)
	}
	return nil
}

func (r *PostgresParticipantDirectory) GetByID(ctx context.Context, id string) (*participant.Participant, error) {
	query := `SELECT id, address, display_name, is_guest, created_at, updated_at
               FROM participants WHERE id = $1`
	p := &participant.Participant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Address, &p.DisplayName, &p.IsGuest, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, participant.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("error getting participant by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresParticipantDirectory) GetByAddress(ctx context.Context, address string) (*participant.Participant, error) {
	query := `SELECT id, address, display_name, is_guest, created_at, updated_at
               FROM participants WHERE address = $1 AND NOT is_guest
               ORDER BY created_at, id LIMIT 1`
	p := &participant.Participant{}
	err := r.db.QueryRowContext(ctx, query, address).Scan(&p.ID, &p.Address, &p.DisplayName, &p.IsGuest, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, participant.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("error getting participant by address: %w", err)
	}
	return p, nil
}

func (r *PostgresParticipantDirectory) ListByIDs(ctx context.Context, ids []string) (map[string]*participant.Participant, error) {
	out := make(map[string]*participant.Participant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT id, address, display_name, is_guest, created_at, updated_at
               FROM participants WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error listing participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p := &participant.Participant{}
		if err := rows.Scan(&p.ID, &p.Address, &p.DisplayName, &p.IsGuest, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning participant: %w", err)
		}
		out[p.ID] = p
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}
	return out, nil
}
