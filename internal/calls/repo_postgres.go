package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresRepo persists call records via database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, call VideoCall) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO video_calls (
			id, caller_id, recipient_id, caller_name, recipient_name, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		call.ID, call.CallerID, call.RecipientID, call.CallerName, call.RecipientName, call.Status, call.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert video_calls: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, callID string) (VideoCall, error) {
	var c VideoCall
	err := r.db.QueryRowContext(ctx, `
		SELECT id, caller_id, recipient_id,
		       COALESCE(caller_name, ''), COALESCE(recipient_name, ''),
		       status, started_at, ended_at, created_at
		FROM video_calls
		WHERE id = $1
		LIMIT 1`,
		callID,
	).Scan(&c.ID, &c.CallerID, &c.RecipientID, &c.CallerName, &c.RecipientName,
		&c.Status, &c.StartedAt, &c.EndedAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return VideoCall{}, ErrNotFound
	}
	if err != nil {
		return VideoCall{}, fmt.Errorf("query video_calls: %w", err)
	}
	return c, nil
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, callID string, status CallStatus, startedAt, endedAt *time.Time) (VideoCall, error) {
	var c VideoCall
	err := r.db.QueryRowContext(ctx, `
		UPDATE video_calls
		SET status = $2,
		    started_at = COALESCE($3, started_at),
		    ended_at = COALESCE($4, ended_at)
		WHERE id = $1
		RETURNING id, caller_id, recipient_id,
		          COALESCE(caller_name, ''), COALESCE(recipient_name, ''),
		          status, started_at, ended_at, created_at`,
		callID, status, startedAt, endedAt,
	).Scan(&c.ID, &c.CallerID, &c.RecipientID, &c.CallerName, &c.RecipientName,
		&c.Status, &c.StartedAt, &c.EndedAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return VideoCall{}, ErrNotFound
	}
	if err != nil {
		return VideoCall{}, fmt.Errorf("update video_calls: %w", err)
	}
	return c, nil
}
