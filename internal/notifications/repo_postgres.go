package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepo persists notifications via database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ThreadAuthor(ctx context.Context, threadID int64) (int64, error) {
	var authorID int64
	err := r.db.QueryRowContext(ctx, `
		SELECT author_user_id
		FROM threads
		WHERE id = $1
		LIMIT 1`,
		threadID,
	).Scan(&authorID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrThreadNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query thread author: %w", err)
	}
	return authorID, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, recipientUserID, actorUserID, threadID int64, t Type) (Notification, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, actor_user_id, thread_id, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		recipientUserID, actorUserID, threadID, t,
	).Scan(&id)
	if err != nil {
		return Notification{}, fmt.Errorf("insert notifications: %w", err)
	}

	var n Notification
	err = r.db.QueryRowContext(ctx, `
		SELECT
			n.id,
			n.type,
			n.thread_id,
			n.created_at,
			n.read_at,
			COALESCE(actor.display_name, ''),
			COALESCE(actor.handle, ''),
			COALESCE(t.title, '')
		FROM notifications n
		JOIN users actor ON actor.id = n.actor_user_id
		JOIN threads t ON t.id = n.thread_id
		WHERE n.id = $1
		LIMIT 1`,
		id,
	).Scan(&n.ID, &n.Type, &n.ThreadID, &n.CreatedAt, &n.ReadAt, &n.ActorName, &n.ActorHandle, &n.ThreadTitle)
	if err != nil {
		return Notification{}, fmt.Errorf("load inserted notification: %w", err)
	}
	return n, nil
}
