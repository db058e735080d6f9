package chat

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo persists direct messages via database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const hydratedMessageColumns = `
	dm.id,
	dm.sender_user_id,
	dm.recipient_user_id,
	COALESCE(dm.body, ''),
	COALESCE(dm.image_url, ''),
	dm.created_at,
	COALESCE(s.display_name, ''),
	COALESCE(s.handle, ''),
	COALESCE(s.avatar_url, ''),
	COALESCE(r.display_name, ''),
	COALESCE(r.handle, ''),
	COALESCE(r.avatar_url, '')`

func scanHydratedMessage(row interface{ Scan(...any) error }) (DirectMessage, error) {
	var m DirectMessage
	err := row.Scan(
		&m.ID,
		&m.SenderUserID,
		&m.RecipientUserID,
		&m.Body,
		&m.ImageURL,
		&m.CreatedAt,
		&m.Sender.DisplayName,
		&m.Sender.Handle,
		&m.Sender.AvatarURL,
		&m.Recipient.DisplayName,
		&m.Recipient.Handle,
		&m.Recipient.AvatarURL,
	)
	return m, err
}

func (r *PostgresRepo) InsertDirectMessage(ctx context.Context, senderUserID, recipientUserID int64, body, imageURL string) (DirectMessage, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO direct_messages (sender_user_id, recipient_user_id, body, image_url)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING id`,
		senderUserID, recipientUserID, body, imageURL,
	).Scan(&id)
	if err != nil {
		return DirectMessage{}, fmt.Errorf("insert direct_messages: %w", err)
	}

	msg, err := scanHydratedMessage(r.db.QueryRowContext(ctx, `
		SELECT`+hydratedMessageColumns+`
		FROM direct_messages dm
		JOIN users s ON s.id = dm.sender_user_id
		JOIN users r ON r.id = dm.recipient_user_id
		WHERE dm.id = $1
		LIMIT 1`,
		id,
	))
	if err != nil {
		return DirectMessage{}, fmt.Errorf("load inserted direct message: %w", err)
	}
	return msg, nil
}

func (r *PostgresRepo) ListConversation(ctx context.Context, userID, otherUserID int64, limit int) ([]DirectMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+hydratedMessageColumns+`
		FROM direct_messages dm
		JOIN users s ON s.id = dm.sender_user_id
		JOIN users r ON r.id = dm.recipient_user_id
		WHERE
			(dm.sender_user_id = $1 AND dm.recipient_user_id = $2)
			OR
			(dm.sender_user_id = $2 AND dm.recipient_user_id = $1)
		ORDER BY dm.created_at DESC
		LIMIT $3`,
		userID, otherUserID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var out []DirectMessage
	for rows.Next() {
		m, err := scanHydratedMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query is newest-first for the LIMIT; callers want oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *PostgresRepo) ListChatUsers(ctx context.Context, currentUserID int64) ([]ChatUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id,
			COALESCE(display_name, ''),
			COALESCE(handle, ''),
			COALESCE(avatar_url, '')
		FROM users
		WHERE id <> $1
		ORDER BY COALESCE(display_name, handle, 'User') ASC`,
		currentUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat users: %w", err)
	}
	defer rows.Close()

	var out []ChatUser
	for rows.Next() {
		var u ChatUser
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Handle, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan chat user row: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
