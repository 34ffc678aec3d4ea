package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-relay/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions with the per-group message log.
type MessageRepository interface {
	CreateMessage(ctx context.Context, groupID, userID int, content string) (models.Message, error)
	ListRecentMessages(ctx context.Context, groupID, limit int) ([]models.MessageWithUser, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage appends a message and bumps the group's last_activity in one
// transaction.
func (r *MessageRepo) CreateMessage(ctx context.Context, groupID, userID int, content string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	if err = tx.GetContext(ctx, &msg,
		`INSERT INTO messages (group_id, user_id, content) VALUES ($1, $2, $3) RETURNING id, group_id, user_id, content, created_at`,
		groupID, userID, content); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE groups SET last_activity = NOW() WHERE id=$1`, groupID); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListRecentMessages returns up to limit messages newest-first, each joined
// with its author snapshot.
func (r *MessageRepo) ListRecentMessages(ctx context.Context, groupID, limit int) ([]models.MessageWithUser, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT m.id, m.group_id, m.user_id, m.content, m.created_at,
                u.id AS author_id, u.username AS author_username, u.avatar_color AS author_color
         FROM messages m INNER JOIN users u ON u.id = m.user_id
         WHERE m.group_id=$1 ORDER BY m.created_at DESC, m.id DESC LIMIT $2`,
		groupID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.MessageWithUser
	for rows.Next() {
		var m models.MessageWithUser
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Content, &m.CreatedAt,
			&m.User.ID, &m.User.Username, &m.User.AvatarColor); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
