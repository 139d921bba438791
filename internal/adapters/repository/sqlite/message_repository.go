package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type messageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) ports.MessageStore {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO chat_messages (id, sender_id, sender_name, sender_role, text, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), msg.SenderID.String(), msg.SenderName, string(msg.SenderRole), msg.Text, msg.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

func (r *messageRepository) List(ctx context.Context) ([]*domain.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, sender_name, sender_role, text, sent_at
		FROM chat_messages
		ORDER BY sent_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.ChatMessage
	for rows.Next() {
		var (
			msg              domain.ChatMessage
			id, sender, role string
			sentAt           int64
		)
		if err := rows.Scan(&id, &sender, &msg.SenderName, &role, &msg.Text, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		if msg.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid chat message id %q: %w", id, err)
		}
		if msg.SenderID, err = uuid.Parse(sender); err != nil {
			return nil, fmt.Errorf("invalid sender id %q: %w", sender, err)
		}
		msg.SenderRole = domain.Role(role)
		msg.Timestamp = fromUnixNano(sentAt)
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}
	return msgs, nil
}
