package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type messageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) ports.MessageStore {
	return &messageRepository{
		db: db,
	}
}

func (r *messageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, sender_id, sender_name, sender_role, text, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := r.db.ExecContext(ctx, query, msg.ID, msg.SenderID, msg.SenderName, string(msg.SenderRole), msg.Text, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

func (r *messageRepository) List(ctx context.Context) ([]*domain.ChatMessage, error) {
	query := `SELECT id, sender_id, sender_name, sender_role, text, sent_at FROM chat_messages ORDER BY sent_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.ChatMessage
	for rows.Next() {
		var (
			msg  domain.ChatMessage
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.SenderName, &role, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg.SenderRole = domain.Role(role)
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}
	return msgs, nil
}
