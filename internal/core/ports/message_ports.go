package ports

import (
	"context"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type MessageStore interface {
	Append(ctx context.Context, msg *domain.ChatMessage) error
	List(ctx context.Context) ([]*domain.ChatMessage, error)
}
