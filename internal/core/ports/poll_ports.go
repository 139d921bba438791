package ports

import (
	"context"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

// PollArchive is the append-only store for ended polls.
type PollArchive interface {
	Append(ctx context.Context, poll *domain.ArchivedPoll) error
	ListEnded(ctx context.Context) ([]*domain.ArchivedPoll, error)
}

// ResultPublisher forwards archived polls to systems outside the process.
type ResultPublisher interface {
	Name() string
	Publish(ctx context.Context, poll *domain.ArchivedPoll) error
	Close() error
}

type CreatePollInput struct {
	Question           string
	Options            []string
	DurationSeconds    int
	CorrectOptionIndex *int
}

type HistoryService interface {
	ListEndedPolls(ctx context.Context) ([]*domain.ArchivedPoll, error)
	ListChatMessages(ctx context.Context) ([]*domain.ChatMessage, error)
}
