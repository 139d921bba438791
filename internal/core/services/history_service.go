package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type historyService struct {
	polls    ports.PollArchive
	messages ports.MessageStore
}

func NewHistoryService(polls ports.PollArchive, messages ports.MessageStore) ports.HistoryService {
	return &historyService{
		polls:    polls,
		messages: messages,
	}
}

// ListEndedPolls returns archived polls, most recently ended first.
func (s *historyService) ListEndedPolls(ctx context.Context) ([]*domain.ArchivedPoll, error) {
	polls, err := s.polls.ListEnded(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ended polls: %w", err)
	}

	sort.SliceStable(polls, func(i, j int) bool {
		return polls[i].EndedAt.After(polls[j].EndedAt)
	})
	return polls, nil
}

// ListChatMessages returns stored chat messages, oldest first.
func (s *historyService) ListChatMessages(ctx context.Context) ([]*domain.ChatMessage, error) {
	msgs, err := s.messages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

// HistorySummary aggregates the archive for reporting.
type HistorySummary struct {
	Polls      int
	TotalVotes int
	ByReason   map[domain.CloseReason]int
	// Correct counts votes for the flagged option, over polls that have one.
	Correct int
	Graded  int
}

func Summarize(polls []*domain.ArchivedPoll) HistorySummary {
	summary := HistorySummary{ByReason: make(map[domain.CloseReason]int)}
	for _, p := range polls {
		summary.Polls++
		summary.TotalVotes += p.TotalVotes
		summary.ByReason[p.Reason]++

		idx := p.CorrectOptionIndex
		if idx == nil || *idx < 0 || *idx >= len(p.Options) {
			continue
		}
		summary.Graded += p.TotalVotes
		summary.Correct += p.Options[*idx].Votes
	}
	return summary
}
