// Package memory keeps archived polls and chat messages in process memory.
// Contents are lost on restart.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type pollArchive struct {
	mu    sync.RWMutex
	polls []*domain.ArchivedPoll
	seen  map[uuid.UUID]struct{}
}

func NewPollArchive() ports.PollArchive {
	return &pollArchive{seen: make(map[uuid.UUID]struct{})}
}

func (r *pollArchive) Append(ctx context.Context, poll *domain.ArchivedPoll) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[poll.ID]; ok {
		return nil
	}
	r.seen[poll.ID] = struct{}{}
	r.polls = append(r.polls, clonePoll(poll))
	return nil
}

// ListEnded returns copies in insertion order.
func (r *pollArchive) ListEnded(ctx context.Context) ([]*domain.ArchivedPoll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.ArchivedPoll, len(r.polls))
	for i, p := range r.polls {
		out[i] = clonePoll(p)
	}
	return out, nil
}

type messageStore struct {
	mu   sync.RWMutex
	msgs []*domain.ChatMessage
}

func NewMessageStore() ports.MessageStore {
	return &messageStore{}
}

func (s *messageStore) Append(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	s.msgs = append(s.msgs, &cp)
	return nil
}

func (s *messageStore) List(ctx context.Context) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ChatMessage, len(s.msgs))
	for i, m := range s.msgs {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}

func clonePoll(p *domain.ArchivedPoll) *domain.ArchivedPoll {
	cp := *p
	cp.Options = append([]domain.ArchivedOption(nil), p.Options...)
	if p.CorrectOptionIndex != nil {
		idx := *p.CorrectOptionIndex
		cp.CorrectOptionIndex = &idx
	}
	return &cp
}
