package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/logger"
)

// flakyArchive fails the first n appends.
type flakyArchive struct {
	ports.PollArchive
	mu       sync.Mutex
	failures int
	calls    int
}

func (a *flakyArchive) Append(ctx context.Context, poll *domain.ArchivedPoll) error {
	a.mu.Lock()
	a.calls++
	fail := a.calls <= a.failures
	a.mu.Unlock()
	if fail {
		return errors.New("connection refused")
	}
	return a.PollArchive.Append(ctx, poll)
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []*domain.ArchivedPoll
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(_ context.Context, poll *domain.ArchivedPoll) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, poll)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func archivedPoll(question string, endedAt time.Time) *domain.ArchivedPoll {
	return &domain.ArchivedPoll{
		ID:       uuid.New(),
		Question: question,
		Options: []domain.ArchivedOption{
			{Text: "A", Votes: 1, Percentage: 100},
			{Text: "B", Votes: 0, Percentage: 0},
		},
		TotalVotes: 1,
		CreatedAt:  endedAt.Add(-time.Minute),
		EndTime:    endedAt,
		EndedAt:    endedAt,
		Reason:     domain.CloseReasonExpired,
	}
}

func TestArchiveWriterRetriesFailedWrites(t *testing.T) {
	store := &flakyArchive{PollArchive: memory.NewPollArchive(), failures: 2}
	publisher := &recordingPublisher{}
	w := NewArchiveWriter(store, memory.NewMessageStore(), publisher, 5*time.Second, logger.Discard())

	poll := archivedPoll("Q", testEpoch)
	w.ArchivePoll(poll)
	require.NoError(t, w.Wait(context.Background()))

	polls, err := store.ListEnded(context.Background())
	require.NoError(t, err)
	require.Len(t, polls, 1)
	assert.Equal(t, poll.ID, polls[0].ID)
	assert.Equal(t, 3, store.calls)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, poll.ID, publisher.published[0].ID)
}

func TestArchiveWriterGivesUp(t *testing.T) {
	store := &flakyArchive{PollArchive: memory.NewPollArchive(), failures: 100}
	publisher := &recordingPublisher{}
	w := NewArchiveWriter(store, memory.NewMessageStore(), publisher, 300*time.Millisecond, logger.Discard())

	w.ArchivePoll(archivedPoll("Q", testEpoch))
	require.NoError(t, w.Wait(context.Background()))

	polls, err := store.ListEnded(context.Background())
	require.NoError(t, err)
	assert.Empty(t, polls)
	assert.Empty(t, publisher.published, "nothing is published for a poll that was never stored")
}

func TestArchiveWriterMessages(t *testing.T) {
	messages := memory.NewMessageStore()
	w := NewArchiveWriter(memory.NewPollArchive(), messages, nil, time.Second, logger.Discard())

	for i := 0; i < 20; i++ {
		w.ArchiveMessage(&domain.ChatMessage{ID: uuid.New(), Text: "hi", Timestamp: testEpoch.Add(time.Duration(i) * time.Second)})
	}
	require.NoError(t, w.Wait(context.Background()))

	stored, err := messages.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 20)
}

type blockingArchive struct {
	ports.PollArchive
	release chan struct{}
}

func (a *blockingArchive) Append(ctx context.Context, _ *domain.ArchivedPoll) error {
	select {
	case <-a.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestArchiveWriterWaitHonorsContext(t *testing.T) {
	store := &blockingArchive{PollArchive: memory.NewPollArchive(), release: make(chan struct{})}
	w := NewArchiveWriter(store, memory.NewMessageStore(), nil, time.Minute, logger.Discard())

	w.ArchivePoll(archivedPoll("Q", testEpoch))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.DeadlineExceeded)

	close(store.release)
	require.NoError(t, w.Wait(context.Background()))
}
