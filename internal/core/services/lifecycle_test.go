package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type lifecycleFixture struct {
	clock    *fakeClock
	roster   *stubRoster
	archiver *recordingArchiver
	life     *PollLifecycle
	expired  []uuid.UUID
}

func newLifecycleFixture(students ...uuid.UUID) *lifecycleFixture {
	f := &lifecycleFixture{
		clock:    newFakeClock(),
		roster:   &stubRoster{ids: students},
		archiver: &recordingArchiver{},
	}
	f.life = NewPollLifecycle(f.clock, f.roster, f.archiver, 0)
	return f
}

// onExpire mimics the coordinator: it closes the poll the timer was armed for.
func (f *lifecycleFixture) onExpire(pollID uuid.UUID) {
	f.expired = append(f.expired, pollID)
	f.life.Close(pollID, domain.CloseReasonExpired)
}

func (f *lifecycleFixture) create(t *testing.T, input ports.CreatePollInput) *domain.Poll {
	t.Helper()
	poll, err := f.life.Create(input, f.onExpire)
	require.NoError(t, err)
	return poll
}

func twoOptions(seconds int) ports.CreatePollInput {
	return ports.CreatePollInput{Question: "Pick one", Options: []string{"A", "B"}, DurationSeconds: seconds}
}

func TestLifecycleCreateValidation(t *testing.T) {
	outOfRange := 2
	negative := -1
	testCases := []struct {
		name  string
		input ports.CreatePollInput
	}{
		{name: "Empty question", input: ports.CreatePollInput{Question: "  ", Options: []string{"A", "B"}}},
		{name: "One option", input: ports.CreatePollInput{Question: "Q", Options: []string{"A"}}},
		{name: "Seven options", input: ports.CreatePollInput{Question: "Q", Options: []string{"1", "2", "3", "4", "5", "6", "7"}}},
		{name: "Blank option", input: ports.CreatePollInput{Question: "Q", Options: []string{"A", " "}}},
		{name: "Too short", input: ports.CreatePollInput{Question: "Q", Options: []string{"A", "B"}, DurationSeconds: 9}},
		{name: "Too long", input: ports.CreatePollInput{Question: "Q", Options: []string{"A", "B"}, DurationSeconds: 301}},
		{name: "Negative duration", input: ports.CreatePollInput{Question: "Q", Options: []string{"A", "B"}, DurationSeconds: -5}},
		{name: "Correct index out of range", input: ports.CreatePollInput{Question: "Q", Options: []string{"A", "B"}, CorrectOptionIndex: &outOfRange}},
		{name: "Negative correct index", input: ports.CreatePollInput{Question: "Q", Options: []string{"A", "B"}, CorrectOptionIndex: &negative}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newLifecycleFixture()
			_, err := f.life.Create(tc.input, f.onExpire)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Nil(t, f.life.Current())
			assert.Zero(t, f.clock.pending())
		})
	}
}

func TestLifecycleCreate(t *testing.T) {
	f := newLifecycleFixture(uuid.New())

	poll := f.create(t, ports.CreatePollInput{Question: " Capital of France? ", Options: []string{" Paris", "Rome "}})
	assert.Equal(t, "Capital of France?", poll.Question)
	assert.Equal(t, []domain.PollOption{{Text: "Paris"}, {Text: "Rome"}}, poll.Options)
	assert.Equal(t, DefaultPollDuration, poll.Duration, "zero duration uses the default")
	assert.Equal(t, testEpoch.Add(DefaultPollDuration), poll.EndTime)
	assert.True(t, poll.IsActive())
	assert.Equal(t, 1, f.clock.pending())

	_, err := f.life.Create(twoOptions(30), f.onExpire)
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)
	current := f.life.Current()
	require.NotNil(t, current)
	assert.Equal(t, poll.ID, current.ID, "the active poll is untouched")
}

func TestLifecycleRecordAnswer(t *testing.T) {
	s1, s2 := uuid.New(), uuid.New()

	t.Run("No active poll", func(t *testing.T) {
		f := newLifecycleFixture(s1)
		_, err := f.life.RecordAnswer(s1, 0)
		assert.ErrorIs(t, err, domain.ErrNoActivePoll)
	})

	t.Run("Rejections in order", func(t *testing.T) {
		f := newLifecycleFixture(s1, s2)
		f.create(t, twoOptions(10))

		outcome, err := f.life.RecordAnswer(s1, 0)
		require.NoError(t, err)
		assert.Nil(t, outcome.Closed)
		assert.Equal(t, 1, outcome.Poll.Options[0].Votes)
		assert.Equal(t, 1, outcome.Poll.AnsweredCount)

		// AlreadyAnswered wins over InvalidOption.
		_, err = f.life.RecordAnswer(s1, 9)
		assert.ErrorIs(t, err, domain.ErrAlreadyAnswered)

		_, err = f.life.RecordAnswer(s2, 2)
		assert.ErrorIs(t, err, domain.ErrInvalidOption)
		assert.False(t, f.life.HasAnswered(s2))
	})

	t.Run("Answer exactly at end time is accepted", func(t *testing.T) {
		f := newLifecycleFixture(s1, s2)
		f.create(t, twoOptions(10))

		// Freeze the timer so the window check runs on its own.
		f.life.timer.Stop()
		f.clock.Advance(10 * time.Second)
		_, err := f.life.RecordAnswer(s1, 1)
		assert.NoError(t, err)

		f.clock.Advance(time.Millisecond)
		assert.False(t, f.life.AcceptingAnswers())
		_, err = f.life.RecordAnswer(s2, 1)
		assert.ErrorIs(t, err, domain.ErrTimeExpired)
	})

	t.Run("Last student closes the poll", func(t *testing.T) {
		f := newLifecycleFixture(s1, s2)
		poll := f.create(t, twoOptions(30))

		_, err := f.life.RecordAnswer(s1, 0)
		require.NoError(t, err)
		outcome, err := f.life.RecordAnswer(s2, 1)
		require.NoError(t, err)

		require.NotNil(t, outcome.Closed)
		assert.Equal(t, poll.ID, outcome.Closed.ID)
		assert.Equal(t, domain.CloseReasonAllAnswered, outcome.Closed.Reason)
		assert.Equal(t, 2, outcome.Closed.TotalVotes)
		assert.Nil(t, f.life.Current())
		assert.Zero(t, f.clock.pending(), "timer is stopped on early close")
		require.Len(t, f.archiver.polls, 1)
	})

	t.Run("Without students the poll never auto closes on answers", func(t *testing.T) {
		f := newLifecycleFixture()
		f.create(t, twoOptions(30))

		outcome, err := f.life.RecordAnswer(uuid.New(), 0)
		require.NoError(t, err)
		assert.Nil(t, outcome.Closed)
	})
}

func TestLifecycleClose(t *testing.T) {
	s1, s2 := uuid.New(), uuid.New()

	t.Run("Timer closes with expired", func(t *testing.T) {
		f := newLifecycleFixture(s1, s2)
		correct := 0
		input := twoOptions(10)
		input.CorrectOptionIndex = &correct
		poll := f.create(t, input)

		f.clock.Advance(2 * time.Second)
		_, err := f.life.RecordAnswer(s1, 0)
		require.NoError(t, err)

		f.clock.Advance(8 * time.Second)
		assert.Equal(t, []uuid.UUID{poll.ID}, f.expired)
		assert.Nil(t, f.life.Current())

		require.Len(t, f.archiver.polls, 1)
		record := f.archiver.polls[0]
		assert.Equal(t, domain.CloseReasonExpired, record.Reason)
		assert.Equal(t, testEpoch.Add(10*time.Second), record.EndedAt)
		assert.Equal(t, []domain.ArchivedOption{
			{Text: "A", Votes: 1, Percentage: 100},
			{Text: "B", Votes: 0, Percentage: 0},
		}, record.Options)
		require.NotNil(t, record.CorrectOptionIndex)
		assert.Equal(t, 0, *record.CorrectOptionIndex)
	})

	t.Run("Stale timer is a no-op", func(t *testing.T) {
		f := newLifecycleFixture(s1)
		first := f.create(t, twoOptions(10))

		_, ok := f.life.Close(first.ID, domain.CloseReasonManual)
		require.True(t, ok)
		second := f.create(t, twoOptions(20))

		// A timer that raced its Stop fires for the first poll.
		f.onExpire(first.ID)

		current := f.life.Current()
		require.NotNil(t, current)
		assert.Equal(t, second.ID, current.ID)
		assert.Len(t, f.archiver.polls, 1)
	})

	t.Run("Closing twice reports false", func(t *testing.T) {
		f := newLifecycleFixture()
		poll := f.create(t, twoOptions(10))

		record, ok := f.life.Close(poll.ID, domain.CloseReasonTeacherLeft)
		require.True(t, ok)
		assert.Equal(t, 0, record.TotalVotes)
		assert.Equal(t, []int{0, 0}, []int{record.Options[0].Percentage, record.Options[1].Percentage})

		_, ok = f.life.Close(poll.ID, domain.CloseReasonManual)
		assert.False(t, ok)
		assert.Len(t, f.archiver.polls, 1)
	})
}
