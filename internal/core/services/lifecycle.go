package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const DefaultPollDuration = 60 * time.Second

// StudentRoster reports the students currently connected.
type StudentRoster interface {
	ActiveStudentIDs() []uuid.UUID
}

// Archiver receives every poll that leaves the active state. Archive must
// return without waiting on storage.
type Archiver interface {
	ArchivePoll(poll *domain.ArchivedPoll)
}

// PollLifecycle owns the single active poll: NoActivePoll -> Active -> Ended
// -> NoActivePoll. It relies on the caller for mutual exclusion; the
// expire callback passed to Create is invoked from the timer goroutine and
// must re-enter through the same lock before calling Close.
type PollLifecycle struct {
	clock           ports.Clock
	roster          StudentRoster
	archiver        Archiver
	defaultDuration time.Duration

	active *domain.Poll
	ledger *answerLedger
	timer  ports.Timer
}

func NewPollLifecycle(clock ports.Clock, roster StudentRoster, archiver Archiver, defaultDuration time.Duration) *PollLifecycle {
	if defaultDuration <= 0 {
		defaultDuration = DefaultPollDuration
	}
	return &PollLifecycle{
		clock:           clock,
		roster:          roster,
		archiver:        archiver,
		defaultDuration: defaultDuration,
	}
}

// AnswerOutcome is the result of an accepted answer. Closed is set when the
// answer completed the roster and the poll closed on the spot.
type AnswerOutcome struct {
	Poll   *domain.Poll
	Closed *domain.ArchivedPoll
}

// Create starts a poll and schedules onExpire(pollID) at its end time.
func (l *PollLifecycle) Create(input ports.CreatePollInput, onExpire func(pollID uuid.UUID)) (*domain.Poll, error) {
	if l.active != nil {
		return nil, domain.ErrAlreadyActive
	}

	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	if len(input.Options) < domain.MinPollOptions || len(input.Options) > domain.MaxPollOptions {
		return nil, fmt.Errorf("%w: a poll needs between %d and %d options", domain.ErrInvalidInput, domain.MinPollOptions, domain.MaxPollOptions)
	}
	options := make([]domain.PollOption, 0, len(input.Options))
	for i, text := range input.Options {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("%w: option %d is empty", domain.ErrInvalidInput, i+1)
		}
		options = append(options, domain.PollOption{Text: text})
	}

	duration := l.defaultDuration
	if input.DurationSeconds != 0 {
		duration = time.Duration(input.DurationSeconds) * time.Second
	}
	if duration < domain.MinPollDuration || duration > domain.MaxPollDuration {
		return nil, fmt.Errorf("%w: duration must be between %d and %d seconds", domain.ErrInvalidInput,
			int(domain.MinPollDuration/time.Second), int(domain.MaxPollDuration/time.Second))
	}

	var correct *int
	if input.CorrectOptionIndex != nil {
		idx := *input.CorrectOptionIndex
		if idx < 0 || idx >= len(options) {
			return nil, fmt.Errorf("%w: correct option index out of range", domain.ErrInvalidInput)
		}
		correct = &idx
	}

	now := l.clock.Now()
	poll := &domain.Poll{
		ID:                 uuid.New(),
		Question:           question,
		Options:            options,
		Status:             domain.PollStatusActive,
		CreatedAt:          now,
		EndTime:            now.Add(duration),
		Duration:           duration,
		CorrectOptionIndex: correct,
	}

	l.active = poll
	l.ledger = newAnswerLedger(len(options))

	pollID := poll.ID
	l.timer = l.clock.AfterFunc(duration, func() { onExpire(pollID) })

	return l.snapshot(), nil
}

// RecordAnswer counts one answer from participantID.
func (l *PollLifecycle) RecordAnswer(participantID uuid.UUID, optionIndex int) (*AnswerOutcome, error) {
	if l.active == nil {
		return nil, domain.ErrNoActivePoll
	}
	if l.ledger.hasAnswered(participantID) {
		return nil, domain.ErrAlreadyAnswered
	}
	if l.clock.Now().After(l.active.EndTime) {
		return nil, domain.ErrTimeExpired
	}
	if err := l.ledger.record(participantID, optionIndex); err != nil {
		return nil, err
	}

	outcome := &AnswerOutcome{Poll: l.snapshot()}
	if l.everyoneAnswered() {
		outcome.Closed, _ = l.Close(l.active.ID, domain.CloseReasonAllAnswered)
	}
	return outcome, nil
}

// Close ends the poll identified by pollID. It reports false when that poll
// is not the active one, which is how stale timers are ignored.
func (l *PollLifecycle) Close(pollID uuid.UUID, reason domain.CloseReason) (*domain.ArchivedPoll, bool) {
	if l.active == nil || l.active.ID != pollID {
		return nil, false
	}
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}

	poll := l.active
	poll.Status = domain.PollStatusEnded

	votes := make([]int, len(poll.Options))
	for i := range poll.Options {
		votes[i] = l.ledger.count(i)
	}
	shares := percentages(votes)

	record := &domain.ArchivedPoll{
		ID:                 poll.ID,
		Question:           poll.Question,
		Options:            make([]domain.ArchivedOption, len(poll.Options)),
		TotalVotes:         l.ledger.total(),
		CorrectOptionIndex: poll.CorrectOptionIndex,
		CreatedAt:          poll.CreatedAt,
		EndTime:            poll.EndTime,
		EndedAt:            l.clock.Now(),
		Reason:             reason,
	}
	for i, opt := range poll.Options {
		record.Options[i] = domain.ArchivedOption{Text: opt.Text, Votes: votes[i], Percentage: shares[i]}
	}

	l.active = nil
	l.ledger = nil

	if l.archiver != nil {
		l.archiver.ArchivePoll(record)
	}
	return record, true
}

// Current returns a copy of the active poll, or nil.
func (l *PollLifecycle) Current() *domain.Poll {
	if l.active == nil {
		return nil
	}
	return l.snapshot()
}

// HasAnswered reports whether participantID answered the active poll.
func (l *PollLifecycle) HasAnswered(participantID uuid.UUID) bool {
	return l.active != nil && l.ledger.hasAnswered(participantID)
}

// AcceptingAnswers is true while the poll is active and its window is open.
func (l *PollLifecycle) AcceptingAnswers() bool {
	return l.active != nil && !l.clock.Now().After(l.active.EndTime)
}

func (l *PollLifecycle) everyoneAnswered() bool {
	students := l.roster.ActiveStudentIDs()
	if len(students) == 0 {
		return false
	}
	for _, id := range students {
		if !l.ledger.hasAnswered(id) {
			return false
		}
	}
	return true
}

func (l *PollLifecycle) snapshot() *domain.Poll {
	p := *l.active
	p.Options = make([]domain.PollOption, len(l.active.Options))
	for i, opt := range l.active.Options {
		p.Options[i] = domain.PollOption{Text: opt.Text, Votes: l.ledger.count(i)}
	}
	p.AnsweredCount = l.ledger.answeredCount()
	return &p
}
