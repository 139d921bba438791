package domain

import (
	"time"

	"github.com/google/uuid"
)

type PollStatus string

const (
	PollStatusActive PollStatus = "active"
	PollStatusEnded  PollStatus = "ended"
)

const (
	MinPollOptions = 2
	MaxPollOptions = 6

	MinPollDuration = 10 * time.Second
	MaxPollDuration = 300 * time.Second
)

// CloseReason records why a poll left the active state.
type CloseReason string

const (
	CloseReasonExpired     CloseReason = "expired"
	CloseReasonManual      CloseReason = "manual"
	CloseReasonAllAnswered CloseReason = "all_answered"
	CloseReasonTeacherLeft CloseReason = "teacher_left"
	CloseReasonShutdown    CloseReason = "shutdown"
)

type Poll struct {
	ID                 uuid.UUID     `json:"id"`
	Question           string        `json:"question"`
	Options            []PollOption  `json:"options"`
	Status             PollStatus    `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	EndTime            time.Time     `json:"end_time"`
	Duration           time.Duration `json:"-"`
	CorrectOptionIndex *int          `json:"correct_option_index,omitempty"`
	AnsweredCount      int           `json:"answered_count"`
}

type PollOption struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

func (p *Poll) IsActive() bool {
	return p.Status == PollStatusActive
}

// TotalVotes sums the option counters.
func (p *Poll) TotalVotes() int {
	total := 0
	for _, opt := range p.Options {
		total += opt.Votes
	}
	return total
}

// TimeRemaining is clamped at zero once the end time has passed.
func (p *Poll) TimeRemaining(now time.Time) time.Duration {
	if !p.IsActive() {
		return 0
	}
	d := p.EndTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ArchivedPoll is the immutable record written when a poll ends.
type ArchivedPoll struct {
	ID                 uuid.UUID        `json:"id"`
	Question           string           `json:"question"`
	Options            []ArchivedOption `json:"options"`
	TotalVotes         int              `json:"total_votes"`
	CorrectOptionIndex *int             `json:"correct_option_index,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	EndTime            time.Time        `json:"end_time"`
	EndedAt            time.Time        `json:"ended_at"`
	Reason             CloseReason      `json:"reason"`
}

type ArchivedOption struct {
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}
