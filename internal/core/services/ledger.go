package services

import (
	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

// answerLedger holds who answered the active poll and the per-option counts.
// A participant is counted at most once; counts only ever grow.
type answerLedger struct {
	votes    []int
	answered map[uuid.UUID]int
}

func newAnswerLedger(options int) *answerLedger {
	return &answerLedger{
		votes:    make([]int, options),
		answered: make(map[uuid.UUID]int),
	}
}

func (l *answerLedger) hasAnswered(participantID uuid.UUID) bool {
	_, ok := l.answered[participantID]
	return ok
}

func (l *answerLedger) record(participantID uuid.UUID, optionIndex int) error {
	if l.hasAnswered(participantID) {
		return domain.ErrAlreadyAnswered
	}
	if optionIndex < 0 || optionIndex >= len(l.votes) {
		return domain.ErrInvalidOption
	}
	l.answered[participantID] = optionIndex
	l.votes[optionIndex]++
	return nil
}

func (l *answerLedger) count(optionIndex int) int {
	return l.votes[optionIndex]
}

func (l *answerLedger) answeredCount() int {
	return len(l.answered)
}

func (l *answerLedger) total() int {
	total := 0
	for _, v := range l.votes {
		total += v
	}
	return total
}

// percentages rounds each share to a whole percent using the largest
// remainder method, so the result sums to exactly 100 whenever there is at
// least one vote. Every value is the floor or the ceiling of the exact share.
// Ties on the remainder go to the lower option index.
func percentages(votes []int) []int {
	out := make([]int, len(votes))
	total := 0
	for _, v := range votes {
		total += v
	}
	if total == 0 {
		return out
	}

	remainders := make([]int, len(votes))
	assigned := 0
	for i, v := range votes {
		out[i] = v * 100 / total
		remainders[i] = v * 100 % total
		assigned += out[i]
	}

	for left := 100 - assigned; left > 0; left-- {
		best := -1
		for i, r := range remainders {
			if r > 0 && (best == -1 || r > remainders[best]) {
				best = i
			}
		}
		if best == -1 {
			break
		}
		out[best]++
		remainders[best] = 0
	}
	return out
}
