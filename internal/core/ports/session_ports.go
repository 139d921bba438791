package ports

import (
	"context"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

// Emitter delivers outbound events. Implementations must not block: the
// coordinator calls them while holding its state lock.
type Emitter interface {
	Send(connID string, event domain.Event)
	Broadcast(event domain.Event)
	Disconnect(connID string, reason string)
}

type JoinInput struct {
	DisplayName    string
	ReconnectToken string
}

// SessionService is the inbound surface used by the transport layer.
// connID identifies the transport connection the intent arrived on.
type SessionService interface {
	Join(connID string, input JoinInput) (*domain.Participant, error)
	CreatePoll(connID string, input CreatePollInput) (*domain.Poll, error)
	SubmitAnswer(connID string, optionIndex int) error
	EndPoll(connID string) error
	KickStudent(connID string, participantID string) error
	SendMessage(connID string, text string) error
	Disconnect(connID string)
	Shutdown(ctx context.Context) error
}
