package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/metrics"
)

const (
	kickedReason     = "removed from the session by the teacher"
	supersededReason = "session resumed from another connection"
)

// Archive is what the coordinator needs from ArchiveWriter.
type Archive interface {
	Archiver
	ArchiveMessage(msg *domain.ChatMessage)
	Wait(ctx context.Context) error
}

// SessionCoordinator applies intents from the transport to the registry and
// the poll lifecycle and emits the resulting events. A single mutex
// serializes every intent and every timer firing.
type SessionCoordinator struct {
	mu        sync.Mutex
	registry  *ParticipantRegistry
	lifecycle *PollLifecycle
	emitter   ports.Emitter
	archive   Archive
	clock     ports.Clock
	log       logrus.FieldLogger
	closed    bool
}

func NewSessionCoordinator(emitter ports.Emitter, archive Archive, clock ports.Clock, defaultDuration time.Duration, log logrus.FieldLogger) *SessionCoordinator {
	if clock == nil {
		clock = SystemClock()
	}
	registry := NewParticipantRegistry(clock.Now)
	return &SessionCoordinator{
		registry:  registry,
		lifecycle: NewPollLifecycle(clock, registry, archive, defaultDuration),
		emitter:   emitter,
		archive:   archive,
		clock:     clock,
		log:       log,
	}
}

func (c *SessionCoordinator) Join(connID string, input ports.JoinInput) (p *domain.Participant, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.guard(connID, domain.IntentJoin, &err)

	p, superseded := c.registry.Join(connID, input.ReconnectToken, input.DisplayName)
	if superseded != "" {
		c.emitter.Send(superseded, domain.Event{Name: domain.EventKicked, Payload: domain.KickedPayload{Reason: supersededReason}})
		c.emitter.Disconnect(superseded, supersededReason)
	}

	c.emitter.Send(connID, domain.Event{
		Name: domain.EventRoleAssigned,
		Payload: domain.RoleAssignedPayload{
			Role:           p.Role,
			ParticipantID:  p.ID.String(),
			ReconnectToken: p.ReconnectToken,
		},
	})

	if poll := c.lifecycle.Current(); poll != nil {
		canAnswer := p.Role == domain.RoleStudent && c.lifecycle.AcceptingAnswers() && !c.lifecycle.HasAnswered(p.ID)
		c.emitter.Send(connID, domain.NewPollStartedEvent(poll))
		c.emitter.Send(connID, domain.NewPollUpdateEvent(poll, canAnswer, c.clock.Now()))
	}

	c.broadcastRoster()
	c.log.WithFields(logrus.Fields{
		"participant_id": p.ID,
		"conn_id":        connID,
		"role":           p.Role,
	}).Info("participant joined")
	return p, nil
}

func (c *SessionCoordinator) CreatePoll(connID string, input ports.CreatePollInput) (poll *domain.Poll, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.guard(connID, domain.IntentCreatePoll, &err)

	if c.closed {
		return nil, c.reject(connID, domain.IntentCreatePoll, fmt.Errorf("%w: session is shutting down", domain.ErrInternal))
	}
	actor, err := c.requireRole(connID, domain.RoleTeacher)
	if err != nil {
		return nil, c.reject(connID, domain.IntentCreatePoll, err)
	}

	poll, err = c.lifecycle.Create(input, c.expire)
	if err != nil {
		return nil, c.reject(connID, domain.IntentCreatePoll, err)
	}

	metrics.PollsCreated.Inc()
	c.emitter.Broadcast(domain.NewPollStartedEvent(poll))
	c.log.WithFields(logrus.Fields{
		"poll_id":  poll.ID,
		"teacher":  actor.ID,
		"options":  len(poll.Options),
		"end_time": poll.EndTime,
	}).Info("poll started")
	return poll, nil
}

func (c *SessionCoordinator) SubmitAnswer(connID string, optionIndex int) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.guard(connID, domain.IntentSubmitAnswer, &err)

	actor, err := c.requireRole(connID, domain.RoleStudent)
	if err != nil {
		return c.reject(connID, domain.IntentSubmitAnswer, err)
	}

	outcome, err := c.lifecycle.RecordAnswer(actor.ID, optionIndex)
	if err != nil {
		metrics.Answers.WithLabelValues(domain.ErrorKind(err)).Inc()
		return c.reject(connID, domain.IntentSubmitAnswer, err)
	}
	metrics.Answers.WithLabelValues("accepted").Inc()

	canAnswer := outcome.Closed == nil && c.lifecycle.AcceptingAnswers()
	if outcome.Closed != nil {
		outcome.Poll.Status = domain.PollStatusEnded
	}
	c.emitter.Broadcast(domain.NewPollUpdateEvent(outcome.Poll, canAnswer, c.clock.Now()))

	if outcome.Closed != nil {
		c.announceClosed(outcome.Closed)
	}
	return nil
}

func (c *SessionCoordinator) EndPoll(connID string) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.guard(connID, domain.IntentEndPoll, &err)

	if _, err := c.requireRole(connID, domain.RoleTeacher); err != nil {
		return c.reject(connID, domain.IntentEndPoll, err)
	}

	current := c.lifecycle.Current()
	if current == nil {
		return c.reject(connID, domain.IntentEndPoll, domain.ErrNoActivePoll)
	}
	if record, ok := c.lifecycle.Close(current.ID, domain.CloseReasonManual); ok {
		c.announceClosed(record)
	}
	return nil
}

func (c *SessionCoordinator) KickStudent(connID string, participantID string) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.guard(connID, domain.IntentKickStudent, &err)

	actor, err := c.requireRole(connID, domain.RoleTeacher)
	if err != nil {
		return c.reject(connID, domain.IntentKickStudent, err)
	}

	id, err := uuid.Parse(participantID)
	if err != nil {
		return c.reject(connID, domain.IntentKickStudent, fmt.Errorf("%w: %q", domain.ErrNotFound, participantID))
	}
	target, ok := c.registry.Get(id)
	if !ok {
		return c.reject(connID, domain.IntentKickStudent, domain.ErrNotFound)
	}
	if target.Role != domain.RoleStudent {
		return c.reject(connID, domain.IntentKickStudent, fmt.Errorf("%w: only students can be kicked", domain.ErrUnauthorized))
	}

	if _, err := c.registry.Remove(id); err != nil {
		return c.reject(connID, domain.IntentKickStudent, err)
	}
	if target.Connected && target.ConnectionID != "" {
		c.emitter.Send(target.ConnectionID, domain.Event{Name: domain.EventKicked, Payload: domain.KickedPayload{Reason: kickedReason}})
		c.emitter.Disconnect(target.ConnectionID, kickedReason)
	}

	c.broadcastRoster()
	c.log.WithFields(logrus.Fields{"participant_id": id, "by": actor.ID}).Info("student kicked")
	return nil
}

func (c *SessionCoordinator) SendMessage(connID string, text string) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.guard(connID, domain.IntentSendMessage, &err)

	actor, err := c.registry.ByConnection(connID)
	if err != nil {
		return c.reject(connID, domain.IntentSendMessage, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return c.reject(connID, domain.IntentSendMessage, fmt.Errorf("%w: message text is required", domain.ErrInvalidInput))
	}
	if utf8.RuneCountInString(text) > domain.MaxMessageLength {
		return c.reject(connID, domain.IntentSendMessage, fmt.Errorf("%w: message exceeds %d characters", domain.ErrInvalidInput, domain.MaxMessageLength))
	}

	msg := &domain.ChatMessage{
		ID:         uuid.New(),
		SenderID:   actor.ID,
		SenderName: actor.DisplayName,
		SenderRole: actor.Role,
		Text:       text,
		Timestamp:  c.clock.Now(),
	}
	c.archive.ArchiveMessage(msg)
	c.emitter.Broadcast(domain.NewChatMessageEvent(msg))
	return nil
}

// Disconnect handles transport loss. A departing teacher ends the active poll.
func (c *SessionCoordinator) Disconnect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.guard(connID, "disconnect", nil)

	p := c.registry.Disconnect(connID)
	if p == nil {
		return
	}

	if p.Role == domain.RoleTeacher {
		if current := c.lifecycle.Current(); current != nil {
			if record, ok := c.lifecycle.Close(current.ID, domain.CloseReasonTeacherLeft); ok {
				c.announceClosed(record)
			}
		}
	}

	c.broadcastRoster()
	c.log.WithFields(logrus.Fields{"participant_id": p.ID, "conn_id": connID, "role": p.Role}).Info("participant disconnected")
}

// Shutdown ends any running poll and waits for pending archive writes.
func (c *SessionCoordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	if current := c.lifecycle.Current(); current != nil {
		if record, ok := c.lifecycle.Close(current.ID, domain.CloseReasonShutdown); ok {
			c.announceClosed(record)
		}
	}
	c.mu.Unlock()

	return c.archive.Wait(ctx)
}

// CurrentPoll returns a snapshot of the active poll, or nil.
func (c *SessionCoordinator) CurrentPoll() *domain.Poll {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lifecycle.Current()
}

// Participants returns the connected participants.
func (c *SessionCoordinator) Participants() []domain.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.ListActive()
}

// expire runs on the timer goroutine.
func (c *SessionCoordinator) expire(pollID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.guard("", "expire", nil)

	if record, ok := c.lifecycle.Close(pollID, domain.CloseReasonExpired); ok {
		c.announceClosed(record)
	}
}

func (c *SessionCoordinator) announceClosed(record *domain.ArchivedPoll) {
	metrics.PollsClosed.WithLabelValues(string(record.Reason)).Inc()
	c.emitter.Broadcast(domain.NewPollEndedEvent(record))
	c.log.WithFields(logrus.Fields{
		"poll_id":     record.ID,
		"reason":      record.Reason,
		"total_votes": record.TotalVotes,
	}).Info("poll ended")
}

func (c *SessionCoordinator) broadcastRoster() {
	active := c.registry.ListActive()
	entries := make([]domain.RosterEntry, len(active))
	for i, p := range active {
		entries[i] = domain.RosterEntry{
			ParticipantID: p.ID.String(),
			DisplayName:   p.DisplayName,
			Role:          p.Role,
		}
	}
	c.emitter.Broadcast(domain.Event{Name: domain.EventRosterUpdate, Payload: domain.RosterUpdatePayload{Participants: entries}})

	teachers, students := c.registry.countByRole()
	metrics.ParticipantsConnected.WithLabelValues(string(domain.RoleTeacher)).Set(float64(teachers))
	metrics.ParticipantsConnected.WithLabelValues(string(domain.RoleStudent)).Set(float64(students))
}

// requireRole resolves the caller from the registry; roles carried by
// clients are never consulted.
func (c *SessionCoordinator) requireRole(connID string, role domain.Role) (*domain.Participant, error) {
	actor, err := c.registry.ByConnection(connID)
	if err != nil {
		return nil, fmt.Errorf("%w: join the session first", domain.ErrNotFound)
	}
	if actor.Role != role {
		return nil, fmt.Errorf("%w: requires the %s role", domain.ErrUnauthorized, role)
	}
	return actor, nil
}

func (c *SessionCoordinator) reject(connID string, intent domain.EventName, err error) error {
	metrics.IntentRejections.WithLabelValues(string(intent), domain.ErrorKind(err)).Inc()
	c.emitter.Send(connID, domain.NewErrorEvent(err))
	c.log.WithFields(logrus.Fields{"conn_id": connID, "intent": intent}).WithError(err).Debug("intent rejected")
	return err
}

// guard turns a panic inside an intent into a logged internal error so one
// bad frame cannot take the session down.
func (c *SessionCoordinator) guard(connID string, intent domain.EventName, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	c.log.WithFields(logrus.Fields{"conn_id": connID, "intent": intent, "panic": r}).Error("unexpected fault while handling intent")
	if connID != "" {
		c.emitter.Send(connID, domain.NewErrorEvent(domain.ErrInternal))
	}
	if errp != nil {
		*errp = domain.ErrInternal
	}
}
