package domain

import "time"

type EventName string

// Inbound intents.
const (
	IntentJoin         EventName = "join"
	IntentCreatePoll   EventName = "createPoll"
	IntentSubmitAnswer EventName = "submitAnswer"
	IntentEndPoll      EventName = "endPoll"
	IntentKickStudent  EventName = "kickStudent"
	IntentSendMessage  EventName = "sendMessage"
)

// Outbound events.
const (
	EventRoleAssigned EventName = "roleAssigned"
	EventRosterUpdate EventName = "rosterUpdate"
	EventPollStarted  EventName = "pollStarted"
	EventPollUpdate   EventName = "pollUpdate"
	EventPollEnded    EventName = "pollEnded"
	EventChatMessage  EventName = "chatMessage"
	EventKicked       EventName = "kicked"
	EventError        EventName = "error"
)

// Event is one outbound frame. Payload is one of the *Payload types below.
type Event struct {
	Name    EventName `json:"event"`
	Payload any       `json:"payload"`
}

type RoleAssignedPayload struct {
	Role           Role   `json:"role"`
	ParticipantID  string `json:"participantId"`
	ReconnectToken string `json:"reconnectToken"`
}

type RosterEntry struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Role          Role   `json:"role"`
}

type RosterUpdatePayload struct {
	Participants []RosterEntry `json:"participants"`
}

type PollStartedPayload struct {
	PollID          string    `json:"pollId"`
	Question        string    `json:"question"`
	Options         []string  `json:"options"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds int       `json:"durationSeconds"`
}

type OptionTally struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

type PollUpdatePayload struct {
	PollID          string        `json:"pollId"`
	Options         []OptionTally `json:"options"`
	TotalVotes      int           `json:"totalVotes"`
	CanAnswer       bool          `json:"canAnswer"`
	TimeRemainingMs int64         `json:"timeRemainingMs"`
}

type OptionResult struct {
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}

type PollEndedPayload struct {
	PollID             string         `json:"pollId"`
	Question           string         `json:"question"`
	Options            []OptionResult `json:"options"`
	TotalVotes         int            `json:"totalVotes"`
	CorrectOptionIndex *int           `json:"correctOptionIndex,omitempty"`
	Reason             CloseReason    `json:"reason"`
}

type ChatMessagePayload struct {
	ID         string    `json:"id"`
	SenderName string    `json:"senderName"`
	SenderRole Role      `json:"senderRole"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

type KickedPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewErrorEvent builds the error frame reported to the originating connection.
func NewErrorEvent(err error) Event {
	return Event{
		Name: EventError,
		Payload: ErrorPayload{
			Kind:    ErrorKind(err),
			Message: err.Error(),
		},
	}
}

func NewPollStartedEvent(p *Poll) Event {
	texts := make([]string, len(p.Options))
	for i, opt := range p.Options {
		texts[i] = opt.Text
	}
	return Event{
		Name: EventPollStarted,
		Payload: PollStartedPayload{
			PollID:          p.ID.String(),
			Question:        p.Question,
			Options:         texts,
			EndTime:         p.EndTime,
			DurationSeconds: int(p.Duration / time.Second),
		},
	}
}

func NewPollUpdateEvent(p *Poll, canAnswer bool, now time.Time) Event {
	tallies := make([]OptionTally, len(p.Options))
	for i, opt := range p.Options {
		tallies[i] = OptionTally{Text: opt.Text, Votes: opt.Votes}
	}
	return Event{
		Name: EventPollUpdate,
		Payload: PollUpdatePayload{
			PollID:          p.ID.String(),
			Options:         tallies,
			TotalVotes:      p.TotalVotes(),
			CanAnswer:       canAnswer,
			TimeRemainingMs: p.TimeRemaining(now).Milliseconds(),
		},
	}
}

func NewPollEndedEvent(a *ArchivedPoll) Event {
	results := make([]OptionResult, len(a.Options))
	for i, opt := range a.Options {
		results[i] = OptionResult{Text: opt.Text, Votes: opt.Votes, Percentage: opt.Percentage}
	}
	return Event{
		Name: EventPollEnded,
		Payload: PollEndedPayload{
			PollID:             a.ID.String(),
			Question:           a.Question,
			Options:            results,
			TotalVotes:         a.TotalVotes,
			CorrectOptionIndex: a.CorrectOptionIndex,
			Reason:             a.Reason,
		},
	}
}

func NewChatMessageEvent(m *ChatMessage) Event {
	return Event{
		Name: EventChatMessage,
		Payload: ChatMessagePayload{
			ID:         m.ID.String(),
			SenderName: m.SenderName,
			SenderRole: m.SenderRole,
			Text:       m.Text,
			Timestamp:  m.Timestamp,
		},
	}
}
