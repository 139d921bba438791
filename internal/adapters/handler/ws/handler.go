// Package ws carries session intents and events over WebSocket connections.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/metrics"
)

type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:     64,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 16 * 1024,
		AllowedOrigins: []string{"*"},
	}
}

type Handler struct {
	hub      *Hub
	service  ports.SessionService
	upgrader websocket.Upgrader
	opts     Options
	log      logrus.FieldLogger
}

func NewHandler(hub *Hub, service ports.SessionService, opts Options, log logrus.FieldLogger) *Handler {
	defaults := DefaultOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaults.SendBuffer
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaults.WriteWait
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaults.PongWait
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.PongWait {
		opts.PingInterval = opts.PongWait * 9 / 10
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaults.MaxMessageSize
	}

	return &Handler{
		hub:     hub,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		opts: opts,
		log:  log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	client := newClient(connID, conn, h.opts, h.log)
	h.hub.register(client)
	go client.writePump()

	defer func() {
		h.hub.unregister(connID)
		client.shutdown()
		h.service.Disconnect(connID)
	}()

	conn.SetReadLimit(h.opts.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				client.log.WithError(err).Debug("read error")
			}
			return
		}
		metrics.MessagesReceived.Inc()
		conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		h.dispatch(connID, data)
	}
}

type envelope struct {
	Event   domain.EventName `json:"event"`
	Payload json.RawMessage  `json:"payload"`
}

type joinRequest struct {
	DisplayName    string `json:"displayName"`
	ReconnectToken string `json:"reconnectToken"`
}

type createPollRequest struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	DurationSeconds    int      `json:"durationSeconds"`
	CorrectOptionIndex *int     `json:"correctOptionIndex"`
}

type submitAnswerRequest struct {
	OptionIndex *int `json:"optionIndex"`
}

type kickStudentRequest struct {
	ParticipantID string `json:"participantId"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// dispatch decodes one frame and hands it to the session. Rejections are
// reported to the client by the session itself.
func (h *Handler) dispatch(connID string, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.invalid(connID, "malformed frame")
		return
	}

	var err error
	switch env.Event {
	case domain.IntentJoin:
		var req joinRequest
		if !h.decode(connID, env, &req) {
			return
		}
		_, err = h.service.Join(connID, ports.JoinInput{DisplayName: req.DisplayName, ReconnectToken: req.ReconnectToken})

	case domain.IntentCreatePoll:
		var req createPollRequest
		if !h.decode(connID, env, &req) {
			return
		}
		_, err = h.service.CreatePoll(connID, ports.CreatePollInput{
			Question:           req.Question,
			Options:            req.Options,
			DurationSeconds:    req.DurationSeconds,
			CorrectOptionIndex: req.CorrectOptionIndex,
		})

	case domain.IntentSubmitAnswer:
		var req submitAnswerRequest
		if !h.decode(connID, env, &req) {
			return
		}
		if req.OptionIndex == nil {
			h.invalid(connID, "optionIndex is required")
			return
		}
		err = h.service.SubmitAnswer(connID, *req.OptionIndex)

	case domain.IntentEndPoll:
		err = h.service.EndPoll(connID)

	case domain.IntentKickStudent:
		var req kickStudentRequest
		if !h.decode(connID, env, &req) {
			return
		}
		err = h.service.KickStudent(connID, req.ParticipantID)

	case domain.IntentSendMessage:
		var req sendMessageRequest
		if !h.decode(connID, env, &req) {
			return
		}
		err = h.service.SendMessage(connID, req.Text)

	default:
		h.invalid(connID, fmt.Sprintf("unknown event %q", env.Event))
		return
	}

	if err != nil {
		h.log.WithFields(logrus.Fields{"conn_id": connID, "event": env.Event}).WithError(err).Debug("intent rejected")
	}
}

func (h *Handler) decode(connID string, env envelope, v any) bool {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return true
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		h.invalid(connID, fmt.Sprintf("malformed %s payload", env.Event))
		return false
	}
	return true
}

func (h *Handler) invalid(connID, msg string) {
	h.hub.Send(connID, domain.NewErrorEvent(fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
