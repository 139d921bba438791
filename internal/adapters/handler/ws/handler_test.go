package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/memory"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/services"
	"github.com/vncsmyrnk/livepoll/internal/logger"
)

type inbound struct {
	Event   domain.EventName `json:"event"`
	Payload json.RawMessage  `json:"payload"`
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	log := logger.Discard()
	hub := NewHub(log)
	archive := services.NewArchiveWriter(memory.NewPollArchive(), memory.NewMessageStore(), nil, time.Second, log)
	session := services.NewSessionCoordinator(hub, archive, nil, 0, log)

	server := httptest.NewServer(NewHandler(hub, session, DefaultOptions(), log))
	t.Cleanup(server.Close)
	return server, hub
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event domain.EventName, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "payload": payload}))
}

// expect reads frames until one named name arrives and decodes its payload.
func expect(t *testing.T, conn *websocket.Conn, name domain.EventName, payload any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg inbound
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", name)
		if msg.Event != name {
			continue
		}
		if payload != nil {
			require.NoError(t, json.Unmarshal(msg.Payload, payload))
		}
		return
	}
}

// expectRoster skips roster updates until one lists n participants.
func expectRoster(t *testing.T, conn *websocket.Conn, n int) domain.RosterUpdatePayload {
	t.Helper()
	for {
		var roster domain.RosterUpdatePayload
		expect(t, conn, domain.EventRosterUpdate, &roster)
		if len(roster.Participants) == n {
			return roster
		}
	}
}

func join(t *testing.T, conn *websocket.Conn, name string) domain.RoleAssignedPayload {
	t.Helper()
	send(t, conn, domain.IntentJoin, map[string]string{"displayName": name})
	var assigned domain.RoleAssignedPayload
	expect(t, conn, domain.EventRoleAssigned, &assigned)
	return assigned
}

func TestPollRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)
	teacher := dial(t, server)
	student := dial(t, server)

	assert.Equal(t, domain.RoleTeacher, join(t, teacher, "Teacher").Role)
	assert.Equal(t, domain.RoleStudent, join(t, student, "Bo").Role)

	send(t, teacher, domain.IntentCreatePoll, map[string]any{
		"question":        "2 + 2?",
		"options":         []string{"3", "4"},
		"durationSeconds": 30,
	})

	var started domain.PollStartedPayload
	expect(t, student, domain.EventPollStarted, &started)
	assert.Equal(t, "2 + 2?", started.Question)
	assert.Equal(t, []string{"3", "4"}, started.Options)
	assert.Equal(t, 30, started.DurationSeconds)

	send(t, student, domain.IntentSubmitAnswer, map[string]int{"optionIndex": 1})

	var ended domain.PollEndedPayload
	expect(t, teacher, domain.EventPollEnded, &ended)
	assert.Equal(t, started.PollID, ended.PollID)
	assert.Equal(t, domain.CloseReasonAllAnswered, ended.Reason)
	assert.Equal(t, 1, ended.TotalVotes)
	assert.Equal(t, []domain.OptionResult{
		{Text: "3", Votes: 0, Percentage: 0},
		{Text: "4", Votes: 1, Percentage: 100},
	}, ended.Options)
}

func TestRejectedFrames(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)

	cases := []struct {
		name  string
		frame string
		kind  string
	}{
		{"not json", `hello`, "InvalidInput"},
		{"unknown event", `{"event":"dance"}`, "InvalidInput"},
		{"bad payload", `{"event":"createPoll","payload":"nope"}`, "InvalidInput"},
		{"missing option index", `{"event":"submitAnswer","payload":{}}`, "InvalidInput"},
		{"before join", `{"event":"endPoll"}`, "NotFound"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tc.frame)))
			var payload domain.ErrorPayload
			expect(t, conn, domain.EventError, &payload)
			assert.Equal(t, tc.kind, payload.Kind)
		})
	}

	// The connection survives rejected frames.
	assert.Equal(t, domain.RoleTeacher, join(t, conn, "Teacher").Role)
}

func TestKickClosesConnection(t *testing.T) {
	server, _ := newTestServer(t)
	teacher := dial(t, server)
	student := dial(t, server)

	join(t, teacher, "Teacher")
	bo := join(t, student, "Bo")
	expectRoster(t, teacher, 2)

	send(t, teacher, domain.IntentKickStudent, map[string]string{"participantId": bo.ParticipantID})

	var kicked domain.KickedPayload
	expect(t, student, domain.EventKicked, &kicked)
	assert.NotEmpty(t, kicked.Reason)

	require.NoError(t, student.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := student.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	roster := expectRoster(t, teacher, 1)
	assert.Equal(t, "Teacher", roster.Participants[0].DisplayName)
}

func TestDisconnectUpdatesRoster(t *testing.T) {
	server, hub := newTestServer(t)
	teacher := dial(t, server)
	student := dial(t, server)

	join(t, teacher, "Teacher")
	join(t, student, "Bo")
	expectRoster(t, teacher, 2)

	require.NoError(t, student.Close())

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	roster := expectRoster(t, teacher, 1)
	assert.Equal(t, domain.RoleTeacher, roster.Participants[0].Role)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://class.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req), "requests without an origin are allowed")

	req.Header.Set("Origin", "http://class.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
