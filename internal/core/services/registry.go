package services

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

const (
	defaultDisplayName = "Guest"
	maxDisplayName     = 64
)

// ParticipantRegistry tracks who is in the session and which of them holds
// the teacher role. It is not safe for concurrent use; SessionCoordinator
// serializes access.
type ParticipantRegistry struct {
	byID     map[uuid.UUID]*domain.Participant
	byToken  map[string]uuid.UUID
	byConn   map[string]uuid.UUID
	teacher  uuid.UUID
	now      func() time.Time
	newToken func() string
}

func NewParticipantRegistry(now func() time.Time) *ParticipantRegistry {
	return &ParticipantRegistry{
		byID:     make(map[uuid.UUID]*domain.Participant),
		byToken:  make(map[string]uuid.UUID),
		byConn:   make(map[string]uuid.UUID),
		now:      now,
		newToken: func() string { return uuid.NewString() },
	}
}

// Join registers connID as participant identified by token. A known token
// reactivates the same participant id. The caller gets the teacher role when
// no connected participant holds it. superseded is the connection the
// participant was previously live on, if it differs from connID.
func (r *ParticipantRegistry) Join(connID, token, displayName string) (p *domain.Participant, superseded string) {
	name := normalizeDisplayName(displayName)
	token = strings.TrimSpace(token)

	if id, ok := r.byConn[connID]; ok {
		if cur := r.byID[id]; cur != nil && (token == "" || token == cur.ReconnectToken) {
			token = cur.ReconnectToken
		} else {
			r.Disconnect(connID)
		}
	}

	if id, ok := r.byToken[token]; ok && token != "" {
		p = r.byID[id]
		if p == nil {
			// removed by a kick; the id is kept so answers stay attributed
			p = &domain.Participant{ID: id, ReconnectToken: token, JoinedAt: r.now()}
			r.byID[id] = p
		}
		if p.ConnectionID != "" && p.ConnectionID != connID {
			superseded = p.ConnectionID
			delete(r.byConn, p.ConnectionID)
		}
	} else {
		if token == "" {
			token = r.newToken()
		}
		p = &domain.Participant{
			ID:             uuid.New(),
			ReconnectToken: token,
			JoinedAt:       r.now(),
		}
		r.byID[p.ID] = p
		r.byToken[token] = p.ID
	}

	p.ConnectionID = connID
	p.DisplayName = name
	p.Connected = true
	r.byConn[connID] = p.ID

	if r.teacher == uuid.Nil || r.teacher == p.ID {
		r.teacher = p.ID
		p.Role = domain.RoleTeacher
	} else {
		p.Role = domain.RoleStudent
	}

	snapshot := *p
	return &snapshot, superseded
}

// Disconnect marks the participant bound to connID as gone. It returns the
// participant as it was, or nil when the connection was never bound (or was
// rebound to a newer connection).
func (r *ParticipantRegistry) Disconnect(connID string) *domain.Participant {
	id, ok := r.byConn[connID]
	if !ok {
		return nil
	}
	delete(r.byConn, connID)

	p := r.byID[id]
	if p == nil {
		return nil
	}
	p.Connected = false
	p.ConnectionID = ""
	if r.teacher == id {
		r.teacher = uuid.Nil
	}

	snapshot := *p
	return &snapshot
}

// Remove hard-deletes a participant. The token mapping survives so a rejoin
// with the same token maps back to the same id.
func (r *ParticipantRegistry) Remove(participantID uuid.UUID) (*domain.Participant, error) {
	p, ok := r.byID[participantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(r.byID, participantID)
	if p.ConnectionID != "" {
		delete(r.byConn, p.ConnectionID)
	}
	if r.teacher == participantID {
		r.teacher = uuid.Nil
	}

	snapshot := *p
	return &snapshot, nil
}

func (r *ParticipantRegistry) RoleOf(participantID uuid.UUID) (domain.Role, error) {
	p, ok := r.byID[participantID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p.Role, nil
}

func (r *ParticipantRegistry) Get(participantID uuid.UUID) (*domain.Participant, bool) {
	p, ok := r.byID[participantID]
	if !ok {
		return nil, false
	}
	snapshot := *p
	return &snapshot, true
}

// ByConnection resolves the live participant behind a transport connection.
func (r *ParticipantRegistry) ByConnection(connID string) (*domain.Participant, error) {
	id, ok := r.byConn[connID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	snapshot := *p
	return &snapshot, nil
}

// ListActive returns connected participants, ordered by join time.
func (r *ParticipantRegistry) ListActive() []domain.Participant {
	active := make([]domain.Participant, 0, len(r.byConn))
	for _, p := range r.byID {
		if p.Connected {
			active = append(active, *p)
		}
	}
	sortByJoinTime(active)
	return active
}

// ActiveStudentIDs lists connected students; PollLifecycle uses it to decide
// whether everyone has answered.
func (r *ParticipantRegistry) ActiveStudentIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.byConn))
	for _, p := range r.byID {
		if p.Connected && p.Role == domain.RoleStudent {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (r *ParticipantRegistry) HasTeacher() bool {
	return r.teacher != uuid.Nil
}

func (r *ParticipantRegistry) countByRole() (teachers, students int) {
	for _, p := range r.byID {
		if !p.Connected {
			continue
		}
		if p.Role == domain.RoleTeacher {
			teachers++
		} else {
			students++
		}
	}
	return teachers, students
}

func sortByJoinTime(ps []domain.Participant) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
			return ps[i].ID.String() < ps[j].ID.String()
		}
		return ps[i].JoinedAt.Before(ps[j].JoinedAt)
	})
}

func normalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultDisplayName
	}
	if utf8.RuneCountInString(name) > maxDisplayName {
		name = string([]rune(name)[:maxDisplayName])
	}
	return name
}
