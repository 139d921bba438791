package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

type Participant struct {
	ID             uuid.UUID `json:"id"`
	ConnectionID   string    `json:"-"`
	ReconnectToken string    `json:"-"`
	DisplayName    string    `json:"display_name"`
	Role           Role      `json:"role"`
	Connected      bool      `json:"connected"`
	JoinedAt       time.Time `json:"joined_at"`
}

func (p *Participant) IsTeacher() bool {
	return p.Role == RoleTeacher
}
