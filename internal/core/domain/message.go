package domain

import (
	"time"

	"github.com/google/uuid"
)

const MaxMessageLength = 1000

type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	SenderRole Role      `json:"sender_role"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}
