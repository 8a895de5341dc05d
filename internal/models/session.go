package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionSnapshot is a point-in-time copy of a conversation session.
type SessionSnapshot struct {
	ID         uuid.UUID       `json:"id"`
	Transcript []Message       `json:"transcript"`
	Mode       InteractionMode `json:"mode"`
	Pending    bool            `json:"pending"`
	CreatedAt  time.Time       `json:"created_at"`
}

type CreateSessionResponse struct {
	Session SessionSnapshot `json:"session"`
	Token   string          `json:"token"`
}
