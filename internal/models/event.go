package models

import "github.com/google/uuid"

// WebSocket message types
const (
	EventTranscript = "transcript"
	EventPending    = "pending"
	EventMode       = "mode"
	EventError      = "error"
	EventSpeak      = "speak"
	EventClosed     = "closed"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type TranscriptUpdate struct {
	SessionID  uuid.UUID `json:"session_id"`
	Transcript []Message `json:"transcript"`
}

type PendingUpdate struct {
	SessionID uuid.UUID `json:"session_id"`
	Pending   bool      `json:"pending"`
}

type ModeUpdate struct {
	SessionID uuid.UUID       `json:"session_id"`
	Mode      InteractionMode `json:"mode"`
}

type ErrorEvent struct {
	SessionID    uuid.UUID `json:"session_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorKind    string    `json:"error_kind"`
	ErrorMessage string    `json:"error_message"`
}

type SpeakEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Text      string    `json:"text"`
	Locale    string    `json:"locale"`
}

type ClosedEvent struct {
	SessionID uuid.UUID `json:"session_id"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
