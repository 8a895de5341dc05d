package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ExchangeSucceeded = "succeeded"
	ExchangeFailed    = "failed"
)

// Exchange is the metadata of one generation round trip. Message text is never stored.
type Exchange struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	Status      string    `json:"status"` // "succeeded" | "failed"
	ErrorKind   *string   `json:"error_kind"`
	PromptChars int       `json:"prompt_chars"`
	ReplyChars  int       `json:"reply_chars"`
	LatencyMS   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
