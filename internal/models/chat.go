package models

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// InteractionMode controls whether assistant replies are also spoken aloud.
type InteractionMode string

const (
	ModeText  InteractionMode = "text"  // silent
	ModeVoice InteractionMode = "voice" // spoken
)

func (m InteractionMode) Valid() bool {
	return m == ModeText || m == ModeVoice
}

// ChatRequest is the payload sent to the messages endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is returned after a successful exchange.
type ChatResponse struct {
	Reply   string          `json:"reply"`
	Session SessionSnapshot `json:"session"`
}

type ModeRequest struct {
	Mode InteractionMode `json:"mode"`
}
