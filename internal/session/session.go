package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatbot-backend/internal/models"
)

const DefaultLocale = "en-US"

// Generator produces a reply for a single prompt. One request, one response.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Speaker reads text aloud. The session never waits on it.
type Speaker interface {
	Speak(ctx context.Context, text, locale string) error
}

// Publisher fans session events out to whoever renders the session.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage)
}

// Recorder stores exchange metadata.
type Recorder interface {
	RecordExchange(ctx context.Context, ex *models.Exchange) error
}

// Options holds the optional collaborators of a Session.
type Options struct {
	Speaker   Speaker
	Publisher Publisher
	Recorder  Recorder
	Locale    string
	Clock     func() time.Time
}

// Outcome describes what a call to Submit did.
type Outcome int

const (
	OutcomeAppended Outcome = iota
	OutcomeEmpty
	OutcomeBusy
	OutcomeFailed
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppended:
		return "appended"
	case OutcomeEmpty:
		return "empty"
	case OutcomeBusy:
		return "busy"
	case OutcomeFailed:
		return "failed"
	case OutcomeClosed:
		return "closed"
	}
	return "unknown"
}

// Result is returned by Submit. Err is set only for OutcomeFailed.
type Result struct {
	Outcome Outcome
	Reply   string
	Err     *GenerationError
}

// Session is one live conversation: an append-only transcript, the
// interaction mode and a guard that allows one generation call at a time.
type Session struct {
	id        uuid.UUID
	createdAt time.Time

	gen       Generator
	speaker   Speaker
	publisher Publisher
	recorder  Recorder
	locale    string
	clock     func() time.Time

	mu         sync.Mutex
	transcript []models.Message
	mode       models.InteractionMode
	pending    bool
	draft      string
	lastActive time.Time
	closed     bool
}

func New(id uuid.UUID, gen Generator, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	locale := opts.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	now := clock()
	return &Session{
		id:         id,
		createdAt:  now,
		gen:        gen,
		speaker:    opts.Speaker,
		publisher:  opts.Publisher,
		recorder:   opts.Recorder,
		locale:     locale,
		clock:      clock,
		transcript: []models.Message{},
		mode:       models.ModeText,
		lastActive: now,
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Submit sends input to the generator and, on success, appends the user
// message and the reply as one pair. Blank input and calls made while
// another call is in flight do nothing.
func (s *Session) Submit(ctx context.Context, input string) Result {
	if strings.TrimSpace(input) == "" {
		return Result{Outcome: OutcomeEmpty}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{Outcome: OutcomeClosed}
	}
	if s.pending {
		s.mu.Unlock()
		return Result{Outcome: OutcomeBusy}
	}
	s.pending = true
	s.lastActive = s.clock()
	s.mu.Unlock()

	s.publish(ctx, models.WSMessage{
		Type:    models.EventPending,
		Payload: models.PendingUpdate{SessionID: s.id, Pending: true},
	})

	// In-flight calls are never cancelled, even if the caller goes away.
	callCtx := context.WithoutCancel(ctx)
	start := s.clock()
	reply, err := s.generate(callCtx, input)
	latency := s.clock().Sub(start)

	s.mu.Lock()
	if err == nil {
		s.transcript = append(s.transcript,
			models.Message{Role: models.RoleUser, Text: input},
			models.Message{Role: models.RoleAssistant, Text: reply},
		)
	}
	transcript := s.copyTranscriptLocked()
	mode := s.mode
	s.pending = false
	s.draft = ""
	s.lastActive = s.clock()
	s.mu.Unlock()

	ex := &models.Exchange{
		ID:          uuid.New(),
		SessionID:   s.id,
		PromptChars: len([]rune(input)),
		LatencyMS:   latency.Milliseconds(),
	}

	var res Result
	if err != nil {
		gerr := AsGenerationError(err)
		log.Printf("Session %s: error sending message: %v", s.id, gerr)

		kind := string(gerr.Kind)
		ex.Status = models.ExchangeFailed
		ex.ErrorKind = &kind

		s.publish(callCtx, models.WSMessage{
			Type: models.EventError,
			Payload: models.ErrorEvent{
				SessionID:    s.id,
				ErrorCode:    "AI_ERROR",
				ErrorKind:    kind,
				ErrorMessage: "Failed to get AI response",
			},
		})
		res = Result{Outcome: OutcomeFailed, Err: gerr}
	} else {
		ex.Status = models.ExchangeSucceeded
		ex.ReplyChars = len([]rune(reply))

		s.publish(callCtx, models.WSMessage{
			Type:    models.EventTranscript,
			Payload: models.TranscriptUpdate{SessionID: s.id, Transcript: transcript},
		})
		if mode == models.ModeVoice {
			s.speak(reply)
		}
		res = Result{Outcome: OutcomeAppended, Reply: reply}
	}

	s.publish(callCtx, models.WSMessage{
		Type:    models.EventPending,
		Payload: models.PendingUpdate{SessionID: s.id, Pending: false},
	})
	s.record(callCtx, ex)

	return res
}

// generate calls the generator, turning a panic into a failed call so the
// pending flag is always cleared.
func (s *Session) generate(ctx context.Context, input string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply = ""
			err = NewGenerationError(KindUnknown, fmt.Errorf("generator panicked: %v", r))
		}
	}()
	return s.gen.Generate(ctx, input)
}

// SetDraft replaces the pending input buffer.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SubmitDraft submits the current draft. The draft is cleared once the
// generation call completes, whatever its result.
func (s *Session) SubmitDraft(ctx context.Context) Result {
	return s.Submit(ctx, s.Draft())
}

// Reset empties the transcript. A call already in flight is not affected
// and its pair is appended to the emptied transcript when it completes.
func (s *Session) Reset() {
	s.mu.Lock()
	s.transcript = []models.Message{}
	s.lastActive = s.clock()
	s.mu.Unlock()

	s.publish(context.Background(), models.WSMessage{
		Type:    models.EventTranscript,
		Payload: models.TranscriptUpdate{SessionID: s.id, Transcript: []models.Message{}},
	})
}

func (s *Session) SetInteractionMode(mode models.InteractionMode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}

	s.mu.Lock()
	s.mode = mode
	s.lastActive = s.clock()
	s.mu.Unlock()

	s.publish(context.Background(), models.WSMessage{
		Type:    models.EventMode,
		Payload: models.ModeUpdate{SessionID: s.id, Mode: mode},
	})
	return nil
}

func (s *Session) InteractionMode() models.InteractionMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) Transcript() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyTranscriptLocked()
}

func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionSnapshot{
		ID:         s.id,
		Transcript: s.copyTranscriptLocked(),
		Mode:       s.mode,
		Pending:    s.pending,
		CreatedAt:  s.createdAt,
	}
}

// expireIfIdle closes the session if no call is in flight and it has not
// been used for longer than ttl. The check and the close share one lock.
func (s *Session) expireIfIdle(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending || now.Sub(s.lastActive) <= ttl {
		return false
	}
	s.closed = true
	return true
}

// close makes later submissions return OutcomeClosed. A call already in
// flight still completes.
func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) copyTranscriptLocked() []models.Message {
	out := make([]models.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) publish(ctx context.Context, msg models.WSMessage) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, s.id, msg)
}

func (s *Session) publishClosed() {
	s.publish(context.Background(), models.WSMessage{
		Type:    models.EventClosed,
		Payload: models.ClosedEvent{SessionID: s.id},
	})
}

func (s *Session) speak(text string) {
	if s.speaker == nil || text == "" {
		return
	}
	go func() {
		if err := s.speaker.Speak(context.Background(), text, s.locale); err != nil {
			log.Printf("Session %s: speech output failed: %v", s.id, err)
		}
	}()
}

func (s *Session) record(ctx context.Context, ex *models.Exchange) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordExchange(ctx, ex); err != nil {
		log.Printf("Session %s: failed to record exchange: %v", s.id, err)
	}
}
