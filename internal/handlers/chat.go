package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/session"
)

type sessionStore interface {
	Create() *session.Session
	Get(id uuid.UUID) (*session.Session, error)
	Delete(id uuid.UUID) error
}

type tokenIssuer interface {
	GenerateSessionToken(sessionID uuid.UUID) (string, error)
}

type exchangeLog interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.Exchange, error)
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

type ChatHandler struct {
	sessions  sessionStore
	tokens    tokenIssuer
	exchanges exchangeLog
}

func NewChatHandler(sessions sessionStore, tokens tokenIssuer) *ChatHandler {
	return &ChatHandler{
		sessions: sessions,
		tokens:   tokens,
	}
}

// WithExchangeLog enables the exchanges endpoint.
func (h *ChatHandler) WithExchangeLog(exchanges exchangeLog) *ChatHandler {
	h.exchanges = exchanges
	return h
}

func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()

	token, err := h.tokens.GenerateSessionToken(s.ID())
	if err != nil {
		h.sessions.Delete(s.ID())
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue session token", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateSessionResponse{
		Session: s.Snapshot(),
		Token:   token,
	})
}

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	res := s.Submit(r.Context(), req.Message)

	switch res.Outcome {
	case session.OutcomeEmpty:
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
	case session.OutcomeClosed:
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found or expired", r))
	case session.OutcomeBusy:
		writeJSON(w, http.StatusConflict, errorResp("BUSY", "A reply is still being generated", r))
	case session.OutcomeFailed:
		writeJSON(w, http.StatusBadGateway, errorRespWithFields("AI_ERROR", "Failed to get AI response",
			map[string]string{"kind": string(res.Err.Kind)}, r))
	default:
		writeJSON(w, http.StatusOK, models.ChatResponse{
			Reply:   res.Reply,
			Session: s.Snapshot(),
		})
	}
}

func (h *ChatHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	s.Reset()
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *ChatHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	var req models.ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := s.SetInteractionMode(req.Mode); err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"mode": "mode must be text or voice"}, r))
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *ChatHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetSessionID(r.Context())
	if err := h.sessions.Delete(id); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found or expired", r))
		return
	}

	if h.exchanges != nil {
		if _, err := h.exchanges.DeleteBySession(r.Context(), id); err != nil {
			log.Printf("Failed to purge exchanges for session %s: %v", id, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session ended"})
}

func (h *ChatHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	if h.exchanges == nil {
		writeJSON(w, http.StatusNotImplemented, errorResp("NOT_ENABLED", "Exchange log is not enabled", r))
		return
	}

	id := middleware.GetSessionID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	exchanges, err := h.exchanges.ListBySession(r.Context(), id, limit)
	if err != nil {
		log.Printf("Failed to list exchanges for session %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load exchanges", r))
		return
	}
	if exchanges == nil {
		exchanges = []*models.Exchange{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exchanges": exchanges})
}

func (h *ChatHandler) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(middleware.GetSessionID(r.Context()))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found or expired", r))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		}
		return nil, false
	}
	return s, true
}
