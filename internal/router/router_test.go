package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatbot-backend/internal/handlers"
	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/session"
	"chatbot-backend/internal/websocket"
)

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "echo: " + prompt, nil
}

func newTestRouter(t *testing.T, submitsPerMinute int) http.Handler {
	t.Helper()
	jwtAuth := middleware.NewJWTAuth("test-secret")
	manager := session.NewManager(echoGenerator{}, session.Options{}, time.Hour)
	hub := websocket.NewHub(nil, nil, jwtAuth)
	limiter := SubmitLimiter(submitsPerMinute)
	t.Cleanup(limiter.Stop)
	return New(jwtAuth, handlers.NewChatHandler(manager, jwtAuth), hub, limiter, "http://localhost:5173")
}

func createSession(t *testing.T, h http.Handler) models.CreateSessionResponse {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	var resp models.CreateSessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func sendMessage(h http.Handler, token, text string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/messages", strings.NewReader(`{"message":"`+text+`"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t, 10)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_SessionFlow(t *testing.T) {
	h := newTestRouter(t, 10)
	created := createSession(t, h)

	rr := sendMessage(h, created.Token, "Hello")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var chat models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&chat); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if chat.Reply != "echo: Hello" || len(chat.Session.Transcript) != 2 {
		t.Fatalf("unexpected response %+v", chat)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var snap models.SessionSnapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.ID != created.Session.ID || len(snap.Transcript) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestRouter_SessionRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t, 10)

	rr := sendMessage(h, "not-a-token", "Hello")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouter_SubmitRateLimitIsPerSession(t *testing.T) {
	h := newTestRouter(t, 2)
	first := createSession(t, h)
	second := createSession(t, h)

	for i := 0; i < 2; i++ {
		if rr := sendMessage(h, first.Token, "hi"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status %d, got %d", i, http.StatusOK, rr.Code)
		}
	}
	if rr := sendMessage(h, first.Token, "hi"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rr.Code)
	}
	if rr := sendMessage(h, second.Token, "hi"); rr.Code != http.StatusOK {
		t.Fatalf("other session should not be limited, got %d", rr.Code)
	}
}

func TestRouter_WebSocketRequiresToken(t *testing.T) {
	h := newTestRouter(t, 10)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}
