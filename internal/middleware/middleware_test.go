package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	id := uuid.New()

	token, err := auth.GenerateSessionToken(id)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	got, err := auth.ParseSessionToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if got != id {
		t.Errorf("Expected %s, got %s", id, got)
	}
}

func TestParseSessionToken_Rejects(t *testing.T) {
	auth := NewJWTAuth("test-secret")

	other, _ := NewJWTAuth("other-secret").GenerateSessionToken(uuid.New())
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"session_id": uuid.New().String(),
		"exp":        time.Now().Add(-time.Minute).Unix(),
	}).SignedString(auth.Secret)
	noSession, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(auth.Secret)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-token", ErrTokenInvalid},
		{"wrong secret", other, ErrTokenInvalid},
		{"expired", expired, ErrTokenExpired},
		{"missing claim", noSession, ErrTokenInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := auth.ParseSessionToken(tc.token); err != tc.want {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMiddleware_AttachesSessionID(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	id := uuid.New()
	token, _ := auth.GenerateSessionToken(id)

	var seen uuid.UUID
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetSessionID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if seen != id {
		t.Errorf("Expected session %s in context, got %s", id, seen)
	}
}

func TestMiddleware_RejectsMissingHeader(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Token abc", "Bearer not-a-token"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rr.Code)
		}
		var body map[string]map[string]interface{}
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if body["error"]["code"] != "UNAUTHORIZED" {
			t.Errorf("Expected UNAUTHORIZED, got %v", body["error"]["code"])
		}
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("expected the first two hits to pass")
	}
	if rl.Allow("a") {
		t.Fatalf("expected the third hit to be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("expected a separate key to have its own window")
	}
}

func TestRateLimiter_WindowDoesNotSlide(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("a")

	// Keep hitting just over the limit inside the first window.
	for i := 0; i < 5; i++ {
		now = now.Add(10 * time.Second)
		if rl.Allow("a") {
			t.Fatalf("hit %d: expected to be limited inside the window", i)
		}
	}

	now = now.Add(10 * time.Second)
	if !rl.Allow("a") {
		t.Fatalf("expected a fresh window one minute after the first hit")
	}
	if !rl.Allow("a") {
		t.Fatalf("expected the second hit of the new window to pass")
	}
	if rl.Allow("a") {
		t.Fatalf("expected the third hit of the new window to be limited")
	}
}

func TestRateLimiter_KeyBy(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute).KeyBy(func(r *http.Request) string {
		return r.Header.Get("X-Key")
	})
	defer rl.Stop()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Key", key)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("one"); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if code := send("one"); code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", code)
	}
	if code := send("two"); code != http.StatusOK {
		t.Fatalf("Expected 200 for another key, got %d", code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rr.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected a generated request id to be echoed, got %q / %q", seen, rr.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("expected the caller's request id to be kept")
	}
}

func TestCORS(t *testing.T) {
	h := CORS("http://localhost:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("expected origin to be allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected other origins to be refused")
	}
}
