package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"chatbot-backend/internal/handlers"
	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	submitLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Session creation rate limiter (10 req/min per IP)
	createLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Session Creation (public) ────
		r.With(createLimiter.Middleware).Post("/sessions", chatHandler.CreateSession)

		// ──── Session Routes ────
		r.Route("/session", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", chatHandler.GetSession)
			r.Delete("/", chatHandler.EndSession)
			r.Put("/mode", chatHandler.SetMode)
			r.Get("/exchanges", chatHandler.ListExchanges)

			r.Route("/messages", func(r chi.Router) {
				r.With(submitLimiter.Middleware).Post("/", chatHandler.SendMessage)
				r.Delete("/", chatHandler.ClearMessages)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}

// SubmitLimiter allows limit message submissions per minute for each session.
// It must run after the session token middleware.
func SubmitLimiter(limit int) *middleware.RateLimiter {
	return middleware.NewRateLimiter(limit, time.Minute).KeyBy(func(r *http.Request) string {
		return middleware.GetSessionID(r.Context()).String()
	})
}
