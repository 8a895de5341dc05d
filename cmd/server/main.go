package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"chatbot-backend/internal/config"
	"chatbot-backend/internal/database"
	"chatbot-backend/internal/handlers"
	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/repository"
	"chatbot-backend/internal/router"
	"chatbot-backend/internal/services"
	"chatbot-backend/internal/session"
	"chatbot-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting Chatbot Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Exchange Log (optional) ────
	var exchangeRepo *repository.ExchangeRepo
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL, int32(cfg.DatabaseMaxConns))
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")

		exchangeRepo = repository.NewExchangeRepo(pool)
	} else {
		log.Println("  DATABASE_URL not set, exchange log disabled")
	}

	// ──── Step 3: Initialize Redis Clients (optional) ────
	var publisher, subscriber *redis.Client
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()
		publisher, subscriber = redisClients.Publisher, redisClients.PubSub
		log.Println("✓ Redis connected")
	} else {
		log.Println("  REDIS_URL not set, session events stay in-process")
	}

	// ──── Step 4: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(services.GeminiConfig{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		Temperature:    float32(cfg.GeminiTemperature),
		TopP:           float32(cfg.GeminiTopP),
		Timeout:        cfg.GeminiTimeout,
		ConcurrentReqs: cfg.GeminiConcurrentReqs,
	})
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)

	// ──── Step 5: Start WebSocket Hub ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	wsHub := websocket.NewHub(publisher, subscriber, jwtAuth)
	log.Println("✓ WebSocket hub started")

	// ──── Step 6: Start Session Manager ────
	opts := session.Options{
		Publisher: wsHub,
		Locale:    cfg.SpeechLocale,
	}
	if exchangeRepo != nil {
		opts.Recorder = exchangeRepo
	}
	sessions := session.NewManager(geminiService, opts, cfg.SessionIdleTimeout).WithSpeakers(wsHub.SpeakerFor)
	sessions.Start()
	log.Printf("✓ Session manager started (idle timeout %s)", cfg.SessionIdleTimeout)

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(sessions, jwtAuth)
	if exchangeRepo != nil {
		chatHandler.WithExchangeLog(exchangeRepo)
	}

	// ──── Step 7: Start HTTP Server ────
	submitLimiter := router.SubmitLimiter(cfg.SubmitRatePerMinute)
	r := router.New(jwtAuth, chatHandler, wsHub, submitLimiter, cfg.FrontendURL)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Submit waits for the reply, so writes get the Gemini timeout on top.
		WriteTimeout: 15*time.Second + cfg.GeminiTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		sessions.Stop()
		submitLimiter.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Chatbot Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
