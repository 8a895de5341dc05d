package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatbot-backend/internal/session"
)

const DefaultGeminiModel = "gemini-1.5-flash"

type GeminiConfig struct {
	APIKey         string
	Model          string
	Temperature    float32
	TopP           float32
	Timeout        time.Duration
	ConcurrentReqs int
}

// contentGenerator is the part of *genai.GenerativeModel the service uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiService sends one prompt per call to Gemini and returns the reply text.
// It keeps no conversation state between calls.
type GeminiService struct {
	client   *genai.Client
	model    contentGenerator
	timeout  time.Duration
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(cfg GeminiConfig) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = DefaultGeminiModel
	}
	model := client.GenerativeModel(name)
	if cfg.Temperature > 0 {
		model.SetTemperature(cfg.Temperature)
	}
	if cfg.TopP > 0 {
		model.SetTopP(cfg.TopP)
	}

	s := newGeminiService(model, cfg.Timeout, cfg.ConcurrentReqs)
	s.client = client
	return s, nil
}

func newGeminiService(model contentGenerator, timeout time.Duration, concurrentReqs int) *GeminiService {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		model:    model,
		timeout:  timeout,
		rateChan: rateChan,
	}
}

func (s *GeminiService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot: %w", context.DeadlineExceeded)
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Generate sends prompt as a single request. Every failure is returned as a
// *session.GenerationError. There are no retries.
func (s *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", session.NewGenerationError(session.KindUnknown, errors.New("prompt is empty"))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.acquireRate(ctx); err != nil {
		return "", classifyError(err)
	}
	defer s.releaseRate()

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyError(fmt.Errorf("Gemini API error: %w", err))
	}
	if resp == nil {
		return "", session.NewGenerationError(session.KindEmptyResponse, errors.New("Gemini returned no response"))
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonUnspecified {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", session.NewGenerationError(session.KindEmptyResponse, errors.New("Gemini returned empty text"))
	}
	return text, nil
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

// classifyError maps transport and provider errors onto a GenerationError kind.
func classifyError(err error) *session.GenerationError {
	var gerr *session.GenerationError
	if errors.As(err, &gerr) {
		return gerr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return session.NewGenerationError(session.KindTimeout, err)
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return session.NewGenerationError(session.KindEmptyResponse, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return session.NewGenerationError(session.KindAuth, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return session.NewGenerationError(session.KindTimeout, err)
		case http.StatusBadGateway, http.StatusServiceUnavailable:
			return session.NewGenerationError(session.KindNetwork, err)
		}
	}

	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return session.NewGenerationError(session.KindAuth, err)
	case codes.InvalidArgument:
		// Gemini reports a bad key as INVALID_ARGUMENT.
		if strings.Contains(err.Error(), "API key") {
			return session.NewGenerationError(session.KindAuth, err)
		}
	case codes.DeadlineExceeded:
		return session.NewGenerationError(session.KindTimeout, err)
	case codes.Unavailable:
		return session.NewGenerationError(session.KindNetwork, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return session.NewGenerationError(session.KindTimeout, err)
		}
		return session.NewGenerationError(session.KindNetwork, err)
	}

	return session.NewGenerationError(session.KindUnknown, err)
}
