package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatbot-backend/internal/session"
)

type fakeModel struct {
	resp    *genai.GenerateContentResponse
	err     error
	prompts []string
	wait    time.Duration
}

func (m *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, p := range parts {
		if t, ok := p.(genai.Text); ok {
			m.prompts = append(m.prompts, string(t))
		}
	}
	if m.wait > 0 {
		select {
		case <-time.After(m.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.resp, m.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: content, FinishReason: genai.FinishReasonStop}},
	}
}

func TestGenerate_ReturnsJoinedText(t *testing.T) {
	model := &fakeModel{resp: textResponse("Hi ", "there")}
	svc := newGeminiService(model, 0, 1)

	got, err := svc.Generate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hi there" {
		t.Fatalf("expected %q, got %q", "Hi there", got)
	}
	if len(model.prompts) != 1 || model.prompts[0] != "Hello" {
		t.Fatalf("expected the prompt to be sent verbatim, got %v", model.prompts)
	}
}

func TestGenerate_EmptyPromptIsRejected(t *testing.T) {
	model := &fakeModel{resp: textResponse("unused")}
	svc := newGeminiService(model, 0, 1)

	_, err := svc.Generate(context.Background(), "   ")
	if err == nil {
		t.Fatalf("expected an error for an empty prompt")
	}
	if len(model.prompts) != 0 {
		t.Fatalf("expected no provider call, got %d", len(model.prompts))
	}
}

func TestGenerate_EmptyReplyIsEmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{"nil response", nil},
		{"no candidates", &genai.GenerateContentResponse{}},
		{"whitespace only", textResponse("  \n")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newGeminiService(&fakeModel{resp: tc.resp}, 0, 1)

			_, err := svc.Generate(context.Background(), "Hello")

			var gerr *session.GenerationError
			if !errors.As(err, &gerr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if gerr.Kind != session.KindEmptyResponse {
				t.Fatalf("expected kind %q, got %q", session.KindEmptyResponse, gerr.Kind)
			}
		})
	}
}

func TestGenerate_TimeoutIsClassified(t *testing.T) {
	svc := newGeminiService(&fakeModel{resp: textResponse("late"), wait: time.Second}, 20*time.Millisecond, 1)

	_, err := svc.Generate(context.Background(), "Hello")

	var gerr *session.GenerationError
	if !errors.As(err, &gerr) || gerr.Kind != session.KindTimeout {
		t.Fatalf("expected timeout GenerationError, got %v", err)
	}
}

func TestGenerate_ReleasesRateSlot(t *testing.T) {
	model := &fakeModel{err: errors.New("boom")}
	svc := newGeminiService(model, 0, 1)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := svc.Generate(ctx, "Hello")
		cancel()
		var gerr *session.GenerationError
		if !errors.As(err, &gerr) || gerr.Kind != session.KindUnknown {
			t.Fatalf("call %d: expected unknown GenerationError, got %v", i, err)
		}
	}
	if len(model.prompts) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(model.prompts))
	}
}

type timeoutNetError struct{ timeout bool }

func (e timeoutNetError) Error() string   { return "dial tcp: i/o" }
func (e timeoutNetError) Timeout() bool   { return e.timeout }
func (e timeoutNetError) Temporary() bool { return false }

var _ net.Error = timeoutNetError{}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want session.ErrorKind
	}{
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), session.KindTimeout},
		{"blocked", &genai.BlockedError{}, session.KindEmptyResponse},
		{"http unauthorized", &googleapi.Error{Code: 401}, session.KindAuth},
		{"http forbidden", &googleapi.Error{Code: 403}, session.KindAuth},
		{"http gateway timeout", &googleapi.Error{Code: 504}, session.KindTimeout},
		{"http unavailable", &googleapi.Error{Code: 503}, session.KindNetwork},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "no"), session.KindAuth},
		{"grpc bad key", status.Error(codes.InvalidArgument, "API key not valid. Please pass a valid API key."), session.KindAuth},
		{"grpc bad argument", status.Error(codes.InvalidArgument, "bad request"), session.KindUnknown},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), session.KindNetwork},
		{"net timeout", timeoutNetError{timeout: true}, session.KindTimeout},
		{"net refused", timeoutNetError{timeout: false}, session.KindNetwork},
		{"already classified", session.NewGenerationError(session.KindAuth, nil), session.KindAuth},
		{"other", errors.New("something odd"), session.KindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyError(tc.err)
			if got.Kind != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got.Kind)
			}
		})
	}
}
