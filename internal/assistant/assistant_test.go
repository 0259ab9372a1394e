package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"drivesafe/internal/config"
	"drivesafe/safetytips"
)

func TestDisabledWithoutProject(t *testing.T) {
	a, err := New(context.Background(), config.Config{AssistantModel: "gemini-1.5-flash"}, safetytips.Default())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.Enabled() {
		t.Fatal("assistant should be disabled")
	}
	if _, err := a.Ask(context.Background(), "How far should I follow?"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestAskUsesGroundedPrompt(t *testing.T) {
	var gotModel string
	var gotParts []*genai.Part
	a := &Assistant{
		model: "test-model",
		tips:  safetytips.Default(),
		generate: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			gotParts = contents[0].Parts
			return &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: " Leave three seconds. "}}}}},
			}, nil
		},
	}
	answer, err := a.Ask(context.Background(), "What should I do about sudden braking?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer != "Leave three seconds." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if gotModel != "test-model" || len(gotParts) != 2 {
		t.Fatalf("unexpected request model=%s parts=%d", gotModel, len(gotParts))
	}
	if !strings.Contains(gotParts[0].Text, "Practice smooth, gradual braking") {
		t.Fatalf("prompt not grounded with braking tips: %s", gotParts[0].Text)
	}
}

func TestAskErrors(t *testing.T) {
	a := &Assistant{
		model: "m",
		generate: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("quota")
		},
	}
	if _, err := a.Ask(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := a.Ask(context.Background(), "hi"); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
	if a.prompt("hello world") != systemPrompt {
		t.Fatal("unmatched query should use the plain system prompt")
	}
}
