package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"drivesafe/internal/config"
	"drivesafe/safetytips"
)

// ErrDisabled is returned when no model backend is configured.
var ErrDisabled = errors.New("assistant disabled")

// ErrEmptyQuery is returned for blank questions.
var ErrEmptyQuery = errors.New("query is empty")

const systemPrompt = `You are a helpful driving assistant. Provide clear, accurate advice about:
- Traffic rules and regulations
- Safe driving practices
- Vehicle maintenance
- Emergency situations
Always prioritize safety and include relevant disclaimers when necessary.
Keep answers under 200 words.`

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Assistant answers free-form driving questions through Gemini.
type Assistant struct {
	model    string
	tips     *safetytips.Generator
	generate generateFunc
}

// New connects to Vertex AI when the project is configured. Without it the
// returned assistant answers every query with ErrDisabled.
func New(ctx context.Context, cfg config.Config, tips *safetytips.Generator) (*Assistant, error) {
	a := &Assistant{model: cfg.AssistantModel, tips: tips}
	if !cfg.AssistantEnabled() {
		return a, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.GoogleProject,
		Location: cfg.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	a.generate = client.Models.GenerateContent
	return a, nil
}

// Enabled reports whether queries reach a model.
func (a *Assistant) Enabled() bool { return a != nil && a.generate != nil }

// Ask returns the model's answer to query.
func (a *Assistant) Ask(ctx context.Context, query string) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	parts := []*genai.Part{
		{Text: a.prompt(query)},
		{Text: query},
	}
	result, err := a.generate(ctx, a.model, []*genai.Content{{Role: "user", Parts: parts}}, &genai.GenerateContentConfig{})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	text, err := result.Text()
	if err != nil {
		return "", fmt.Errorf("response text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// prompt grounds the model with the canned tips matching the question so its
// advice stays consistent with the dashboard.
func (a *Assistant) prompt(query string) string {
	if a.tips == nil {
		return systemPrompt
	}
	advice := a.tips.Analyze(query, safetytips.DefaultMaxTips)
	if advice.Fallback || len(advice.Tips) == 0 {
		return systemPrompt
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nRelevant house tips:\n")
	for _, tip := range advice.Tips {
		b.WriteString("- " + tip + "\n")
	}
	return b.String()
}
