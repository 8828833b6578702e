package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/veloxcase/cli/internal/client"
)

// Model defaults
const (
	DefaultModel       = "gemini-2.0-flash"
	DefaultTemperature = 0.2
)

// Generator turns a prompt plus optional JPEG images into model text
type Generator interface {
	Generate(ctx context.Context, prompt string, images [][]byte) (string, error)
}

// GeminiGenerator calls the Gemini API
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiGenerator creates a Gemini-backed generator
func NewGeminiGenerator(ctx context.Context, apiKey, model string, temperature float64) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, client.Validationf("AI API key is not configured")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiGenerator{client: c, model: model, temperature: float32(temperature)}, nil
}

// Model returns the model name requests go to
func (g *GeminiGenerator) Model() string {
	return g.model
}

// Generate sends the prompt and images as one user turn
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, images [][]byte) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img, "image/jpeg"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: gemini: %v", client.ErrUpstream, err)
	}
	return extractText(result)
}

func extractText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 {
		return "", fmt.Errorf("%w: empty response from Gemini", client.ErrUpstream)
	}
	content := result.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty response from Gemini", client.ErrUpstream)
	}
	var b strings.Builder
	for _, p := range content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty response from Gemini", client.ErrUpstream)
	}
	return text, nil
}
