// Package gemini implements summarize.Generator with the Google GenAI SDK.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/JakeFAU/eu-innovation-monitor/internal/summarize"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// Config controls the generator.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
}

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator produces summaries with a Gemini model.
type Generator struct {
	models contentGenerator
	cfg    Config
}

// New creates a Gemini-backed generator.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini: api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGenerator(client.Models, cfg), nil
}

func newGenerator(models contentGenerator, cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Generator{models: models, cfg: cfg}
}

// Generate sends the user prompt with the system prompt as system instruction.
func (g *Generator) Generate(ctx context.Context, prompt summarize.Prompt) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.cfg.Temperature),
	}
	if g.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = g.cfg.MaxTokens
	}
	if prompt.System != "" {
		config.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt.User), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil {
		return "", summarize.ErrEmptyResponse
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", summarize.ErrEmptyResponse
	}
	return text, nil
}
