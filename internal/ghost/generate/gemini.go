package generate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash-lite"

// GeminiConfig configures the Gemini backend. With an APIKey the Gemini API
// is used; otherwise Project and Location select Vertex AI.
type GeminiConfig struct {
	APIKey   string
	Project  string
	Location string
	Model    string
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGemini returns a Generator backed by google.golang.org/genai.
func NewGemini(ctx context.Context, cfg GeminiConfig) (Generator, error) {
	cc := &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: cfg.APIKey}
	if cfg.APIKey == "" {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("generate: gemini needs an API key or a project and location")
		}
		cc = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.Project,
			Location: cfg.Location,
		}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("generate: creating gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiGenerator{client: client, model: model}, nil
}

// Generate sends prompt as one user turn.
func (g *geminiGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		temp := opts.Temperature
		cfg.Temperature = &temp
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate: gemini generate content: %w", err)
	}
	return strings.TrimSpace(res.Text()), nil
}
