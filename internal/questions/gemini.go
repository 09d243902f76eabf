package questions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/insightdeck/insightdeck/internal/observability"
)

type GeminiConfig struct {
	// BaseURL overrides the public Gemini endpoint; empty uses the default.
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type GeminiCompleter struct {
	client *genai.Client
	model  string
}

func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig) (*GeminiCompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions.BaseURL = base
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		clientCfg.HTTPOptions.Timeout = &timeout
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

func (c *GeminiCompleter) Model() string {
	return c.model
}

func (c *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return Completion{}, fmt.Errorf("empty generate content candidates")
	}

	completion := Completion{Content: resp.Text(), Model: resp.ModelVersion}
	if completion.Model == "" {
		completion.Model = c.model
	}
	if usage := resp.UsageMetadata; usage != nil {
		completion.Usage = observability.TokenUsage{
			Prompt:     int(usage.PromptTokenCount),
			Completion: int(usage.CandidatesTokenCount),
			Total:      int(usage.TotalTokenCount),
		}
	}
	return completion, nil
}
