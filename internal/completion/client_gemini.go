package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"botcursor/internal/logging"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey  string
	BaseURL string // empty uses the SDK default endpoint
	Model   string
	Timeout time.Duration
}

// DefaultGeminiConfig returns sensible defaults. The flash-lite alias is the
// model most accounts can use on the free tier.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:  apiKey,
		Model:   "models/gemini-flash-lite-latest",
		Timeout: 10 * time.Minute,
	}
}

// GeminiBackend calls the Gemini API through the genai SDK.
type GeminiBackend struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiBackend creates a Gemini backend.
func NewGeminiBackend(ctx context.Context, config GeminiConfig) (*GeminiBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiBackend{
		client:  client,
		model:   config.Model,
		timeout: config.Timeout,
	}, nil
}

// Name implements Backend.
func (c *GeminiBackend) Name() string { return "gemini" }

// SetModel changes the model used for subsequent requests.
func (c *GeminiBackend) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *GeminiBackend) GetModel() string { return c.model }

// Complete implements Backend.
func (c *GeminiBackend) Complete(ctx context.Context, preamble, userContext string, params Params) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	logging.CompletionDebug("[Gemini] Complete: model=%s system_len=%d user_len=%d", c.model, len(preamble), len(userContext))

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(params.Temperature)),
		TopP:             genai.Ptr(float32(params.TopP)),
		MaxOutputTokens:  int32(params.MaxOutputTokens),
		ResponseMIMEType: "application/json",
	}
	if preamble != "" {
		cfg.SystemInstruction = genai.NewContentFromText(preamble, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userContext), cfg)
	if err != nil {
		logging.CompletionError("[Gemini] Complete failed after %v: %v", time.Since(startTime), err)
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		reason := "no candidates"
		if len(resp.Candidates) > 0 {
			reason = string(resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("no completion returned (%s)", reason)
	}

	logging.Completion("[Gemini] Complete: completed in %v response_len=%d", time.Since(startTime), len(text))
	return text, nil
}
