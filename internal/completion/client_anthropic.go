package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"botcursor/internal/logging"
)

// AnthropicConfig configures the Messages API backend.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.anthropic.com/v1",
		Model:   "claude-sonnet-4-20250514",
		Timeout: 10 * time.Minute,
	}
}

// AnthropicBackend talks to the Anthropic Messages API.
type AnthropicBackend struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewAnthropicBackend creates a backend with custom config.
func NewAnthropicBackend(config AnthropicConfig) *AnthropicBackend {
	return &AnthropicBackend{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		model:      config.Model,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Name implements Backend.
func (c *AnthropicBackend) Name() string { return "anthropic" }

// SetModel changes the model used for subsequent requests.
func (c *AnthropicBackend) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *AnthropicBackend) GetModel() string { return c.model }

// Complete implements Backend. TopP is not sent; newer models reject it
// alongside temperature.
func (c *AnthropicBackend) Complete(ctx context.Context, preamble, userContext string, params Params) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}
	ctx, cancel := withDefaultTimeout(ctx, c.httpClient.Timeout)
	defer cancel()

	startTime := time.Now()
	logging.CompletionDebug("[Anthropic] Complete: model=%s system_len=%d user_len=%d", c.model, len(preamble), len(userContext))

	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   params.MaxOutputTokens,
		System:      preamble,
		Messages:    []anthropicMessage{{Role: "user", Content: userContext}},
		Temperature: params.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := postJSON(ctx, c.httpClient, c.baseURL+"/messages", map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}, jsonData, "Anthropic")
	if err != nil {
		logging.CompletionError("[Anthropic] Complete failed after %v: %v", time.Since(startTime), err)
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}

	var result strings.Builder
	for _, content := range resp.Content {
		if content.Type == "text" {
			result.WriteString(content.Text)
		}
	}
	if result.Len() == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	text := strings.TrimSpace(result.String())
	logging.Completion("[Anthropic] Complete: completed in %v response_len=%d", time.Since(startTime), len(text))
	return text, nil
}
