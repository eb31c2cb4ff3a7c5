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

// OpenAIConfig configures a Chat Completions backend. Groq and Ollama expose
// the same API and reuse this client with a different base URL.
type OpenAIConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// JSONMode requests response_format json_object.
	JSONMode bool
}

// DefaultOpenAIConfig returns defaults for api.openai.com.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		Name:     "openai",
		APIKey:   apiKey,
		BaseURL:  "https://api.openai.com/v1",
		Model:    "gpt-4o",
		Timeout:  10 * time.Minute,
		JSONMode: true,
	}
}

// DefaultGroqConfig returns defaults for Groq's OpenAI-compatible endpoint.
func DefaultGroqConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		Name:     "groq",
		APIKey:   apiKey,
		BaseURL:  "https://api.groq.com/openai/v1",
		Model:    "llama-3.1-70b-versatile",
		Timeout:  10 * time.Minute,
		JSONMode: true,
	}
}

// DefaultOllamaConfig returns defaults for a local Ollama server.
func DefaultOllamaConfig() OpenAIConfig {
	return OpenAIConfig{
		Name:     "ollama",
		APIKey:   "ollama",
		BaseURL:  "http://localhost:11434/v1",
		Model:    "llama3.2",
		Timeout:  10 * time.Minute,
		JSONMode: true,
	}
}

// OpenAIBackend talks to any Chat Completions compatible endpoint.
type OpenAIBackend struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	jsonMode   bool
	httpClient *http.Client
}

// NewOpenAIBackend creates a backend with custom config.
func NewOpenAIBackend(config OpenAIConfig) *OpenAIBackend {
	name := config.Name
	if name == "" {
		name = "openai"
	}
	return &OpenAIBackend{
		name:       name,
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		model:      config.Model,
		jsonMode:   config.JSONMode,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"top_p,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Name implements Backend.
func (c *OpenAIBackend) Name() string { return c.name }

// SetModel changes the model used for subsequent requests.
func (c *OpenAIBackend) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *OpenAIBackend) GetModel() string { return c.model }

// Complete implements Backend.
func (c *OpenAIBackend) Complete(ctx context.Context, preamble, userContext string, params Params) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}
	ctx, cancel := withDefaultTimeout(ctx, c.httpClient.Timeout)
	defer cancel()

	startTime := time.Now()
	logging.CompletionDebug("[%s] Complete: model=%s system_len=%d user_len=%d", c.name, c.model, len(preamble), len(userContext))

	messages := make([]openAIMessage, 0, 2)
	if preamble != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: preamble})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: userContext})

	reqBody := openAIRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   params.MaxOutputTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}
	if c.jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := postJSON(ctx, c.httpClient, c.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}, jsonData, c.name)
	if err != nil {
		logging.CompletionError("[%s] Complete failed after %v: %v", c.name, time.Since(startTime), err)
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	logging.Completion("[%s] Complete: completed in %v response_len=%d", c.name, time.Since(startTime), len(text))
	return text, nil
}
