package config

import "time"

// Supported completion backends.
const (
	ProviderGemini    = "gemini"
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ValidProviders lists all supported completion backends.
var ValidProviders = []string{ProviderGemini, ProviderGroq, ProviderOpenAI, ProviderAnthropic, ProviderOllama}

// LLMConfig configures the completion backend.
type LLMConfig struct {
	Provider        string  `yaml:"provider"` // gemini, groq, openai, anthropic, ollama
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	Temperature     float64 `yaml:"temperature"`
	TopP            float64 `yaml:"top_p"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Timeout         string  `yaml:"timeout"`
}

// GetTimeout returns the request timeout, 10m when unset or invalid.
func (c LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// ProviderSpec describes how a backend is configured from the environment.
type ProviderSpec struct {
	Name           string
	KeyEnv         string // empty when no key is needed
	KeyURL         string // where to obtain a key
	ModelEnv       string
	URLEnv         string
	DefaultModel   string
	DefaultBaseURL string

	// FallbackModel is suggested when the backend reports an exhausted quota,
	// unless it is already the model in use.
	FallbackModel string
}

var providerSpecs = map[string]ProviderSpec{
	ProviderGemini: {
		Name:          ProviderGemini,
		KeyEnv:        "GEMINI_API_KEY",
		KeyURL:        "https://aistudio.google.com/apikey",
		ModelEnv:      "GEMINI_MODEL",
		DefaultModel:  "models/gemini-flash-lite-latest",
		FallbackModel: "models/gemini-2.0-flash-lite",
	},
	ProviderGroq: {
		Name:           ProviderGroq,
		KeyEnv:         "GROQ_API_KEY",
		KeyURL:         "https://console.groq.com/keys",
		ModelEnv:       "GROQ_MODEL",
		DefaultModel:   "llama-3.1-70b-versatile",
		DefaultBaseURL: "https://api.groq.com/openai/v1",
		FallbackModel:  "llama-3.1-8b-instant",
	},
	ProviderOpenAI: {
		Name:           ProviderOpenAI,
		KeyEnv:         "OPENAI_API_KEY",
		ModelEnv:       "OPENAI_MODEL",
		DefaultModel:   "gpt-4o",
		DefaultBaseURL: "https://api.openai.com/v1",
		FallbackModel:  "gpt-4o-mini",
	},
	ProviderAnthropic: {
		Name:           ProviderAnthropic,
		KeyEnv:         "ANTHROPIC_API_KEY",
		ModelEnv:       "ANTHROPIC_MODEL",
		DefaultModel:   "claude-sonnet-4-20250514",
		DefaultBaseURL: "https://api.anthropic.com/v1",
		FallbackModel:  "claude-3-5-haiku-20241022",
	},
	ProviderOllama: {
		Name:           ProviderOllama,
		ModelEnv:       "OLLAMA_MODEL",
		URLEnv:         "OLLAMA_URL",
		DefaultModel:   "llama3.2",
		DefaultBaseURL: "http://localhost:11434/v1",
	},
}

// LookupProvider returns the spec for a backend name.
func LookupProvider(name string) (ProviderSpec, bool) {
	spec, ok := providerSpecs[name]
	return spec, ok
}
