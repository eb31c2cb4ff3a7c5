package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the YAML file looked up when --config is not given.
const DefaultConfigFile = "botcursor.yaml"

// Config holds all botcursor configuration.
type Config struct {
	// Chat transport and authorization
	Telegram TelegramConfig `yaml:"telegram"`

	// Completion backend
	LLM LLMConfig `yaml:"llm"`

	// Version control
	Git GitConfig `yaml:"git"`

	// Directory being edited
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// envProblems collects unparsable environment values for Validate.
	envProblems []string
}

// TelegramConfig configures the bot identity and the session gate.
type TelegramConfig struct {
	Token         string `yaml:"token"`
	AllowedUserID int64  `yaml:"allowed_user_id"`
	AccessPIN     string `yaml:"access_pin"`
	PINTTL        string `yaml:"pin_ttl"`
	Proxy         string `yaml:"proxy"` // http://, https:// or socks5:// URL
}

// GitConfig configures the version control gateway.
type GitConfig struct {
	Branch      string `yaml:"branch"`
	Remote      string `yaml:"remote"`
	RepoURL     string `yaml:"repo_url"` // browsable URL used for commit links
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// WorkspaceConfig configures the edited directory and context building.
type WorkspaceConfig struct {
	Path string `yaml:"path"`

	// Ignore lists doublestar globs excluded from the project tree sent to the model.
	Ignore []string `yaml:"ignore"`

	// Protected lists doublestar globs the model may never write or delete.
	Protected []string `yaml:"protected"`

	// MaxFileChars truncates file contents included in the context.
	MaxFileChars int `yaml:"max_file_chars"`

	// MaxMainFiles caps the number of discovered entry files included.
	MaxMainFiles int `yaml:"max_main_files"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PINTTL: "12h",
		},
		LLM: LLMConfig{
			Provider:        ProviderGemini,
			Temperature:     0.7,
			TopP:            0.9,
			MaxOutputTokens: 8192,
			Timeout:         "10m",
		},
		Git: GitConfig{
			Branch: "main",
			Remote: "origin",
		},
		Workspace: WorkspaceConfig{
			Protected:    []string{".git", ".git/**", "**/.git", "**/.git/**"},
			MaxFileChars: 2000,
			MaxMainFiles: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file, then applies environment overrides.
// A missing file is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// defaults
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.resolveDefaults()

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	c.envProblems = nil

	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("ALLOWED_USER_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			c.envProblems = append(c.envProblems, fmt.Sprintf("ALLOWED_USER_ID must be an integer, got %q", v))
		} else {
			c.Telegram.AllowedUserID = id
		}
	}
	if v := strings.TrimSpace(os.Getenv("ACCESS_PIN")); v != "" {
		c.Telegram.AccessPIN = v
	}
	if v := os.Getenv("PIN_TTL"); v != "" {
		c.Telegram.PINTTL = v
	}
	if v := os.Getenv("TELEGRAM_PROXY"); v != "" {
		c.Telegram.Proxy = v
	}

	if v := os.Getenv("AI_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))

	if spec, ok := LookupProvider(c.LLM.Provider); ok {
		if spec.KeyEnv != "" {
			if key := os.Getenv(spec.KeyEnv); key != "" {
				c.LLM.APIKey = key
			}
		}
		if model := os.Getenv(spec.ModelEnv); model != "" {
			c.LLM.Model = model
		}
		if spec.URLEnv != "" {
			if url := os.Getenv(spec.URLEnv); url != "" {
				c.LLM.BaseURL = url
			}
		}
	}

	if v := os.Getenv("AI_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.envProblems = append(c.envProblems, fmt.Sprintf("AI_TEMPERATURE must be a number, got %q", v))
		} else {
			c.LLM.Temperature = t
		}
	}
	if v := os.Getenv("AI_MAX_OUTPUT_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.envProblems = append(c.envProblems, fmt.Sprintf("AI_MAX_OUTPUT_TOKENS must be an integer, got %q", v))
		} else {
			c.LLM.MaxOutputTokens = n
		}
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		c.LLM.Timeout = v
	}

	if v := os.Getenv("GIT_BRANCH"); v != "" {
		c.Git.Branch = v
	}
	if v := os.Getenv("GIT_REMOTE"); v != "" {
		c.Git.Remote = v
	}
	if v := os.Getenv("GITHUB_REPO_URL"); v != "" {
		c.Git.RepoURL = v
	}
	if v := os.Getenv("GIT_AUTHOR_NAME"); v != "" {
		c.Git.AuthorName = v
	}
	if v := os.Getenv("GIT_AUTHOR_EMAIL"); v != "" {
		c.Git.AuthorEmail = v
	}

	if v := os.Getenv("WORKSPACE_PATH"); v != "" {
		c.Workspace.Path = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// resolveDefaults fills values that depend on other settings.
func (c *Config) resolveDefaults() {
	if spec, ok := LookupProvider(c.LLM.Provider); ok {
		if c.LLM.Model == "" {
			c.LLM.Model = spec.DefaultModel
		}
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = spec.DefaultBaseURL
		}
	}

	if c.Workspace.Path == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Workspace.Path = wd
		}
	}
	if abs, err := filepath.Abs(c.Workspace.Path); err == nil {
		c.Workspace.Path = abs
	}
}

// ValidationError lists every configuration problem found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// Validate validates the configuration and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string
	problems = append(problems, c.envProblems...)

	if c.Telegram.Token == "" {
		problems = append(problems, "TELEGRAM_TOKEN is not set")
	}
	if c.Telegram.AllowedUserID == 0 {
		problems = append(problems, "ALLOWED_USER_ID is not set")
	}
	if _, err := time.ParseDuration(c.Telegram.PINTTL); err != nil {
		problems = append(problems, fmt.Sprintf("PIN_TTL is not a duration: %q", c.Telegram.PINTTL))
	}

	spec, ok := LookupProvider(c.LLM.Provider)
	if !ok {
		problems = append(problems, fmt.Sprintf("AI_PROVIDER %q is invalid (valid: %s)",
			c.LLM.Provider, strings.Join(ValidProviders, ", ")))
	} else if spec.KeyEnv != "" && c.LLM.APIKey == "" {
		msg := fmt.Sprintf("%s is required when AI_PROVIDER=%s", spec.KeyEnv, spec.Name)
		if spec.KeyURL != "" {
			msg += " (get a key at " + spec.KeyURL + ")"
		}
		problems = append(problems, msg)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("AI_TEMPERATURE must be within [0, 2], got %v", c.LLM.Temperature))
	}
	if c.LLM.MaxOutputTokens <= 0 {
		problems = append(problems, fmt.Sprintf("AI_MAX_OUTPUT_TOKENS must be positive, got %d", c.LLM.MaxOutputTokens))
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		problems = append(problems, fmt.Sprintf("LLM_TIMEOUT is not a duration: %q", c.LLM.Timeout))
	}

	if c.Git.Branch == "" {
		problems = append(problems, "GIT_BRANCH must not be empty")
	}
	if c.Git.Remote == "" {
		problems = append(problems, "GIT_REMOTE must not be empty")
	}

	if info, err := os.Stat(c.Workspace.Path); err != nil || !info.IsDir() {
		problems = append(problems, fmt.Sprintf("WORKSPACE_PATH %q is not a directory", c.Workspace.Path))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// GetPINTTL returns the unlock window as a duration.
func (c *Config) GetPINTTL() time.Duration {
	d, err := time.ParseDuration(c.Telegram.PINTTL)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// GetLLMTimeout returns the completion HTTP timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return c.LLM.GetTimeout()
}

// Summary returns the resolved settings with secrets masked.
func (c *Config) Summary() []string {
	pin := "disabled"
	if c.Telegram.AccessPIN != "" {
		pin = fmt.Sprintf("enabled (ttl %s)", c.GetPINTTL())
	}
	return []string{
		"telegram token:   " + Mask(c.Telegram.Token),
		fmt.Sprintf("allowed user id:  %d", c.Telegram.AllowedUserID),
		"access pin:       " + pin,
		"provider:         " + c.LLM.Provider,
		"model:            " + c.LLM.Model,
		"api key:          " + Mask(c.LLM.APIKey),
		fmt.Sprintf("temperature:      %v", c.LLM.Temperature),
		fmt.Sprintf("max tokens:       %d", c.LLM.MaxOutputTokens),
		"git branch:       " + c.Git.Branch,
		"git remote:       " + c.Git.Remote,
		"repository url:   " + c.Git.RepoURL,
		"workspace:        " + c.Workspace.Path,
	}
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}
