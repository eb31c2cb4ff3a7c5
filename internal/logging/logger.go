// Package logging provides categorized logging for botcursor on top of zap.
// Each category is a named child of a single process logger so that every
// line carries its subsystem ("git", "completion", ...). Until Initialize is
// called all loggers are no-ops, which keeps packages quiet under test.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup, configuration
	CategoryBot        Category = "bot"        // Chat transport and command routing
	CategoryCompletion Category = "completion" // Completion backends, prompt/context building
	CategoryApply      Category = "apply"      // File operations against the workspace
	CategoryGit        Category = "git"        // Version control gateway
	CategorySession    Category = "session"    // Authorization and PIN unlocks
)

// Config controls the process logger.
type Config struct {
	Level      string          // debug, info, warn, error
	Format     string          // console, json
	File       string          // optional extra output path
	Categories map[string]bool // per-category switch; missing = enabled
	Verbose    bool            // forces debug level
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	sugared    = make(map[Category]*zap.SugaredLogger)
)

// Initialize builds the process logger from cfg and installs it.
func Initialize(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Sampling = nil
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch strings.ToLower(cfg.Format) {
	case "", "console", "text":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zcfg.Encoding = "json"
	default:
		return fmt.Errorf("invalid log format %q (valid: console, json)", cfg.Format)
	}
	zcfg.OutputPaths = []string{"stdout"}
	if cfg.File != "" {
		zcfg.OutputPaths = append(zcfg.OutputPaths, cfg.File)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	base = logger
	categories = cfg.Categories
	sugared = make(map[Category]*zap.SugaredLogger)
	mu.Unlock()
	return nil
}

// SetLogger installs an already-built logger (used by tests and embedders).
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	base = logger
	categories = nil
	sugared = make(map[Category]*zap.SugaredLogger)
	mu.Unlock()
}

// L returns the process logger for structured (non-printf) logging.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered log entries.
func Sync() error {
	return L().Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *zap.SugaredLogger {
	if !IsCategoryEnabled(category) {
		return zap.NewNop().Sugar()
	}

	mu.RLock()
	if l, ok := sugared[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := sugared[category]; ok {
		return l
	}
	l := base.Named(string(category)).Sugar()
	sugared[category] = l
	return l
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Infof(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debugf(format, args...)
}

// BootError logs error to the boot category
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Errorf(format, args...)
}

// Bot logs to the bot category
func Bot(format string, args ...interface{}) {
	Get(CategoryBot).Infof(format, args...)
}

// BotDebug logs debug to the bot category
func BotDebug(format string, args ...interface{}) {
	Get(CategoryBot).Debugf(format, args...)
}

// BotWarn logs warning to the bot category
func BotWarn(format string, args ...interface{}) {
	Get(CategoryBot).Warnf(format, args...)
}

// BotError logs error to the bot category
func BotError(format string, args ...interface{}) {
	Get(CategoryBot).Errorf(format, args...)
}

// Completion logs to the completion category
func Completion(format string, args ...interface{}) {
	Get(CategoryCompletion).Infof(format, args...)
}

// CompletionDebug logs debug to the completion category
func CompletionDebug(format string, args ...interface{}) {
	Get(CategoryCompletion).Debugf(format, args...)
}

// CompletionWarn logs warning to the completion category
func CompletionWarn(format string, args ...interface{}) {
	Get(CategoryCompletion).Warnf(format, args...)
}

// CompletionError logs error to the completion category
func CompletionError(format string, args ...interface{}) {
	Get(CategoryCompletion).Errorf(format, args...)
}

// Apply logs to the apply category
func Apply(format string, args ...interface{}) {
	Get(CategoryApply).Infof(format, args...)
}

// ApplyDebug logs debug to the apply category
func ApplyDebug(format string, args ...interface{}) {
	Get(CategoryApply).Debugf(format, args...)
}

// ApplyError logs error to the apply category
func ApplyError(format string, args ...interface{}) {
	Get(CategoryApply).Errorf(format, args...)
}

// Git logs to the git category
func Git(format string, args ...interface{}) {
	Get(CategoryGit).Infof(format, args...)
}

// GitDebug logs debug to the git category
func GitDebug(format string, args ...interface{}) {
	Get(CategoryGit).Debugf(format, args...)
}

// GitError logs error to the git category
func GitError(format string, args ...interface{}) {
	Get(CategoryGit).Errorf(format, args...)
}

// Session logs to the session category
func Session(format string, args ...interface{}) {
	Get(CategorySession).Infof(format, args...)
}

// SessionWarn logs warning to the session category
func SessionWarn(format string, args ...interface{}) {
	Get(CategorySession).Warnf(format, args...)
}

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warnf("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
