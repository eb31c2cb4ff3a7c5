package config

import "botcursor/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // console, json
	File       string          `yaml:"file"`       // optional log file, e.g. bot.log
	Categories map[string]bool `yaml:"categories"` // per-category toggles
}

// ToLogging converts the YAML settings into a logging.Config.
func (c LoggingConfig) ToLogging(verbose bool) logging.Config {
	return logging.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
		Verbose:    verbose,
	}
}
