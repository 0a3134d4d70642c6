// Package config reads kitbash settings from KITBASH_* environment
// variables. Command-line flags override them.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds process-wide settings.
type Config struct {
	// DefinitionsDir is the directory of .cue definition files.
	DefinitionsDir string `env:"KITBASH_DEFINITIONS" envDefault:"definitions"`

	// DBPath is the sqlite database for saved trees.
	DBPath string `env:"KITBASH_DB" envDefault:"kitbash.db"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `env:"KITBASH_LOG_LEVEL" envDefault:"warn"`

	// LogDevelopment switches to zap's human-readable console encoder.
	LogDevelopment bool `env:"KITBASH_LOG_DEV" envDefault:"false"`

	// WatchDebounce is the quiet period before `kitbash watch` reloads.
	WatchDebounce time.Duration `env:"KITBASH_WATCH_DEBOUNCE" envDefault:"300ms"`

	// MaxEventDepth bounds nested event dispatch per tree.
	MaxEventDepth int `env:"KITBASH_MAX_EVENT_DEPTH" envDefault:"8"`

	// Format is the default CLI output format: text or json.
	Format string `env:"KITBASH_FORMAT" envDefault:"text"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses a Config and checks its values.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("KITBASH_LOG_LEVEL: %w", err)
	}
	if c.MaxEventDepth < 1 {
		return fmt.Errorf("KITBASH_MAX_EVENT_DEPTH: must be at least 1, got %d", c.MaxEventDepth)
	}
	if c.WatchDebounce <= 0 {
		return fmt.Errorf("KITBASH_WATCH_DEBOUNCE: must be positive, got %s", c.WatchDebounce)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("KITBASH_FORMAT: want text or json, got %q", c.Format)
	}
	return nil
}

// Logger builds a zap logger at the configured level. verbose forces
// debug level.
func (c Config) Logger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	// Logs go to stderr so command output on stdout stays parseable.
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
