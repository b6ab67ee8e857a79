// Package config loads the settings of the formula command from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	BaseDir string `yaml:"-"` // directory containing the config file

	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Store   StoreConfig   `yaml:"store"`
	Watch   WatchConfig   `yaml:"watch"`
}

// EngineConfig controls recalculation passes
type EngineConfig struct {
	Force  bool   `yaml:"force"`  // ignore cached results
	Async  bool   `yaml:"async"`  // allow async functions during passes
	Locale string `yaml:"locale"` // BCP 47 tag for TEXT, UPPER, DATEVALUE (default: en-US)
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// StoreConfig selects where sheets are kept
type StoreConfig struct {
	SQLite string `yaml:"sqlite"` // database path; empty keeps the sheet in memory
	Sheet  string `yaml:"sheet"`  // sheet name inside the database
}

// WatchConfig tunes script file watching
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Defaults returns a Config with sensible default values
func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			Locale: "en-US",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Sheet: "default",
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// Load reads configuration from a file with ENV interpolation. An empty
// path returns the defaults.
func Load(path string, getenv func(string) string) (*Config, error) {
	if path == "" {
		return Defaults(), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.BaseDir = filepath.Dir(absPath)
	if cfg.Store.SQLite != "" && !filepath.IsAbs(cfg.Store.SQLite) {
		cfg.Store.SQLite = filepath.Join(cfg.BaseDir, cfg.Store.SQLite)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors. Call it again after
// applying command line overrides.
func Validate(cfg *Config) error {
	var errs []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be json or text)", cfg.Logging.Format))
	}

	if _, err := language.Parse(cfg.Engine.Locale); err != nil {
		errs = append(errs, fmt.Sprintf("invalid locale: %q", cfg.Engine.Locale))
	}

	if cfg.Store.SQLite != "" && strings.TrimSpace(cfg.Store.Sheet) == "" {
		errs = append(errs, "store: sheet name is required with sqlite")
	}

	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Sprintf("invalid watch debounce: %s", cfg.Watch.Debounce))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Locale returns the parsed engine locale, falling back to American English.
func (c *Config) Locale() language.Tag {
	tag, err := language.Parse(c.Engine.Locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}
