// Package config handles pitchline configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tOgg1/pitchline/internal/logging"
)

// Config is the root configuration structure for pitchline.
type Config struct {
	// Backend is the message service the client talks to.
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`

	// Sync tunes polling and reconciliation.
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// View tunes the chat view.
	View ViewConfig `yaml:"view" mapstructure:"view"`

	// Session is where the logged-in identity is persisted.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Server configures the development backend (pitchd).
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

// BackendConfig contains message service settings.
type BackendConfig struct {
	// URL is the base URL of the message service.
	URL string `yaml:"url" mapstructure:"url"`

	// Timeout bounds one HTTP request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SyncConfig contains conversation sync settings.
type SyncConfig struct {
	// PollInterval is how often an open conversation refetches.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// MatchTolerance is how far a confirmed timestamp may drift from the
	// local send time and still replace the optimistic copy.
	MatchTolerance time.Duration `yaml:"match_tolerance" mapstructure:"match_tolerance"`
}

// ViewConfig contains chat view settings.
type ViewConfig struct {
	// ScrollThreshold is how many rows from the bottom still count as following.
	ScrollThreshold int `yaml:"scroll_threshold" mapstructure:"scroll_threshold"`

	// Theme is the color theme (default, high-contrast).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// TimeZone is an IANA zone for date grouping. Empty means local.
	TimeZone string `yaml:"time_zone" mapstructure:"time_zone"`
}

// SessionConfig contains session persistence settings.
type SessionConfig struct {
	// Path is the session file (default: ~/.config/pitchline/session.json).
	Path string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path. The chat view always logs here or nowhere.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// ServerConfig contains development backend settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" mapstructure:"addr"`

	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path" mapstructure:"db_path"`

	// RateLimitRPS is the sustained per-client request rate. Zero disables limiting.
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`

	// RateLimitBurst is the per-client burst size.
	RateLimitBurst int `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// Themes lists the accepted view.theme values.
var Themes = []string{"default", "high-contrast"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Sync: SyncConfig{
			PollInterval:   5 * time.Second,
			MatchTolerance: 10 * time.Second,
		},
		View: ViewConfig{
			ScrollThreshold: 2,
			Theme:           "default",
		},
		Session: SessionConfig{
			Path: filepath.Join(homeDir, ".config", "pitchline", "session.json"),
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			DBPath:         filepath.Join(homeDir, ".local", "share", "pitchline", "pitchd.db"),
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}

	if c.Sync.PollInterval < 500*time.Millisecond {
		return fmt.Errorf("sync.poll_interval must be at least 500ms")
	}
	if c.Sync.MatchTolerance <= 0 {
		return fmt.Errorf("sync.match_tolerance must be positive")
	}

	if c.View.ScrollThreshold < 1 {
		return fmt.Errorf("view.scroll_threshold must be at least 1")
	}
	if !validTheme(c.View.Theme) {
		return fmt.Errorf("view.theme must be one of %s", strings.Join(Themes, ", "))
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("view.time_zone: %w", err)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console")
	}

	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must not be negative")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("server.rate_limit_burst must be at least 1 when rate limiting is enabled")
	}

	return nil
}

// Location resolves view.time_zone. Empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	zone := strings.TrimSpace(c.View.TimeZone)
	if zone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(zone)
}

// LoggingInit converts the logging section for logging.Init.
func (c *Config) LoggingInit() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.File = c.Logging.File
	cfg.EnableCaller = c.Logging.EnableCaller
	return cfg
}

// EnsureDirectories creates the directories of configured file paths.
func (c *Config) EnsureDirectories() error {
	for _, path := range []string{c.Session.Path, c.Server.DBPath, c.Logging.File} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func validTheme(theme string) bool {
	for _, t := range Themes {
		if t == theme {
			return true
		}
	}
	return false
}
