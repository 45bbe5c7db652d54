package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PITCHLINE"

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:       viper.New(),
		envFile: ".env",
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// SetEnvFile sets the dotenv file read before env overrides. Empty disables it.
func (l *Loader) SetEnvFile(path string) {
	l.envFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars (.env included) < values set with Set
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	// .env never overrides variables already present in the environment
	if err := l.loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply env var overrides (Viper's Unmarshal doesn't properly merge env vars for nested structs)
	l.applyEnvOverrides(cfg)

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (l *Loader) loadEnvFile() error {
	if l.envFile == "" {
		return nil
	}
	if err := godotenv.Load(l.envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Session.Path = expandTilde(cfg.Session.Path)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
	cfg.Server.DBPath = expandTilde(cfg.Server.DBPath)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "pitchline"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "pitchline"))
	}

	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)

	// Explicitly bind environment variables (Viper's Unmarshal has issues without this)
	bindEnvVars(v)

	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	// Backend
	v.SetDefault("backend.url", cfg.Backend.URL)
	v.SetDefault("backend.timeout", cfg.Backend.Timeout)

	// Sync
	v.SetDefault("sync.poll_interval", cfg.Sync.PollInterval)
	v.SetDefault("sync.match_tolerance", cfg.Sync.MatchTolerance)

	// View
	v.SetDefault("view.scroll_threshold", cfg.View.ScrollThreshold)
	v.SetDefault("view.theme", cfg.View.Theme)
	v.SetDefault("view.time_zone", cfg.View.TimeZone)

	// Session
	v.SetDefault("session.path", cfg.Session.Path)

	// Logging
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	// Server
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.db_path", cfg.Server.DBPath)
	v.SetDefault("server.rate_limit_rps", cfg.Server.RateLimitRPS)
	v.SetDefault("server.rate_limit_burst", cfg.Server.RateLimitBurst)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Set overrides a key above every other source. Flags use this.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}

// envKeys lists every key that accepts a PITCHLINE_* override.
var envKeys = []string{
	// Backend
	"backend.url",
	"backend.timeout",
	// Sync
	"sync.poll_interval",
	"sync.match_tolerance",
	// View
	"view.scroll_threshold",
	"view.theme",
	"view.time_zone",
	// Session
	"session.path",
	// Logging
	"logging.level",
	"logging.format",
	"logging.file",
	"logging.enable_caller",
	// Server
	"server.addr",
	"server.db_path",
	"server.rate_limit_rps",
	"server.rate_limit_burst",
}

// EnvVar returns the environment variable that overrides key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// bindEnvVars binds environment variables for config keys.
// Viper's Unmarshal has issues with env vars on nested structs unless explicitly bound.
func bindEnvVars(v *viper.Viper) {
	for _, key := range envKeys {
		_ = v.BindEnv(key, EnvVar(key))
	}
}

// applyEnvOverrides manually applies env var overrides to the config struct.
// This is needed because Viper's Unmarshal doesn't properly merge env vars
// for nested struct fields when a config file is present.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v

	// Only apply keys that are actually present in the environment
	set := func(key string) bool {
		_, ok := os.LookupEnv(EnvVar(key))
		return ok
	}

	if set("backend.url") {
		cfg.Backend.URL = v.GetString("backend.url")
	}
	if set("backend.timeout") {
		cfg.Backend.Timeout = v.GetDuration("backend.timeout")
	}
	if set("sync.poll_interval") {
		cfg.Sync.PollInterval = v.GetDuration("sync.poll_interval")
	}
	if set("sync.match_tolerance") {
		cfg.Sync.MatchTolerance = v.GetDuration("sync.match_tolerance")
	}
	if set("view.theme") {
		cfg.View.Theme = v.GetString("view.theme")
	}
	if set("view.time_zone") {
		cfg.View.TimeZone = v.GetString("view.time_zone")
	}
	if set("session.path") {
		cfg.Session.Path = v.GetString("session.path")
	}
	if set("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if set("logging.format") {
		cfg.Logging.Format = v.GetString("logging.format")
	}
	if set("logging.file") {
		cfg.Logging.File = v.GetString("logging.file")
	}
	if set("server.db_path") {
		cfg.Server.DBPath = v.GetString("server.db_path")
	}
}
