package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// document is the on-disk shape of Config. Durations are written in Go
// duration syntax so the file stays readable and viper parses it back.
type document struct {
	Backend struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"backend"`
	Sync struct {
		PollInterval   string `yaml:"poll_interval"`
		MatchTolerance string `yaml:"match_tolerance"`
	} `yaml:"sync"`
	View    ViewConfig    `yaml:"view"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// Marshal renders cfg as YAML accepted by Load.
func Marshal(cfg *Config) ([]byte, error) {
	var doc document
	doc.Backend.URL = cfg.Backend.URL
	doc.Backend.Timeout = cfg.Backend.Timeout.String()
	doc.Sync.PollInterval = cfg.Sync.PollInterval.String()
	doc.Sync.MatchTolerance = cfg.Sync.MatchTolerance.String()
	doc.View = cfg.View
	doc.Session = cfg.Session
	doc.Logging = cfg.Logging
	doc.Server = cfg.Server

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	return data, nil
}

// WriteFile writes cfg to path. An existing file is only replaced when
// overwrite is set.
func WriteFile(path string, cfg *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultPath is where `pitchline config init` writes.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pitchline", "config.yaml")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "pitchline", "config.yaml")
}
