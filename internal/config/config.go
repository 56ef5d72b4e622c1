// Package config loads server configuration.
//
// Config file locations (priority order):
//  1. $LANWATCH_CONFIG
//  2. ./lanwatch.yaml
//  3. $XDG_CONFIG_HOME/lanwatch/config.yaml
//  4. ~/.config/lanwatch/config.yaml
//  5. /etc/lanwatch/config.yaml
//
// Missing files are not an error; defaults apply. Runtime-tunable
// settings (scan cadence, connectors) live in their own stores under
// the data directory, not here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath is the environment variable for an explicit config path.
	EnvConfigPath = "LANWATCH_CONFIG"
	configFile    = "lanwatch.yaml"
	configDir     = "lanwatch"
)

// Config is the static server configuration.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `yaml:"listenAddr"`
	// DataDir holds the database, settings files, and vault.
	DataDir string `yaml:"dataDir"`
	// DatabasePath overrides the default DataDir/lanwatch.db location.
	DatabasePath string `yaml:"databasePath"`
	// LogLevel is a zerolog level name (trace..panic).
	LogLevel string `yaml:"logLevel"`
	// StaleAfterSeconds is how long a silent device stays online.
	StaleAfterSeconds int `yaml:"staleAfterSeconds"`
	// ConnectorPollSeconds is the router connector cadence.
	ConnectorPollSeconds int `yaml:"connectorPollSeconds"`
	// FingerprintIntervalSeconds is the gateway probe cadence.
	FingerprintIntervalSeconds int `yaml:"fingerprintIntervalSeconds"`
}

// Load finds and loads the config file, or returns defaults when none
// exists. The second return value is the path that was loaded, empty
// for defaults.
func Load() (*Config, string, error) {
	path := findConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from an explicit path.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, path, nil
}

// DefaultConfig returns the defaults for a new installation.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Database returns the effective database path.
func (c *Config) Database() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.DataDir, "lanwatch.db")
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.StaleAfterSeconds <= 0 {
		c.StaleAfterSeconds = 120
	}
	if c.ConnectorPollSeconds <= 0 {
		c.ConnectorPollSeconds = 300
	}
	if c.FingerprintIntervalSeconds <= 0 {
		c.FingerprintIntervalSeconds = 300
	}
}

func findConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" && fileExists(path) {
		return path
	}
	if fileExists(configFile) {
		if abs, err := filepath.Abs(configFile); err == nil {
			return abs
		}
		return configFile
	}
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		if path := filepath.Join(xdgHome, configDir, "config.yaml"); fileExists(path) {
			return path
		}
	}
	if home := os.Getenv("HOME"); home != "" {
		if path := filepath.Join(home, ".config", configDir, "config.yaml"); fileExists(path) {
			return path
		}
	}
	if path := filepath.Join("/etc", configDir, "config.yaml"); fileExists(path) {
		return path
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
