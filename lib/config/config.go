// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "TABPULSE_CONFIG"

// Config is the master configuration for Tabpulse components.
type Config struct {
	// Paths configures directory and file locations.
	Paths PathsConfig `yaml:"paths"`

	// Service configures the shared presence store service.
	Service ServiceConfig `yaml:"service"`

	// Presence configures the per-tab session and registry poller.
	Presence PresenceConfig `yaml:"presence"`
}

// PathsConfig configures filesystem locations.
type PathsConfig struct {
	// Root is the base directory for Tabpulse data.
	Root string `yaml:"root"`

	// State is the durable state directory. Holds the device
	// identifier; survives restarts.
	State string `yaml:"state"`

	// Session is the session-scoped directory. Holds per-tab
	// identifiers; expected to be cleared between sessions (a
	// tmpfs or per-login runtime dir).
	Session string `yaml:"session"`
}

// ServiceConfig configures the presence store service.
type ServiceConfig struct {
	// SocketPath is the Unix socket the service listens on and the
	// agents and CLI connect to.
	SocketPath string `yaml:"socket_path"`

	// DatabasePath is the SQLite database file backing the store.
	DatabasePath string `yaml:"database_path"`

	// PoolSize is the SQLite connection pool size. Defaults to 4.
	PoolSize int `yaml:"pool_size"`

	// RetentionDays drops presence rows whose last_seen is older
	// than this many days. Zero disables the sweep entirely and rows
	// remain as last-known history indefinitely. Disabled is the
	// default.
	RetentionDays int `yaml:"retention_days"`
}

// PresenceConfig configures heartbeat and classification timing. All
// values are in seconds; zero means the built-in default.
type PresenceConfig struct {
	// HeartbeatSeconds is the interval between presence upserts.
	// Default 30.
	HeartbeatSeconds int `yaml:"heartbeat_seconds"`

	// PollSeconds is the registry poll interval. Default 3.
	PollSeconds int `yaml:"poll_seconds"`

	// IdleThresholdSeconds is how long without user activity before
	// a tab is classified Idle. Default 300 (5 minutes).
	IdleThresholdSeconds int `yaml:"idle_threshold_seconds"`

	// StaleThresholdSeconds is how long without user activity before
	// a tab is classified Stale. Default 1800 (30 minutes).
	StaleThresholdSeconds int `yaml:"stale_threshold_seconds"`
}

// Heartbeat returns the heartbeat interval as a duration.
func (p PresenceConfig) Heartbeat() time.Duration {
	return secondsOr(p.HeartbeatSeconds, 30*time.Second)
}

// Poll returns the registry poll interval as a duration.
func (p PresenceConfig) Poll() time.Duration {
	return secondsOr(p.PollSeconds, 3*time.Second)
}

// IdleThreshold returns the idle classification threshold.
func (p PresenceConfig) IdleThreshold() time.Duration {
	return secondsOr(p.IdleThresholdSeconds, 5*time.Minute)
}

// StaleThreshold returns the stale classification threshold.
func (p PresenceConfig) StaleThreshold() time.Duration {
	return secondsOr(p.StaleThresholdSeconds, 30*time.Minute)
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Default returns the default configuration. Used as the base before
// loading a file, and directly when no file is configured.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".cache", "tabpulse")

	return &Config{
		Paths: PathsConfig{
			Root:    root,
			State:   filepath.Join(root, "state"),
			Session: filepath.Join(root, "session"),
		},
		Service: ServiceConfig{
			SocketPath:   filepath.Join(root, "service.sock"),
			DatabasePath: filepath.Join(root, "presence.db"),
			PoolSize:     4,
		},
		Presence: PresenceConfig{},
	}
}

// Load loads configuration from the path given by TABPULSE_CONFIG,
// or returns Default() when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"TABPULSE_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["TABPULSE_ROOT"] = c.Paths.Root // Dependent paths see the expanded root.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.Session = expandVars(c.Paths.Session, vars)
	c.Service.SocketPath = expandVars(c.Service.SocketPath, vars)
	c.Service.DatabasePath = expandVars(c.Service.DatabasePath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Service.SocketPath == "" {
		errs = append(errs, fmt.Errorf("service.socket_path is required"))
	}
	if c.Service.DatabasePath == "" {
		errs = append(errs, fmt.Errorf("service.database_path is required"))
	}
	if c.Service.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("service.retention_days must not be negative"))
	}
	if c.Presence.IdleThreshold() >= c.Presence.StaleThreshold() {
		errs = append(errs, fmt.Errorf("presence.idle_threshold_seconds must be below stale_threshold_seconds"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.State,
		c.Paths.Session,
		filepath.Dir(c.Service.SocketPath),
		filepath.Dir(c.Service.DatabasePath),
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
