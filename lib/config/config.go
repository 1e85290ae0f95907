// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "BUREAU_INBOX_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for installed desktops.
	Production Environment = "production"
)

// Config is the configuration of the inbox hub.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment"`

	// Paths configures sockets and descriptor search locations.
	Paths PathsConfig `yaml:"paths"`

	// Remote configures connections to running applications.
	Remote RemoteConfig `yaml:"remote"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Log configures the hub's logger.
	Log LogConfig `yaml:"log"`

	// Applications are desktop ids added to the registry at startup,
	// before any application registers itself. Changes made at
	// runtime are not written back.
	Applications []string `yaml:"applications"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Remote  *RemoteConfig  `yaml:"remote,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// PathsConfig configures file system locations.
type PathsConfig struct {
	// Socket is the hub's Unix socket.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/bureau-inbox/hub.sock
	Socket string `yaml:"socket"`

	// ApplicationDirs are searched in order for desktop entry files.
	// Default: $XDG_DATA_HOME/applications followed by each
	// $XDG_DATA_DIRS/applications.
	ApplicationDirs []string `yaml:"application_dirs"`

	// Manifests is the directory holding JSONC application manifests
	// for applications without a desktop entry. Optional.
	Manifests string `yaml:"manifests"`
}

// RemoteConfig configures connections to running applications.
type RemoteConfig struct {
	// HeartbeatTimeout is how long an application's subscribe stream
	// may stay silent before the application is considered gone.
	// Default: 30s
	HeartbeatTimeout string `yaml:"heartbeat_timeout"`

	// CallTimeout bounds each call forwarded to an application.
	// Default: 10s
	CallTimeout string `yaml:"call_timeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddress is the host:port serving /metrics. Empty
	// disables the endpoint.
	// Default: empty (development), 127.0.0.1:9464 (production)
	ListenAddress string `yaml:"listen_address"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: debug (development), info (production)
	Level string `yaml:"level"`
}

// Default returns the default configuration. LoadFile starts from it
// before reading the file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Socket:          "${XDG_RUNTIME_DIR:-/tmp}/bureau-inbox/hub.sock",
			ApplicationDirs: defaultApplicationDirs(),
		},
		Remote: RemoteConfig{
			HeartbeatTimeout: "30s",
			CallTimeout:      "10s",
		},
		Log: LogConfig{
			Level: "debug",
		},
	}
}

// defaultApplicationDirs follows the XDG base directory layout.
func defaultApplicationDirs() []string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, _ := os.UserHomeDir()
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}

	dirs := []string{filepath.Join(dataHome, "applications")}
	for _, dir := range filepath.SplitList(dataDirs) {
		if dir != "" {
			dirs = append(dirs, filepath.Join(dir, "applications"))
		}
	}
	return dirs
}

// Load loads configuration from the file named by BUREAU_INBOX_CONFIG.
// There is no fallback: if the variable is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your inbox.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, on top of
// Default. Environment overrides are applied, then ${VAR} and
// ${VAR:-default} references in path fields are expanded.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.ExpandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: quieter logs and a local metrics
		// endpoint.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Metrics: &MetricsConfig{ListenAddress: "127.0.0.1:9464"},
				Log:     &LogConfig{Level: "info"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Remote != nil {
		if overrides.Remote.HeartbeatTimeout != "" {
			c.Remote.HeartbeatTimeout = overrides.Remote.HeartbeatTimeout
		}
		if overrides.Remote.CallTimeout != "" {
			c.Remote.CallTimeout = overrides.Remote.CallTimeout
		}
	}

	if overrides.Metrics != nil && overrides.Metrics.ListenAddress != "" {
		c.Metrics.ListenAddress = overrides.Metrics.ListenAddress
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// ExpandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) ExpandVariables() {
	c.Paths.Socket = expandVars(c.Paths.Socket)
	c.Paths.Manifests = expandVars(c.Paths.Manifests)
	for i, dir := range c.Paths.ApplicationDirs {
		c.Paths.ApplicationDirs[i] = expandVars(dir)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
// Unset and empty variables take the default.
func expandVars(s string) string {
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

		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// HeartbeatTimeout returns Remote.HeartbeatTimeout as a duration.
// Call Validate first.
func (c *Config) HeartbeatTimeout() time.Duration {
	duration, _ := time.ParseDuration(c.Remote.HeartbeatTimeout)
	return duration
}

// CallTimeout returns Remote.CallTimeout as a duration. Call Validate
// first.
func (c *Config) CallTimeout() time.Duration {
	duration, _ := time.ParseDuration(c.Remote.CallTimeout)
	return duration
}

// LogLevel returns Log.Level as a slog level. Call Validate first.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Log.Level))
	return level
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Socket == "" {
		errs = append(errs, errors.New("paths.socket is required"))
	}
	if len(c.Paths.ApplicationDirs) == 0 && c.Paths.Manifests == "" {
		errs = append(errs, errors.New("at least one of paths.application_dirs and paths.manifests is required"))
	}

	for field, value := range map[string]string{
		"remote.heartbeat_timeout": c.Remote.HeartbeatTimeout,
		"remote.call_timeout":      c.Remote.CallTimeout,
	} {
		duration, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		} else if duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", field, value))
		}
	}

	if address := c.Metrics.ListenAddress; address != "" {
		if _, _, err := net.SplitHostPort(address); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen_address: %w", err))
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error"))
	}

	for index, application := range c.Applications {
		if strings.TrimSpace(application) == "" {
			errs = append(errs, fmt.Errorf("applications[%d] is empty", index))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
