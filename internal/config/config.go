// Package config loads and validates the per-project builder configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mscherer/site-builder/internal/errors"
)

// DefaultGitVersion is the ref used when git_version is omitted.
const DefaultGitVersion = "HEAD"

// Config represents one site project: where its source lives, which builder
// renders it and where the output is published.
type Config struct {
	Name                   string      `yaml:"name"`
	Builder                string      `yaml:"builder"`
	Remote                 string      `yaml:"remote,omitempty"`
	GitVersion             string      `yaml:"git_version,omitempty"`
	RegularRebuildInterval *float64    `yaml:"regular_rebuild_interval,omitempty"` // hours
	UpdateSubmoduleHead    bool        `yaml:"update_submodule_head,omitempty"`
	CheckoutDir            string      `yaml:"checkout_dir,omitempty"`
	SSHKey                 string      `yaml:"ssh_key,omitempty"`
	EnvFile                string      `yaml:"env_file,omitempty"`
	GitAuth                *AuthConfig `yaml:"git_auth,omitempty"`

	Log     LogConfig     `yaml:"log,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Notify  NotifyConfig  `yaml:"notify,omitempty"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`

	// BuildEnv holds variables read from EnvFile, applied to every external command.
	BuildEnv map[string]string `yaml:"-"`
}

// LogConfig configures the rotating system log. An empty File keeps logging on stderr.
type LogConfig struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// MetricsConfig configures the node_exporter textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// HistoryConfig configures the sqlite run history.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// NotifyConfig configures NATS run notifications.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig configures periodic runs. Schedule (cron) wins over Interval.
type DaemonConfig struct {
	Schedule string `yaml:"schedule,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

// RebuildInterval returns the configured forced-rebuild interval, if any.
func (c *Config) RebuildInterval() (time.Duration, bool) {
	if c.RegularRebuildInterval == nil {
		return 0, false
	}
	return time.Duration(*c.RegularRebuildInterval * float64(time.Hour)), true
}

// HasRemote reports whether output is published with rsync.
func (c *Config) HasRemote() bool { return c.Remote != "" }

// Load loads configuration from the specified file, applies defaults and validates it.
func Load(configPath string) (*Config, error) {
	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil, errors.ConfigNotFound(configPath)
	}
	if err != nil {
		return nil, errors.ConfigInvalid(configPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.ConfigNotAFile(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.ConfigInvalid(configPath, fmt.Errorf("failed to read config file: %w", err))
	}

	cfg, err := Parse(data)
	if err != nil {
		if _, ok := errors.AsClassified(err); ok {
			return nil, err
		}
		return nil, errors.ConfigInvalid(configPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML content (after ${VAR} expansion), applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyDefaults(&config); err != nil {
		return nil, err
	}
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	env, err := loadEnvFile(config.EnvFile)
	if err != nil {
		return nil, errors.ConfigInvalid(config.EnvFile, err).WithContext("field", "env_file")
	}
	config.BuildEnv = env

	return &config, nil
}
