package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultNotifySubject is used when notify.nats_url is set without a subject.
const DefaultNotifySubject = "builder.events"

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ProjectDefaultApplier fills in the git ref and the home-relative project paths.
type ProjectDefaultApplier struct{}

func (p *ProjectDefaultApplier) Domain() string { return "project" }

func (p *ProjectDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Builder = strings.TrimSpace(cfg.Builder)
	if cfg.GitVersion == "" {
		cfg.GitVersion = DefaultGitVersion
	}
	if cfg.Name == "" {
		return nil // reported by validation
	}
	if cfg.CheckoutDir == "" {
		cfg.CheckoutDir = filepath.Join("~", cfg.Name)
	}
	if cfg.SSHKey == "" {
		cfg.SSHKey = filepath.Join("~", ".ssh", cfg.Name+"_id.rsa")
	}
	cfg.CheckoutDir = ExpandHome(cfg.CheckoutDir)
	cfg.SSHKey = ExpandHome(cfg.SSHKey)
	cfg.EnvFile = ExpandHome(cfg.EnvFile)
	if cfg.GitAuth != nil {
		cfg.GitAuth.KeyPath = ExpandHome(cfg.GitAuth.KeyPath)
	}
	return nil
}

// LogDefaultApplier handles rotation defaults for the system log file.
type LogDefaultApplier struct{}

func (l *LogDefaultApplier) Domain() string { return "log" }

func (l *LogDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Log.File == "" {
		return nil
	}
	cfg.Log.File = ExpandHome(cfg.Log.File)
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 30
	}
	return nil
}

// IntegrationDefaultApplier handles metrics, history and notification defaults.
type IntegrationDefaultApplier struct{}

func (i *IntegrationDefaultApplier) Domain() string { return "integrations" }

func (i *IntegrationDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Metrics.Textfile = ExpandHome(cfg.Metrics.Textfile)
	cfg.History.Path = ExpandHome(cfg.History.Path)
	if cfg.Notify.NATSURL != "" && cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNotifySubject
	}
	return nil
}

// DaemonDefaultApplier trims the daemon schedule.
type DaemonDefaultApplier struct{}

func (d *DaemonDefaultApplier) Domain() string { return "daemon" }

func (d *DaemonDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Daemon.Schedule = strings.TrimSpace(cfg.Daemon.Schedule)
	cfg.Daemon.Interval = strings.TrimSpace(cfg.Daemon.Interval)
	return nil
}

var defaultAppliers = []DefaultApplier{
	&ProjectDefaultApplier{},
	&LogDefaultApplier{},
	&IntegrationDefaultApplier{},
	&DaemonDefaultApplier{},
}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
