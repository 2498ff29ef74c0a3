package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mscherer/site-builder/internal/builder"
	"github.com/mscherer/site-builder/internal/errors"
)

func validateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate runs the domain checks in order and returns the first failure.
func (cv *configurationValidator) validate() error {
	if err := cv.validateProject(); err != nil {
		return err
	}
	if err := cv.validateBuilder(); err != nil {
		return err
	}
	if err := cv.validateAuth(); err != nil {
		return err
	}
	if err := cv.validateNotify(); err != nil {
		return err
	}
	if err := cv.validateDaemon(); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validateProject() error {
	name := cv.config.Name
	if name == "" {
		return errors.ConfigRequired("name")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.ValidationFailed("name", "must not contain path separators")
	}
	if iv := cv.config.RegularRebuildInterval; iv != nil && *iv < 0 {
		return errors.ValidationFailed("regular_rebuild_interval", "must not be negative")
	}
	return nil
}

func (cv *configurationValidator) validateBuilder() error {
	if cv.config.Builder == "" {
		return errors.ConfigRequired("builder")
	}
	if _, err := builder.Lookup(cv.config.Builder); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validateAuth() error {
	a := cv.config.GitAuth
	if a == nil {
		return nil
	}
	if !a.Type.IsValid() {
		return errors.ValidationFailed("git_auth.type", fmt.Sprintf("unsupported authentication type: %s", a.Type))
	}
	switch a.Type {
	case AuthTypeToken:
		if a.Token == "" {
			return errors.ValidationFailed("git_auth.token", "token authentication requires a token")
		}
	case AuthTypeBasic:
		if a.Username == "" || a.Password == "" {
			return errors.ValidationFailed("git_auth", "basic authentication requires username and password")
		}
	}
	return nil
}

func (cv *configurationValidator) validateNotify() error {
	n := cv.config.Notify
	if n.NATSURL == "" {
		return nil
	}
	if !strings.HasPrefix(n.NATSURL, "nats://") && !strings.HasPrefix(n.NATSURL, "tls://") {
		return errors.ValidationFailed("notify.nats_url", "must use nats:// or tls:// scheme")
	}
	return nil
}

func (cv *configurationValidator) validateDaemon() error {
	d := cv.config.Daemon
	if d.Schedule != "" {
		if n := len(strings.Fields(d.Schedule)); n != 5 && n != 6 {
			return errors.ValidationFailed("daemon.schedule", "cron expression must have 5 or 6 fields")
		}
	}
	if d.Interval != "" {
		iv, err := time.ParseDuration(d.Interval)
		if err != nil {
			return errors.ValidationFailed("daemon.interval", err.Error())
		}
		if iv < time.Minute {
			return errors.ValidationFailed("daemon.interval", "must be at least 1m")
		}
	}
	return nil
}

// DaemonInterval returns the parsed daemon interval, defaulting to 15 minutes.
func (c *Config) DaemonInterval() time.Duration {
	if iv, err := time.ParseDuration(c.Daemon.Interval); err == nil && iv > 0 {
		return iv
	}
	return 15 * time.Minute
}
