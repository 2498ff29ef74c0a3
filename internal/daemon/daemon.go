// Package daemon runs build-deploy cycles on a schedule and reloads the
// project configuration when its file changes.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mscherer/site-builder/internal/config"
	"github.com/mscherer/site-builder/internal/cycle"
	"github.com/mscherer/site-builder/internal/errors"
	"github.com/mscherer/site-builder/internal/logfields"
)

// Runner runs one cycle.
type Runner interface {
	Run(ctx context.Context, opts cycle.Options) (cycle.Report, error)
}

// Factory builds the Runner for a configuration. It is called for every tick
// so reloaded settings apply to the next cycle.
type Factory func(cfg *config.Config) (Runner, error)

// Daemon owns the scheduler and the configuration watcher.
type Daemon struct {
	configPath string
	factory    Factory
	opts       cycle.Options
	logger     *slog.Logger

	mu        sync.RWMutex
	cfg       *config.Config
	scheduler *Scheduler
	watcher   *ConfigWatcher
}

// New creates a daemon for the project loaded from configPath. opts apply to
// every cycle; Force is ignored.
func New(configPath string, cfg *config.Config, factory Factory, opts cycle.Options, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Force = false
	return &Daemon{
		configPath: configPath,
		cfg:        cfg,
		factory:    factory,
		opts:       opts,
		logger:     logger,
	}
}

// Config returns the configuration currently in effect.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Run schedules cycles and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	scheduler, err := NewScheduler(d.logger)
	if err != nil {
		return err
	}
	cfg := d.Config()
	if err := scheduler.ScheduleCycles(cfg, func() { d.tick(ctx) }); err != nil {
		_ = scheduler.Stop()
		return err
	}

	d.mu.Lock()
	d.scheduler = scheduler
	d.mu.Unlock()

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.Reload, d.logger)
		if err != nil {
			_ = scheduler.Stop()
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			_ = scheduler.Stop()
			return err
		}
		d.watcher = watcher
	}

	scheduler.Start()
	d.logger.InfoContext(ctx, "Daemon started", logfields.Project(cfg.Name), slog.String("schedule", scheduleString(cfg)))

	<-ctx.Done()
	d.logger.Info("Stopping daemon")

	if d.watcher != nil {
		_ = d.watcher.Stop()
	}
	return scheduler.Stop()
}

// tick runs one locked cycle. Failures are logged; the schedule continues.
func (d *Daemon) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer d.logNextRun(ctx)
	cfg := d.Config()
	r, err := d.factory(cfg)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to prepare cycle", logfields.Project(cfg.Name), logfields.Error(err))
		return
	}

	rep, err := r.Run(ctx, d.opts)
	switch {
	case err == nil:
		d.logger.DebugContext(ctx, "Scheduled cycle done", logfields.RunID(rep.RunID), logfields.Outcome(string(rep.Outcome)))
	case errors.IsCategory(err, errors.CategoryConcurrency):
		d.logger.DebugContext(ctx, "Cycle skipped, builder already running", logfields.Project(cfg.Name))
	default:
		if sf, ok := errors.AsStageFailure(err); ok {
			d.logger.ErrorContext(ctx, "Scheduled cycle failed",
				logfields.RunID(rep.RunID), logfields.Stage(string(sf.Stage)), logfields.Error(err))
			return
		}
		d.logger.ErrorContext(ctx, "Scheduled cycle failed", logfields.RunID(rep.RunID), logfields.Error(err))
	}
}

func (d *Daemon) logNextRun(ctx context.Context) {
	d.mu.RLock()
	scheduler := d.scheduler
	d.mu.RUnlock()
	if scheduler == nil || ctx.Err() != nil {
		return
	}
	if next, err := scheduler.NextRun(); err == nil && !next.IsZero() {
		d.logger.DebugContext(ctx, "Next cycle scheduled", slog.Time("at", next))
	}
}

// Reload re-reads the configuration file. An invalid file, or one naming a
// different project, leaves the running configuration in place.
func (d *Daemon) Reload(ctx context.Context) error {
	d.logger.InfoContext(ctx, "Reloading configuration", logfields.Path(d.configPath))

	next, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new configuration: %w", err)
	}

	d.mu.Lock()
	current := d.cfg
	if next.Name != current.Name {
		d.mu.Unlock()
		return errors.ValidationFailed("name", "changing the project name requires a restart")
	}
	d.cfg = next
	scheduler := d.scheduler
	d.mu.Unlock()

	if scheduler != nil && scheduleString(next) != scheduleString(current) {
		if err := scheduler.Reschedule(next); err != nil {
			return err
		}
		d.logger.InfoContext(ctx, "Schedule updated", slog.String("schedule", scheduleString(next)))
	}

	d.logger.InfoContext(ctx, "Configuration reloaded successfully")
	return nil
}
