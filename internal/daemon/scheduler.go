package daemon

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/mscherer/site-builder/internal/config"
)

// Scheduler wraps the gocron scheduler running the cycle job.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger

	mu   sync.Mutex
	job  gocron.Job
	task func()
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// ScheduleCycles registers task on the schedule of cfg. The job starts
// immediately and never overlaps itself: a tick that comes due while a cycle
// is still running is dropped.
func (s *Scheduler) ScheduleCycles(cfg *config.Config, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := append(jobOptions(cfg), gocron.WithStartAt(gocron.WithStartImmediately()))
	job, err := s.scheduler.NewJob(jobDefinition(cfg), gocron.NewTask(task), opts...)
	if err != nil {
		return fmt.Errorf("failed to create cycle job: %w", err)
	}
	s.job = job
	s.task = task
	return nil
}

// Reschedule replaces the job definition with the schedule of cfg.
func (s *Scheduler) Reschedule(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return fmt.Errorf("no cycle job scheduled")
	}

	job, err := s.scheduler.Update(s.job.ID(), jobDefinition(cfg), gocron.NewTask(s.task), jobOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to update cycle job: %w", err)
	}
	s.job = job
	return nil
}

// NextRun reports when the cycle job runs next.
func (s *Scheduler) NextRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return time.Time{}, fmt.Errorf("no cycle job scheduled")
	}
	return s.job.NextRun()
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for a running cycle.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

func jobDefinition(cfg *config.Config) gocron.JobDefinition {
	if cfg.Daemon.Schedule != "" {
		withSeconds := len(strings.Fields(cfg.Daemon.Schedule)) == 6
		return gocron.CronJob(cfg.Daemon.Schedule, withSeconds)
	}
	return gocron.DurationJob(cfg.DaemonInterval())
}

func jobOptions(cfg *config.Config) []gocron.JobOption {
	return []gocron.JobOption{
		gocron.WithName("build-deploy-" + cfg.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
}

func scheduleString(cfg *config.Config) string {
	if cfg.Daemon.Schedule != "" {
		return "cron " + cfg.Daemon.Schedule
	}
	return "every " + cfg.DaemonInterval().String()
}
