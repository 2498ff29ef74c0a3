// Package cycle runs one build-deploy cycle for a site project: it takes the
// project lock, decides from the upstream state whether anything changed,
// refreshes the checkout, builds, publishes and records the new status.
package cycle

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mscherer/site-builder/internal/builder"
	"github.com/mscherer/site-builder/internal/change"
	"github.com/mscherer/site-builder/internal/config"
	"github.com/mscherer/site-builder/internal/deploy"
	"github.com/mscherer/site-builder/internal/errors"
	"github.com/mscherer/site-builder/internal/eventstore"
	"github.com/mscherer/site-builder/internal/executor"
	"github.com/mscherer/site-builder/internal/git"
	"github.com/mscherer/site-builder/internal/lock"
	"github.com/mscherer/site-builder/internal/logfields"
	"github.com/mscherer/site-builder/internal/logging"
	"github.com/mscherer/site-builder/internal/metrics"
	"github.com/mscherer/site-builder/internal/runlog"
	"github.com/mscherer/site-builder/internal/state"
)

// Locale and search path every external command runs with.
const (
	utf8Locale = "en_US.UTF-8"
	extraPath  = "/usr/local/bin:/srv/builder/bin"
)

// Inspector resolves the upstream state of a checkout.
type Inspector interface {
	Inspect(ctx context.Context, dir, ref string) (git.Snapshot, error)
}

// Report describes what a cycle did.
type Report struct {
	RunID    string
	Decision change.Decision
	Snapshot git.Snapshot
	Steps    []builder.Step
	Publish  deploy.Result
	Outcome  metrics.RunOutcome
	Duration time.Duration
}

// Cycle runs build-deploy cycles for one project.
type Cycle struct {
	cfg       *config.Config
	paths     config.Paths
	inspector Inspector
	runner    executor.Runner
	metrics   metrics.Recorder
	textfile  string
	sinks     []eventstore.Sink
	logger    *slog.Logger
	stdout    io.Writer
	now       func() time.Time
	newRunID  func() string
}

// New creates a cycle for cfg. Without WithInspector the checkout is
// inspected with go-git using cfg.GitAuth.
func New(cfg *config.Config, paths config.Paths, opts ...Option) (*Cycle, error) {
	c := &Cycle{
		cfg:      cfg,
		paths:    paths,
		metrics:  metrics.NoopRecorder{},
		logger:   slog.Default(),
		stdout:   os.Stdout,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.runner == nil {
		c.runner = executor.NewExecRunner(c.logger)
	}
	if c.inspector == nil {
		auth, err := git.AuthMethod(cfg.GitAuth)
		if err != nil {
			return nil, errors.ValidationFailed("git_auth", err.Error())
		}
		c.inspector = git.NewInspector(auth, c.logger)
	}
	return c, nil
}

// run is the state of one cycle once the lock is held.
type run struct {
	id        string
	opts      Options
	start     time.Time
	snapshot  git.Snapshot
	outputDir string
	env       map[string]string
	log       *runlog.Log
	started   bool // RunStarted emitted
	logFailed bool // a run log write failed and was reported
}

// Run executes one cycle. The lock marker is removed on every return path
// once it has been created.
func (c *Cycle) Run(ctx context.Context, opts Options) (Report, error) {
	r := &run{id: c.newRunID(), opts: opts, start: c.now()}
	rep := Report{RunID: r.id}
	ctx = logging.WithProject(logging.WithRunID(ctx, r.id), c.cfg.Name)

	lk, err := lock.Acquire(c.paths.LockDir, c.cfg.Name)
	if err != nil {
		return rep, err
	}
	defer func() {
		if rerr := lk.Release(); rerr != nil {
			c.logger.WarnContext(ctx, "Failed to remove lock marker", logfields.Path(lk.Path()), logfields.Error(rerr))
		}
	}()
	defer r.closeLog()

	err = c.runLocked(ctx, r, &rep)
	c.finish(ctx, r, &rep, err)
	return rep, err
}

func (c *Cycle) runLocked(ctx context.Context, r *run, rep *Report) error {
	store := state.NewStore(c.paths.StatusFile)
	prior, err := store.Load()
	if err != nil {
		return err
	}

	if info, statErr := os.Stat(c.paths.Checkout); statErr != nil || !info.IsDir() {
		return errors.CheckoutMissing(c.paths.Checkout)
	}
	r.env = c.baseEnv()

	snap, err := c.inspector.Inspect(ctx, c.paths.Checkout, c.cfg.GitVersion)
	if err != nil {
		return c.fail(ctx, r, &errors.StageFailure{Stage: errors.StageSetup, Output: err.Error(), Cause: err})
	}
	r.snapshot = snap
	rep.Snapshot = snap

	decision := change.Decide(change.Input{
		Prior:    prior,
		Current:  snap,
		Force:    r.opts.Force,
		Interval: c.rebuildInterval(),
		Now:      c.now(),
	})
	rep.Decision = decision

	if !decision.Rebuild {
		c.logger.DebugContext(ctx, "Nothing to build", logfields.Commit(snap.Commit))
		if err := store.Save(prior.Observed(snap.Commit, snap.Submodules)); err != nil {
			return err
		}
		rep.Outcome = metrics.OutcomeUpToDate
		c.emit(ctx, func() (eventstore.Event, error) {
			return eventstore.NewRunSkipped(r.id, c.cfg.Name, snap.Commit)
		})
		return nil
	}

	if err := c.openLog(r); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Start the build",
		logfields.Builder(c.cfg.Builder),
		logfields.Commit(snap.Commit),
		logfields.Reason(decision.String()))
	r.started = true
	c.emit(ctx, func() (eventstore.Event, error) {
		reasons := make([]string, len(decision.Reasons))
		for i, reason := range decision.Reasons {
			reasons[i] = string(reason)
		}
		return eventstore.NewRunStarted(r.id, c.cfg.Name, snap.Commit, reasons, r.opts.Force, r.opts.SyncOnly, r.opts.DryRun)
	})

	if err := c.refresh(ctx, r); err != nil {
		return err
	}

	profile, err := builder.Lookup(c.cfg.Builder)
	if err != nil {
		return err
	}
	r.outputDir, err = builder.PrepareOutput(profile, c.paths.Checkout)
	if err != nil {
		return err
	}

	if !r.opts.SyncOnly {
		if err := c.build(ctx, r, rep, profile); err != nil {
			return err
		}
	}

	if err := c.publish(ctx, r, rep, profile); err != nil {
		return err
	}

	if err := store.Save(state.Built(snap.Commit, snap.Submodules, c.now())); err != nil {
		return err
	}
	if r.opts.DryRun {
		rep.Outcome = metrics.OutcomeDryRun
	} else {
		rep.Outcome = metrics.OutcomePublished
	}
	return nil
}

// refresh brings the checkout to the upstream state: local changes are
// stashed and dropped, the branch is rebased, submodules are synced.
func (c *Cycle) refresh(ctx context.Context, r *run) error {
	var cmds [][]string
	if !r.opts.NoRefresh {
		cmds = append(cmds,
			[]string{"git", "stash"},
			[]string{"git", "stash", "clear"},
			[]string{"git", "pull", "--rebase"},
		)
	}
	if len(r.snapshot.Submodules) > 0 {
		cmds = append(cmds,
			[]string{"git", "submodule", "init"},
			[]string{"git", "submodule", "sync"},
		)
		if c.cfg.UpdateSubmoduleHead {
			cmds = append(cmds, []string{"git", "submodule", "update", "--remote", "--force"})
		}
	}

	for _, args := range cmds {
		cmd := executor.New(errors.StageSetup, c.paths.Checkout, args...).WithEnv(r.env)
		res, err := c.runner.Run(ctx, cmd)
		c.metrics.ObserveStageDuration(string(errors.StageSetup), res.Duration)
		if err != nil {
			return c.fail(ctx, r, err)
		}
		c.print(ctx, r, res.Output)
	}
	if len(cmds) > 0 {
		c.metrics.IncStageResult(string(errors.StageSetup), metrics.ResultSuccess)
	}
	return nil
}

func (c *Cycle) build(ctx context.Context, r *run, rep *Report, profile builder.Profile) error {
	d := builder.NewDispatcher(c.runner, c.logger)
	steps, err := d.Dispatch(logging.WithStage(ctx, string(errors.StageBuild)), profile, c.paths.Checkout, r.env)
	rep.Steps = steps
	for i, step := range steps {
		c.metrics.ObserveStageDuration(string(step.Stage), step.Duration)
		if err != nil && i == len(steps)-1 {
			break
		}
		c.metrics.IncStageResult(string(step.Stage), metrics.ResultSuccess)
		c.print(ctx, r, step.Output)
	}
	if err != nil {
		return c.fail(ctx, r, err)
	}

	// The log goes out with the site.
	if _, err := r.log.CopyInto(r.outputDir); err != nil {
		c.logger.WarnContext(ctx, "Failed to copy run log into output", logfields.Path(r.outputDir), logfields.Error(err))
	}
	return nil
}

func (c *Cycle) publish(ctx context.Context, r *run, rep *Report, profile builder.Profile) error {
	syncer := deploy.NewSyncer(c.runner, c.logger)
	began := c.now()
	res, err := syncer.Publish(logging.WithStage(ctx, string(errors.StageDeploy)), deploy.Request{
		OutputDir:     r.outputDir,
		Checkout:      c.paths.Checkout,
		Remote:        c.cfg.Remote,
		SSHKey:        c.paths.SSHKey,
		DeployCommand: profile.DeployCommand,
		Env:           r.env,
		DryRun:        r.opts.DryRun,
	})
	rep.Publish = res
	if err != nil {
		c.metrics.ObserveStageDuration(string(errors.StageDeploy), c.now().Sub(began))
		return c.fail(ctx, r, err)
	}

	if res.Outcome == deploy.OutcomeDryRun {
		c.metrics.IncStageResult(string(errors.StageDeploy), metrics.ResultSkipped)
		return nil
	}
	c.metrics.ObserveStageDuration(string(errors.StageDeploy), c.now().Sub(began))
	c.metrics.IncStageResult(string(errors.StageDeploy), metrics.ResultSuccess)
	c.print(ctx, r, res.Output)
	c.emit(ctx, func() (eventstore.Event, error) {
		return eventstore.NewPublished(r.id, c.cfg.Name, string(res.Outcome), c.cfg.Remote)
	})
	return nil
}

// fail records a stage failure in the run log and, with a remote configured,
// publishes that log on a best-effort basis. Other errors pass through.
func (c *Cycle) fail(ctx context.Context, r *run, err error) error {
	sf, ok := errors.AsStageFailure(err)
	if !ok {
		return err
	}
	c.metrics.IncStageResult(string(sf.Stage), metrics.ResultFailed)
	c.logger.ErrorContext(ctx, "Stage failed", logfields.Stage(string(sf.Stage)), logfields.Error(sf))
	c.emit(ctx, func() (eventstore.Event, error) {
		return eventstore.NewStageFailed(r.id, c.cfg.Name, string(sf.Stage), sf.Output, sf.Cause)
	})

	if r.log == nil {
		if oerr := c.openLog(r); oerr != nil {
			c.logger.WarnContext(ctx, "Failed to open run log", logfields.Error(oerr))
			return err
		}
	}
	c.print(ctx, r, sf.Output)
	c.record(ctx, r, "ERROR: "+sf.Error())

	if !c.cfg.HasRemote() {
		return err
	}
	dir := r.outputDir
	if dir == "" {
		if profile, lerr := builder.Lookup(c.cfg.Builder); lerr == nil {
			dir = profile.OutputDir(c.paths.Checkout)
		}
	}
	dst, cerr := r.log.CopyInto(dir)
	if cerr != nil {
		c.logger.DebugContext(ctx, "Run log not published", logfields.Error(cerr))
		return err
	}
	syncer := deploy.NewSyncer(c.runner, c.logger)
	if perr := syncer.PublishFile(ctx, dst, c.cfg.Remote, c.paths.SSHKey, r.env); perr != nil {
		c.logger.DebugContext(ctx, "Run log not published", logfields.Error(perr))
	}
	return err
}

// finish records the run outcome in metrics and events.
func (c *Cycle) finish(ctx context.Context, r *run, rep *Report, err error) {
	rep.Duration = c.now().Sub(r.start)
	if err != nil {
		rep.Outcome = metrics.OutcomeFailed
	}
	if rep.Outcome == "" {
		return
	}

	c.metrics.ObserveRunDuration(rep.Duration)
	c.metrics.IncRunOutcome(rep.Outcome)
	if err == nil && rep.Outcome != metrics.OutcomeUpToDate {
		c.metrics.SetLastSuccess(c.now())
	}
	if r.started || err != nil {
		c.emit(ctx, func() (eventstore.Event, error) {
			return eventstore.NewRunCompleted(r.id, c.cfg.Name, string(rep.Outcome), rep.Duration)
		})
	}

	level := slog.LevelInfo
	if rep.Outcome == metrics.OutcomeUpToDate {
		level = slog.LevelDebug
	}
	c.logger.Log(ctx, level, "Cycle finished",
		logfields.Outcome(string(rep.Outcome)),
		logfields.DurationMS(float64(rep.Duration.Milliseconds())))

	if c.textfile == "" {
		return
	}
	if w, ok := c.metrics.(interface{ WriteTextfile(string) error }); ok {
		if werr := w.WriteTextfile(c.textfile); werr != nil {
			c.logger.WarnContext(ctx, "Failed to write metrics textfile", logfields.Path(c.textfile), logfields.Error(werr))
		}
	}
}

// emit sends an event to every sink. Sink failures are logged and dropped.
func (c *Cycle) emit(ctx context.Context, build func() (eventstore.Event, error)) {
	if len(c.sinks) == 0 {
		return
	}
	event, err := build()
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to build event", logfields.Error(err))
		return
	}
	for _, s := range c.sinks {
		if err := s.Emit(ctx, event); err != nil {
			c.logger.WarnContext(ctx, "Failed to emit event", slog.String("type", event.Type()), logfields.Error(err))
		}
	}
}

func (c *Cycle) openLog(r *run) error {
	var mirror io.Writer
	if r.opts.Debug {
		mirror = c.stdout
	}
	l, err := runlog.Open(c.paths.RunLog, mirror)
	if err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "failed to open run log").
			WithContext("path", c.paths.RunLog)
	}
	r.log = l
	return l.WriteHeader(runlog.Header{
		Date:       c.now(),
		Commit:     r.snapshot.Commit,
		Submodules: r.snapshot.Submodules,
	})
}

// baseEnv is the overlay applied to every command of the cycle.
func (c *Cycle) baseEnv() map[string]string {
	env := map[string]string{
		"LC_ALL":   utf8Locale,
		"LANG":     utf8Locale,
		"LANGUAGE": utf8Locale,
		"PATH":     extraPath + ":" + os.Getenv("PATH"),
	}
	for k, v := range c.cfg.BuildEnv {
		env[k] = v
	}
	return env
}

func (c *Cycle) rebuildInterval() *time.Duration {
	iv, ok := c.cfg.RebuildInterval()
	if !ok {
		return nil
	}
	return &iv
}

// print appends command output to the run log, mirrored in debug mode.
func (c *Cycle) print(ctx context.Context, r *run, output string) {
	if r.log == nil || output == "" {
		return
	}
	c.logWriteError(ctx, r, r.log.Print(output))
}

// record appends msg to the run log file only.
func (c *Cycle) record(ctx context.Context, r *run, msg string) {
	if r.log == nil {
		return
	}
	c.logWriteError(ctx, r, r.log.Record(msg))
}

func (c *Cycle) logWriteError(ctx context.Context, r *run, err error) {
	if err == nil || r.logFailed {
		return
	}
	r.logFailed = true
	c.logger.WarnContext(ctx, "Failed to write run log", logfields.Path(c.paths.RunLog), logfields.Error(err))
}

func (r *run) closeLog() {
	if r.log != nil {
		_ = r.log.Close()
	}
}
