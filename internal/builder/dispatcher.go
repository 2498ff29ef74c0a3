package builder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mscherer/site-builder/internal/errors"
	"github.com/mscherer/site-builder/internal/executor"
	"github.com/mscherer/site-builder/internal/logfields"
)

// nokogiriEnv makes bundle install link Nokogiri against system libraries.
var nokogiriEnv = map[string]string{"NOKOGIRI_USE_SYSTEM_LIBRARIES": "1"}

// Step records one command the dispatcher ran.
type Step struct {
	Stage    errors.Stage
	Command  string
	Output   string
	Duration time.Duration
}

// Dispatcher runs the install and build stages of a profile.
type Dispatcher struct {
	runner executor.Runner
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher executing commands through runner.
func NewDispatcher(runner executor.Runner, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{runner: runner, logger: logger}
}

// PrepareOutput creates the profile's output directory (mode 0775) if it is missing.
func PrepareOutput(p Profile, checkout string) (string, error) {
	dir := p.OutputDir(checkout)
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return "", errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "failed to create output directory").
			WithContext("path", dir)
	}
	return dir, nil
}

// Dispatch runs `bundle install` when the checkout has a Gemfile, then the
// profile's build command with its env overlay applied on top of env. The
// steps run so far are returned even when a stage fails.
func (d *Dispatcher) Dispatch(ctx context.Context, p Profile, checkout string, env map[string]string) ([]Step, error) {
	var steps []Step
	base := executor.Command{Stage: errors.StageInstall, Dir: checkout}.WithEnv(env)

	if _, err := os.Stat(filepath.Join(checkout, "Gemfile")); err == nil {
		install := base.WithEnv(nokogiriEnv)
		install.Args = []string{"bundle", "install"}
		step, err := d.run(ctx, install)
		steps = append(steps, step)
		if err != nil {
			return steps, err
		}
		// NOKOGIRI_USE_SYSTEM_LIBRARIES stays set for the build command.
		base = install
	}

	build := base.WithEnv(p.Env)
	build.Stage = errors.StageBuild
	build.Args = append([]string(nil), p.BuildCommand...)
	step, err := d.run(ctx, build)
	steps = append(steps, step)
	return steps, err
}

func (d *Dispatcher) run(ctx context.Context, cmd executor.Command) (Step, error) {
	d.logger.InfoContext(ctx, "Running build step", logfields.Stage(string(cmd.Stage)), slog.String("command", cmd.String()))
	res, err := d.runner.Run(ctx, cmd)
	step := Step{Stage: cmd.Stage, Command: cmd.String(), Output: res.Output, Duration: res.Duration}
	if sf, ok := errors.AsStageFailure(err); ok && step.Output == "" {
		step.Output = sf.Output
	}
	return step, err
}
