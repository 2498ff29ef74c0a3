package executor

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/mscherer/site-builder/internal/errors"
	"github.com/mscherer/site-builder/internal/logfields"
)

// Result is the outcome of a command that exited zero.
type Result struct {
	Output   string
	Duration time.Duration
}

// Runner executes commands. A non-zero exit or a start failure is reported
// as *errors.StageFailure carrying the command's combined output.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates a runner logging command starts at debug level.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if len(cmd.Args) == 0 {
		return Result{}, &errors.StageFailure{Stage: cmd.Stage, Cause: fmt.Errorf("empty command")}
	}

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = cmd.ProcessEnviron()
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	r.logger.DebugContext(ctx, "Running command",
		logfields.Stage(string(cmd.Stage)),
		logfields.Path(cmd.Dir),
		slog.String("command", cmd.String()))

	start := time.Now()
	err := c.Run()
	res := Result{Output: out.String(), Duration: time.Since(start)}
	if err != nil {
		var exitErr *exec.ExitError
		if !stdErrors.As(err, &exitErr) {
			// Nothing ran; the start error is the only output.
			res.Output = startFailureOutput(res.Output, err)
		}
		return res, &errors.StageFailure{
			Stage:  cmd.Stage,
			Output: res.Output,
			Cause:  fmt.Errorf("%s: %w", cmd.String(), err),
		}
	}
	return res, nil
}

func startFailureOutput(captured string, err error) string {
	if captured != "" && !strings.HasSuffix(captured, "\n") {
		captured += "\n"
	}
	return captured + err.Error() + "\n"
}
