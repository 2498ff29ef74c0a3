// Package commands implements the builddeploy command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/mscherer/site-builder/internal/config"
	"github.com/mscherer/site-builder/internal/cycle"
	"github.com/mscherer/site-builder/internal/errors"
	"github.com/mscherer/site-builder/internal/eventstore"
	"github.com/mscherer/site-builder/internal/logfields"
	"github.com/mscherer/site-builder/internal/logging"
	"github.com/mscherer/site-builder/internal/metrics"
	"github.com/mscherer/site-builder/internal/notify"
	"github.com/mscherer/site-builder/internal/version"
)

// Global carries the process streams and the active logger into every command.
type Global struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
	Verbose bool
}

// CLI definition & global flags.
type CLI struct {
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run      RunCmd      `cmd:"" default:"withargs" help:"Run one build-deploy cycle (default command)"`
	Daemon   DaemonCmd   `cmd:"" help:"Run build-deploy cycles on a schedule"`
	Status   StatusCmd   `cmd:"" help:"Show the recorded status of a project"`
	History  HistoryCmd  `cmd:"" help:"List recent runs from the run history"`
	Builders BuildersCmd `cmd:"" help:"List the supported builders"`
}

// Execute parses args, runs the selected command and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	var cli CLI
	exitCode := -1
	parser, err := kong.New(&cli,
		kong.Name("builddeploy"),
		kong.Description("Build a static site from its git checkout when upstream changed, then publish it."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exitCode = code }),
	)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "builddeploy: %v\n", err)
		return errors.ExitConfig
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		return exitCode // --help or --version
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "builddeploy: error: %v\n", err)
		return errors.ExitConfig
	}

	g := &Global{
		Stdout: stdout,
		Stderr: stderr,
		Logger: slog.New(logging.NewContextHandler(slog.NewTextHandler(stderr, nil))),
	}
	err = kctx.Run(g)
	return errors.NewCLIErrorAdapter(g.Verbose, g.Logger).WithOutput(stderr).Report(err)
}

// project is a loaded configuration with its paths and logger.
type project struct {
	cfg    *config.Config
	paths  config.Paths
	logger *slog.Logger
	closer io.Closer
}

func (p *project) Close() error { return p.closer.Close() }

// loadProject loads the configuration at path and switches g to the project's
// logger.
func (g *Global) loadProject(path string, verbose bool) (*project, error) {
	g.Verbose = verbose
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.Setup(logging.Config{
		Verbose:    verbose,
		FilePath:   cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, g.Stderr)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "failed to open log file").
			WithContext("path", cfg.Log.File)
	}
	g.Logger = logger

	paths, err := config.ResolvePaths(cfg)
	if err != nil {
		_ = closer.Close()
		return nil, errors.InternalError("failed to resolve project paths", err)
	}
	return &project{cfg: cfg, paths: paths, logger: logger, closer: closer}, nil
}

// integrations are the optional metrics, history and notification outputs of
// a project. Failing to open one is logged and the cycle runs without it.
type integrations struct {
	recorder metrics.Recorder
	textfile string
	sinks    []eventstore.Sink
	closers  []io.Closer
}

func openIntegrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) *integrations {
	in := &integrations{}

	if cfg.Metrics.Textfile != "" {
		in.recorder = metrics.NewPrometheusRecorder(prom.NewRegistry(), cfg.Name)
		in.textfile = cfg.Metrics.Textfile
	}

	if cfg.History.Path != "" {
		store, err := openHistory(cfg.History.Path)
		if err != nil {
			logger.WarnContext(ctx, "Run history disabled", logfields.Path(cfg.History.Path), logfields.Error(err))
		} else {
			in.sinks = append(in.sinks, store)
			in.closers = append(in.closers, store)
		}
	}

	if cfg.Notify.NATSURL != "" {
		n, err := notify.Connect(cfg.Notify.NATSURL, cfg.Notify.Subject, logger)
		if err != nil {
			logger.WarnContext(ctx, "Notifications disabled", logfields.Error(err))
		} else {
			in.sinks = append(in.sinks, n)
			in.closers = append(in.closers, n)
		}
	}
	return in
}

func openHistory(path string) (*eventstore.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return eventstore.NewSQLiteStore(path)
}

func (in *integrations) cycleOptions() []cycle.Option {
	opts := []cycle.Option{cycle.WithSinks(in.sinks...)}
	if in.recorder != nil {
		opts = append(opts, cycle.WithRecorder(in.recorder), cycle.WithMetricsTextfile(in.textfile))
	}
	return opts
}

func (in *integrations) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		_ = in.closers[i].Close()
	}
}
