package cycle

import (
	"io"
	"log/slog"
	"time"

	"github.com/mscherer/site-builder/internal/eventstore"
	"github.com/mscherer/site-builder/internal/executor"
	"github.com/mscherer/site-builder/internal/metrics"
)

// Options are the per-invocation flags of a cycle.
type Options struct {
	Force     bool // rebuild even when nothing changed
	DryRun    bool // skip publishing
	SyncOnly  bool // skip install and build
	NoRefresh bool // leave the checkout as is before building
	Debug     bool // mirror the run log to stdout
}

// Option configures a Cycle.
type Option func(*Cycle)

// WithRunner sets the command runner (default: executor.ExecRunner).
func WithRunner(r executor.Runner) Option {
	return func(c *Cycle) { c.runner = r }
}

// WithInspector sets the upstream inspector (default: git.Inspector).
func WithInspector(i Inspector) Option {
	return func(c *Cycle) { c.inspector = i }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Cycle) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithMetricsTextfile writes the recorder's metrics to path after each cycle
// when the recorder supports it.
func WithMetricsTextfile(path string) Option {
	return func(c *Cycle) { c.textfile = path }
}

// WithSinks adds event sinks (run history, notifications).
func WithSinks(sinks ...eventstore.Sink) Option {
	return func(c *Cycle) {
		for _, s := range sinks {
			if s != nil {
				c.sinks = append(c.sinks, s)
			}
		}
	}
}

// WithLogger sets the system logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cycle) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStdout sets where the run log is mirrored in debug mode.
func WithStdout(w io.Writer) Option {
	return func(c *Cycle) { c.stdout = w }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cycle) { c.now = now }
}

// WithRunIDs overrides the run identifier generator.
func WithRunIDs(gen func() string) Option {
	return func(c *Cycle) { c.newRunID = gen }
}
