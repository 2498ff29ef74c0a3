package commands

import (
	"context"
	"io"

	"github.com/mscherer/site-builder/internal/cycle"
)

// RunCmd implements the default command: one locked build-deploy cycle.
type RunCmd struct {
	Force     bool   `short:"f" help:"Rebuild even when nothing changed upstream"`
	DryRun    bool   `short:"n" name:"dry-run" help:"Build but do not publish"`
	Debug     bool   `short:"d" help:"Mirror the run log to stdout and log at debug level"`
	SyncOnly  bool   `short:"s" name:"sync-only" help:"Skip install and build, publish the existing output"`
	NoRefresh bool   `name:"no-refresh" help:"Build the checkout as it is, without stash and pull"`
	Config    string `arg:"" name:"config" help:"Project configuration file"`
}

func (r *RunCmd) Run(g *Global) error {
	ctx := context.Background()
	p, err := g.loadProject(r.Config, r.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	in := openIntegrations(ctx, p.cfg, p.logger)
	defer in.Close()

	c, err := newCycle(p, in, g.Stdout)
	if err != nil {
		return err
	}
	_, err = c.Run(ctx, r.options())
	return err
}

func (r *RunCmd) options() cycle.Options {
	return cycle.Options{
		Force:     r.Force,
		DryRun:    r.DryRun,
		SyncOnly:  r.SyncOnly,
		NoRefresh: r.NoRefresh,
		Debug:     r.Debug,
	}
}

func newCycle(p *project, in *integrations, stdout io.Writer) (*cycle.Cycle, error) {
	opts := append(in.cycleOptions(), cycle.WithLogger(p.logger), cycle.WithStdout(stdout))
	return cycle.New(p.cfg, p.paths, opts...)
}
