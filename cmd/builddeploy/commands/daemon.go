package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/mscherer/site-builder/internal/config"
	"github.com/mscherer/site-builder/internal/cycle"
	"github.com/mscherer/site-builder/internal/daemon"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	DryRun    bool   `short:"n" name:"dry-run" help:"Build but never publish"`
	SyncOnly  bool   `short:"s" name:"sync-only" help:"Skip install and build, publish the existing output"`
	NoRefresh bool   `name:"no-refresh" help:"Build the checkout as it is, without stash and pull"`
	Debug     bool   `short:"d" help:"Log at debug level"`
	NoWatch   bool   `name:"no-watch" help:"Do not reload the configuration when its file changes"`
	Config    string `arg:"" name:"config" help:"Project configuration file"`
}

func (d *DaemonCmd) Run(g *Global) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := g.loadProject(d.Config, d.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	// Outputs are opened once; changing them needs a restart.
	in := openIntegrations(ctx, p.cfg, p.logger)
	defer in.Close()

	factory := func(cfg *config.Config) (daemon.Runner, error) {
		paths, err := config.ResolvePaths(cfg)
		if err != nil {
			return nil, err
		}
		next := *p
		next.cfg = cfg
		next.paths = paths
		c, err := newCycle(&next, in, g.Stdout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	watchPath := d.Config
	if d.NoWatch {
		watchPath = ""
	}
	dm := daemon.New(watchPath, p.cfg, factory, cycle.Options{
		DryRun:    d.DryRun,
		SyncOnly:  d.SyncOnly,
		NoRefresh: d.NoRefresh,
	}, p.logger)
	return dm.Run(ctx)
}
