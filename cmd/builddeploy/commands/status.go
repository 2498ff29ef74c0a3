package commands

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/mscherer/site-builder/internal/errors"
	"github.com/mscherer/site-builder/internal/git"
	"github.com/mscherer/site-builder/internal/lock"
	"github.com/mscherer/site-builder/internal/state"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	Config string `arg:"" name:"config" help:"Project configuration file"`
}

func (s *StatusCmd) Run(g *Global) error {
	p, err := g.loadProject(s.Config, false)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	st, err := state.NewStore(p.paths.StatusFile).Load()
	if err != nil {
		return err
	}
	held, pid, err := lock.Holder(p.paths.LockDir, p.cfg.Name)
	if err != nil {
		return errors.StateError("read lock", err)
	}

	w := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	row := func(k, v string) { _, _ = fmt.Fprintf(w, "%s:\t%s\n", k, v) }

	row("project", p.cfg.Name)
	row("builder", p.cfg.Builder)
	row("checkout", checkoutState(p.paths.Checkout))
	row("lock", lockState(held, pid))
	if st.IsZero() {
		row("last build", "never")
	} else {
		last := st.LastBuildHuman
		if last == "" {
			last = "never"
		}
		row("last build", last)
		row("upstream commit", st.LastBuildCommit)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	writeSubmodules(g.Stdout, st.SubmoduleCommits)
	return nil
}

func checkoutState(dir string) string {
	head, err := git.LocalHead(dir)
	if err != nil {
		return dir + " (unreadable)"
	}
	return fmt.Sprintf("%s at %s", dir, head)
}

func lockState(held bool, pid int) string {
	switch {
	case !held:
		return "free"
	case pid > 0:
		return fmt.Sprintf("held by pid %d", pid)
	default:
		return "held"
	}
}

func writeSubmodules(w io.Writer, subs map[string]string) {
	if len(subs) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "submodules:")
	paths := make([]string, 0, len(subs))
	for path := range subs {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	for _, path := range paths {
		_, _ = fmt.Fprintf(w, "  %s %s\n", path, subs[path])
	}
}
