package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/mscherer/site-builder/internal/errors"
	"github.com/mscherer/site-builder/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit  int    `short:"l" default:"20" help:"Number of runs to list"`
	RunID  string `name:"run" help:"Show the events of one run"`
	Config string `arg:"" name:"config" help:"Project configuration file"`
}

func (h *HistoryCmd) Run(g *Global) error {
	ctx := context.Background()
	p, err := g.loadProject(h.Config, false)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if p.cfg.History.Path == "" {
		return errors.ConfigRequired("history.path")
	}
	store, err := openHistory(p.cfg.History.Path)
	if err != nil {
		return errors.StateError("open history", err)
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewRunHistoryProjection(store, h.Limit)
	if err := projection.Rebuild(ctx, p.cfg.Name); err != nil {
		return errors.StateError("read history", err)
	}

	if h.RunID != "" {
		return h.showRun(ctx, g, store, projection)
	}

	w := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tOUTCOME\tCOMMIT\tDURATION\tFAILED STAGE")
	for _, run := range projection.GetHistory() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.RunID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Status,
			dash(run.Outcome),
			dash(shortCommit(run.Commit)),
			run.Duration.Round(time.Millisecond),
			dash(run.ErrorStage))
	}
	return w.Flush()
}

func (h *HistoryCmd) showRun(ctx context.Context, g *Global, store eventstore.Store, projection *eventstore.RunHistoryProjection) error {
	events, err := store.GetByRunID(ctx, h.RunID)
	if err != nil {
		return errors.StateError("read history", err)
	}
	if len(events) == 0 {
		return errors.ValidationFailed("run", "no events recorded for "+h.RunID)
	}

	if run, ok := projection.GetRun(h.RunID); ok {
		_, _ = fmt.Fprintf(g.Stdout, "run %s: %s", run.RunID, run.Status)
		if run.ErrorMessage != "" {
			_, _ = fmt.Fprintf(g.Stdout, " (%s: %s)", run.ErrorStage, run.ErrorMessage)
		}
		_, _ = fmt.Fprintln(g.Stdout)
	}
	w := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range events {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp().Local().Format(time.DateTime), e.Type(), e.Payload())
	}
	return w.Flush()
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
