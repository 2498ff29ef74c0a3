// Package deploy publishes build output: rsync over ssh to a remote target,
// or the builder's own deploy command when no remote is configured.
package deploy

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mscherer/site-builder/internal/errors"
	"github.com/mscherer/site-builder/internal/executor"
	"github.com/mscherer/site-builder/internal/logfields"
)

// NoDeployMessage is reported when neither a remote nor a deploy command exists.
const NoDeployMessage = "No deployment done: no Rsync settings provided and this builder has no deployment method defined"

// Outcome names how a publish was carried out.
type Outcome string

const (
	OutcomeRsync  Outcome = "rsync"
	OutcomeLocal  Outcome = "deploy_command"
	OutcomeNoOp   Outcome = "noop"
	OutcomeDryRun Outcome = "dry_run"
)

// Request describes one publish.
type Request struct {
	OutputDir     string
	Checkout      string // working directory of the deploy command
	Remote        string
	SSHKey        string
	DeployCommand []string
	Env           map[string]string
	DryRun        bool
}

// Result reports what Publish did.
type Result struct {
	Outcome Outcome
	Output  string
}

// Syncer runs the publish commands.
type Syncer struct {
	runner executor.Runner
	logger *slog.Logger
}

// NewSyncer creates a syncer executing through runner.
func NewSyncer(runner executor.Runner, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{runner: runner, logger: logger}
}

// Publish delivers req.OutputDir. Remote wins over a deploy command; with
// neither the outcome is NoOp. DryRun delivers nothing.
func (s *Syncer) Publish(ctx context.Context, req Request) (Result, error) {
	if req.DryRun {
		s.logger.InfoContext(ctx, "Not syncing, dry-run")
		return Result{Outcome: OutcomeDryRun}, nil
	}

	s.logger.InfoContext(ctx, "Start sync", logfields.Remote(req.Remote))
	var (
		res Result
		err error
	)
	switch {
	case req.Remote != "":
		res.Outcome = OutcomeRsync
		res.Output, err = s.run(ctx, executor.New(errors.StageDeploy, req.Checkout,
			RsyncArgs(strings.TrimSuffix(req.OutputDir, "/")+"/", req.Remote, req.SSHKey)...).WithEnv(req.Env))
	case len(req.DeployCommand) > 0:
		res.Outcome = OutcomeLocal
		res.Output, err = s.run(ctx, executor.New(errors.StageDeploy, req.Checkout, req.DeployCommand...).WithEnv(req.Env))
	default:
		res = Result{Outcome: OutcomeNoOp, Output: NoDeployMessage}
	}
	if err != nil {
		return res, err
	}
	s.logger.InfoContext(ctx, "Finish sync", logfields.Outcome(string(res.Outcome)))
	return res, nil
}

// PublishFile copies a single file to the remote target.
func (s *Syncer) PublishFile(ctx context.Context, path, remote, sshKey string, env map[string]string) error {
	_, err := s.run(ctx, executor.New(errors.StageDeploy, "", RsyncArgs(path, remote, sshKey)...).WithEnv(env))
	return err
}

func (s *Syncer) run(ctx context.Context, cmd executor.Command) (string, error) {
	res, err := s.runner.Run(ctx, cmd)
	if sf, ok := errors.AsStageFailure(err); ok {
		return sf.Output, err
	}
	return res.Output, err
}

// RsyncArgs builds the rsync invocation used for every transfer. Host keys
// are not checked.
func RsyncArgs(src, remote, sshKey string) []string {
	return []string{
		"rsync",
		"-e", "ssh -o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no -i " + sshKey,
		"--delete-after",
		"-rltogvz",
		"--omit-dir-times",
		src,
		remote,
	}
}
