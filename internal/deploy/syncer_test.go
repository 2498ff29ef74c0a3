package deploy

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscherer/site-builder/internal/errors"
	helpers "github.com/mscherer/site-builder/internal/testutil/testutils"
)

func newSyncer(r *helpers.FakeRunner) *Syncer {
	return NewSyncer(r, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRsyncArgs(t *testing.T) {
	assert.Equal(t, []string{
		"rsync",
		"-e", "ssh -o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no -i /home/web/.ssh/site_id.rsa",
		"--delete-after", "-rltogvz", "--omit-dir-times",
		"/home/web/site/build/", "web@host:/srv/www",
	}, RsyncArgs("/home/web/site/build/", "web@host:/srv/www", "/home/web/.ssh/site_id.rsa"))
}

func TestPublish(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		outcome Outcome
		command string
	}{
		{
			name:    "remote uses rsync with trailing slash",
			req:     Request{OutputDir: "/srv/site/build", Checkout: "/srv/site", Remote: "web@host:/srv/www", SSHKey: "/k", DeployCommand: []string{"bundle", "exec", "middleman", "deploy"}},
			outcome: OutcomeRsync,
			command: "rsync -e ssh -o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no -i /k --delete-after -rltogvz --omit-dir-times /srv/site/build/ web@host:/srv/www",
		},
		{
			name:    "deploy command without remote",
			req:     Request{OutputDir: "/srv/site/build", Checkout: "/srv/site", DeployCommand: []string{"bundle", "exec", "middleman", "deploy", "--no-build-before"}},
			outcome: OutcomeLocal,
			command: "bundle exec middleman deploy --no-build-before",
		},
		{
			name:    "nothing configured",
			req:     Request{OutputDir: "/srv/site/_site"},
			outcome: OutcomeNoOp,
		},
		{
			name:    "dry run",
			req:     Request{OutputDir: "/srv/site/_site", Remote: "web@host:/srv/www", DryRun: true},
			outcome: OutcomeDryRun,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := helpers.NewFakeRunner()
			res, err := newSyncer(runner).Publish(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)

			if tt.command == "" {
				assert.Empty(t, runner.Calls())
				return
			}
			require.Len(t, runner.Calls(), 1)
			call := runner.Calls()[0]
			assert.Equal(t, tt.command, call.String())
			assert.Equal(t, errors.StageDeploy, call.Stage)
			assert.Equal(t, tt.req.Checkout, call.Dir)
		})
	}
}

func TestPublishNoOpMessage(t *testing.T) {
	res, err := newSyncer(helpers.NewFakeRunner()).Publish(context.Background(), Request{OutputDir: "/x"})
	require.NoError(t, err)
	assert.Equal(t, NoDeployMessage, res.Output)
}

func TestPublishFailureIsDeployStage(t *testing.T) {
	runner := helpers.NewFakeRunner().Fail("rsync", "connection refused")
	res, err := newSyncer(runner).Publish(context.Background(), Request{OutputDir: "/x", Remote: "h:/y", SSHKey: "/k"})
	require.Error(t, err)

	sf, ok := errors.AsStageFailure(err)
	require.True(t, ok)
	assert.Equal(t, errors.StageDeploy, sf.Stage)
	assert.Equal(t, "connection refused", res.Output)
}

func TestPublishFile(t *testing.T) {
	runner := helpers.NewFakeRunner()
	require.NoError(t, newSyncer(runner).PublishFile(context.Background(), "/srv/site/build/build_log.txt", "h:/y", "/k", nil))
	assert.Equal(t, []string{
		"rsync -e ssh -o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no -i /k --delete-after -rltogvz --omit-dir-times /srv/site/build/build_log.txt h:/y",
	}, runner.Commands())
}
