package executor

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscherer/site-builder/internal/errors"
)

func TestCommandWithEnvDoesNotMutateOriginal(t *testing.T) {
	base := New(errors.StageBuild, "/srv/site", "bundle", "exec", "jekyll", "build").
		WithEnv(map[string]string{"LANG": "en_US.UTF-8"})
	derived := base.WithEnv(map[string]string{"JEKYLL_ENV": "production", "LANG": "C"})

	assert.Equal(t, map[string]string{"LANG": "en_US.UTF-8"}, base.Env)
	assert.Equal(t, map[string]string{"LANG": "C", "JEKYLL_ENV": "production"}, derived.Env)

	derived.Args[0] = "changed"
	assert.Equal(t, "bundle", base.Args[0])
	assert.Equal(t, "bundle exec jekyll build", base.String())
}

func TestCommandEnviron(t *testing.T) {
	cmd := New(errors.StageInstall, "", "bundle", "install").WithEnv(map[string]string{
		"PATH":                          "/usr/local/bin:/usr/bin",
		"NOKOGIRI_USE_SYSTEM_LIBRARIES": "1",
		"A":                             "x",
	})

	got := cmd.Environ([]string{"HOME=/home/web", "PATH=/usr/bin", "PATH=/dup"})

	assert.Equal(t, []string{
		"HOME=/home/web",
		"PATH=/usr/local/bin:/usr/bin",
		"A=x",
		"NOKOGIRI_USE_SYSTEM_LIBRARIES=1",
	}, got)
}

func TestExecRunner(t *testing.T) {
	r := NewExecRunner(slog.New(slog.NewTextHandler(io.Discard, nil)))
	dir := t.TempDir()

	t.Run("success captures combined output", func(t *testing.T) {
		res, err := r.Run(context.Background(),
			New(errors.StageBuild, dir, "sh", "-c", `echo out; echo err >&2; echo "$GREETING"; pwd`).
				WithEnv(map[string]string{"GREETING": "hello"}))
		require.NoError(t, err)
		assert.Contains(t, res.Output, "out\n")
		assert.Contains(t, res.Output, "err\n")
		assert.Contains(t, res.Output, "hello\n")
		assert.Contains(t, res.Output, dir)
	})

	t.Run("non-zero exit is a stage failure", func(t *testing.T) {
		_, err := r.Run(context.Background(), New(errors.StageDeploy, dir, "sh", "-c", "echo rsync broke; exit 12"))
		require.Error(t, err)

		sf, ok := errors.AsStageFailure(err)
		require.True(t, ok)
		assert.Equal(t, errors.StageDeploy, sf.Stage)
		assert.Equal(t, "rsync broke\n", sf.Output)
	})

	t.Run("missing binary is a stage failure", func(t *testing.T) {
		_, err := r.Run(context.Background(), New(errors.StageInstall, dir, "/nonexistent/bundle", "install"))
		sf, ok := errors.AsStageFailure(err)
		require.True(t, ok)
		assert.Equal(t, errors.StageInstall, sf.Stage)
		assert.Contains(t, sf.Output, "/nonexistent/bundle")
		assert.Contains(t, sf.Output, "no such file or directory")
	})

	t.Run("bad working directory reports the start error", func(t *testing.T) {
		_, err := r.Run(context.Background(), New(errors.StageBuild, "/nonexistent/checkout", "sh", "-c", "true"))
		sf, ok := errors.AsStageFailure(err)
		require.True(t, ok)
		assert.Contains(t, sf.Output, "/nonexistent/checkout")
	})

	t.Run("empty command", func(t *testing.T) {
		_, err := r.Run(context.Background(), Command{Stage: errors.StageSetup})
		_, ok := errors.AsStageFailure(err)
		assert.True(t, ok)
	})
}
