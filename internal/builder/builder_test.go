package builder

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscherer/site-builder/internal/errors"
	helpers "github.com/mscherer/site-builder/internal/testutil/testutils"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		kind      string
		subdir    string
		build     string
		hasDeploy bool
	}{
		{"middleman", "build", "bundle", true},
		{"jekyll", "_site", "bundle", false},
		{"ascii_binder", "_package/main", "bundle", false},
		{"planet", "build", "/srv/builder/planet-venus/planet.py", false},
		{"nikola", "output", "../.local/bin/nikola", false},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			p, err := Lookup(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, Kind(tt.kind), p.Kind)
			assert.Equal(t, tt.subdir, p.OutputSubdir)
			assert.Equal(t, tt.build, p.BuildCommand[0])
			assert.Equal(t, tt.hasDeploy, p.HasDeploy())
		})
	}
}

func TestLookupUnknownIsConfigError(t *testing.T) {
	_, err := Lookup("hugo")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))

	ce, _ := errors.AsClassified(err)
	assert.Equal(t, "hugo", ce.Context["builder"])
}

func TestLookupReturnsCopies(t *testing.T) {
	p, err := Lookup("jekyll")
	require.NoError(t, err)
	p.Env["JEKYLL_ENV"] = "development"
	p.BuildCommand[0] = "changed"

	again, err := Lookup("jekyll")
	require.NoError(t, err)
	assert.Equal(t, "production", again.Env["JEKYLL_ENV"])
	assert.Equal(t, "bundle", again.BuildCommand[0])
}

func TestKinds(t *testing.T) {
	assert.Equal(t, []Kind{KindAsciiBinder, KindJekyll, KindMiddleman, KindNikola, KindPlanet}, Kinds())
}

func TestPrepareOutputIsIdempotent(t *testing.T) {
	checkout := t.TempDir()
	p, _ := Lookup("ascii_binder")

	dir, err := PrepareOutput(p, checkout)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(checkout, "_package", "main"), dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.html"), nil, 0o600))

	_, err = PrepareOutput(p, checkout)
	require.NoError(t, err)
	helpers.NewFileAssertions(t, dir).AssertFileExists("keep.html")
}

func newDispatcher(r *helpers.FakeRunner) *Dispatcher {
	return NewDispatcher(r, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatchWithGemfile(t *testing.T) {
	checkout := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(checkout, "Gemfile"), []byte("source 'https://rubygems.org'\n"), 0o600))

	runner := helpers.NewFakeRunner().
		Succeed("bundle install", "Bundle complete!").
		Succeed("bundle exec jekyll", "done in 1.2s")
	p, _ := Lookup("jekyll")

	steps, err := newDispatcher(runner).Dispatch(context.Background(), p, checkout, map[string]string{"LANG": "en_US.UTF-8"})
	require.NoError(t, err)

	require.Len(t, steps, 2)
	assert.Equal(t, errors.StageInstall, steps[0].Stage)
	assert.Equal(t, "Bundle complete!", steps[0].Output)
	assert.Equal(t, errors.StageBuild, steps[1].Stage)
	assert.Equal(t, "bundle exec jekyll build --verbose --trace", steps[1].Command)

	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, checkout, calls[0].Dir)
	assert.Equal(t, "1", calls[0].Env["NOKOGIRI_USE_SYSTEM_LIBRARIES"])
	assert.Empty(t, calls[0].Env["JEKYLL_ENV"], "builder env applies to the build command only")
	assert.Equal(t, "production", calls[1].Env["JEKYLL_ENV"])
	assert.Equal(t, "en_US.UTF-8", calls[1].Env["LANG"])
}

func TestDispatchWithoutGemfileSkipsInstall(t *testing.T) {
	runner := helpers.NewFakeRunner()
	p, _ := Lookup("planet")

	steps, err := newDispatcher(runner).Dispatch(context.Background(), p, t.TempDir(), nil)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, []string{"/srv/builder/planet-venus/planet.py -v planet.ini"}, runner.Commands())
	assert.Empty(t, runner.Calls()[0].Env["NOKOGIRI_USE_SYSTEM_LIBRARIES"])
}

func TestDispatchInstallFailureSkipsBuild(t *testing.T) {
	checkout := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(checkout, "Gemfile"), nil, 0o600))
	runner := helpers.NewFakeRunner().Fail("bundle install", "Could not find gem 'middleman'")
	p, _ := Lookup("middleman")

	steps, err := newDispatcher(runner).Dispatch(context.Background(), p, checkout, nil)
	require.Error(t, err)

	sf, ok := errors.AsStageFailure(err)
	require.True(t, ok)
	assert.Equal(t, errors.StageInstall, sf.Stage)
	assert.Equal(t, "Could not find gem 'middleman'", steps[0].Output)
	assert.False(t, runner.Ran("bundle exec middleman build"))
}

func TestDispatchBuildFailure(t *testing.T) {
	runner := helpers.NewFakeRunner().Fail("../.local/bin/nikola", "TaskError")
	p, _ := Lookup("nikola")

	_, err := newDispatcher(runner).Dispatch(context.Background(), p, t.TempDir(), nil)
	sf, ok := errors.AsStageFailure(err)
	require.True(t, ok)
	assert.Equal(t, errors.StageBuild, sf.Stage)
	assert.Equal(t, "TaskError", sf.Output)
}
