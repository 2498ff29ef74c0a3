package git

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscherer/site-builder/internal/config"
	helpers "github.com/mscherer/site-builder/internal/testutil/testutils"
)

func newTestInspector() *Inspector {
	return NewInspector(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func upstreamHead(t *testing.T, dir string) string {
	t.Helper()
	h, err := LocalHead(dir)
	require.NoError(t, err)
	return h
}

func TestInspect_FetchesWithoutTouchingWorktree(t *testing.T) {
	upstream, _, upstreamDir := helpers.SetupTestGitRepo(t)
	_, checkout := helpers.CloneRepo(t, upstreamDir)
	initial := upstreamHead(t, checkout)

	snap, err := newTestInspector().Inspect(context.Background(), checkout, "main")
	require.NoError(t, err)
	assert.Equal(t, initial, snap.Commit)
	assert.Empty(t, snap.Submodules)

	next := helpers.CommitFile(t, upstream, "news.md", "new post\n")

	snap, err = newTestInspector().Inspect(context.Background(), checkout, "main")
	require.NoError(t, err)
	assert.Equal(t, next.String(), snap.Commit)

	// Local branch and files are unchanged.
	assert.Equal(t, initial, upstreamHead(t, checkout))
	_, statErr := os.Stat(filepath.Join(checkout, "news.md"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestInspect_HeadUsesOriginHeadSymref(t *testing.T) {
	upstream, _, upstreamDir := helpers.SetupTestGitRepo(t)
	clone, checkout := helpers.CloneRepo(t, upstreamDir)
	helpers.SetRemoteHead(t, clone, "main")
	next := helpers.CommitFile(t, upstream, "about.md", "about\n")

	snap, err := newTestInspector().Inspect(context.Background(), checkout, config.DefaultGitVersion)
	require.NoError(t, err)
	assert.Equal(t, next.String(), snap.Commit)
}

func TestInspect_HeadFallsBackToAdvertisedHead(t *testing.T) {
	upstream, _, upstreamDir := helpers.SetupTestGitRepo(t)
	clone, checkout := helpers.CloneRepo(t, upstreamDir)
	_ = clone.Storer.RemoveReference("refs/remotes/origin/HEAD")
	next := helpers.CommitFile(t, upstream, "about.md", "about\n")

	snap, err := newTestInspector().Inspect(context.Background(), checkout, config.DefaultGitVersion)
	require.NoError(t, err)
	assert.Equal(t, next.String(), snap.Commit)
}

func TestInspect_UnknownRef(t *testing.T) {
	_, _, upstreamDir := helpers.SetupTestGitRepo(t)
	_, checkout := helpers.CloneRepo(t, upstreamDir)

	_, err := newTestInspector().Inspect(context.Background(), checkout, "no-such-branch")
	require.Error(t, err)

	var refErr *RefNotFoundError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, "no-such-branch", refErr.Ref)
}

func TestInspect_NotARepository(t *testing.T) {
	_, err := newTestInspector().Inspect(context.Background(), t.TempDir(), "main")
	require.Error(t, err)
}

func TestInspect_Submodules(t *testing.T) {
	theme, _, themeDir := helpers.SetupTestGitRepo(t)
	pinned := upstreamHead(t, themeDir)

	upstream, _, upstreamDir := helpers.SetupTestGitRepo(t)
	helpers.AddSubmoduleEntry(t, upstream, "themes/base", themeDir, mustHash(t, pinned))

	_, checkout := helpers.CloneRepo(t, upstreamDir)

	t.Run("uninitialised submodule reports the pinned commit", func(t *testing.T) {
		snap, err := newTestInspector().Inspect(context.Background(), checkout, "main")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"themes/base": pinned}, snap.Submodules)
	})

	t.Run("initialised submodule follows its origin HEAD", func(t *testing.T) {
		subDir := filepath.Join(checkout, "themes", "base")
		require.NoError(t, os.RemoveAll(subDir))
		helpers.CloneRepoInto(t, themeDir, subDir)

		moved := helpers.CommitFile(t, theme, "layout.html", "<html></html>\n")

		snap, err := newTestInspector().Inspect(context.Background(), checkout, "main")
		require.NoError(t, err)
		assert.Equal(t, []string{"themes/base"}, snap.SubmodulePaths())
		assert.Equal(t, moved.String(), snap.Submodules["themes/base"])
	})
}

func TestAuthMethod(t *testing.T) {
	m, err := AuthMethod(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = AuthMethod(&config.AuthConfig{Type: config.AuthTypeToken, Token: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "http-basic-auth", m.Name())

	_, err = AuthMethod(&config.AuthConfig{Type: config.AuthTypeBasic, Username: "u"})
	assert.Error(t, err)

	_, err = AuthMethod(&config.AuthConfig{Type: config.AuthTypeSSH, KeyPath: "/nonexistent/key"})
	assert.Error(t, err)
}

func TestClassifyFetchError(t *testing.T) {
	var authErr *AuthError
	assert.True(t, errors.As(classifyFetchError("u", errors.New("authentication required")), &authErr))

	var nf *NotFoundError
	assert.True(t, errors.As(classifyFetchError("u", errors.New("repository not found")), &nf))

	plain := errors.New("boom")
	assert.Equal(t, plain, classifyFetchError("u", plain))
	assert.NoError(t, classifyFetchError("u", nil))
}

func mustHash(t *testing.T, s string) plumbing.Hash {
	t.Helper()
	h := plumbing.NewHash(s)
	require.False(t, h.IsZero())
	return h
}
