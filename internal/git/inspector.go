package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/mscherer/site-builder/internal/logfields"
)

const originRemote = "origin"

// Snapshot is the upstream state observed for a checkout.
type Snapshot struct {
	Commit     string
	Submodules map[string]string // submodule path -> commit
}

// SubmodulePaths returns the submodule paths in sorted order.
func (s Snapshot) SubmodulePaths() []string {
	paths := make([]string, 0, len(s.Submodules))
	for p := range s.Submodules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Inspector resolves upstream commits for a checkout.
type Inspector struct {
	auth   transport.AuthMethod
	logger *slog.Logger
}

// NewInspector creates an inspector fetching origin with auth (may be nil).
func NewInspector(auth transport.AuthMethod, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{auth: auth, logger: logger}
}

// Inspect fetches origin into the remote-tracking refs of the checkout at dir,
// resolves origin/<ref> and the origin HEAD of each submodule. The worktree
// and local branches are left untouched.
func (i *Inspector) Inspect(ctx context.Context, dir, ref string) (Snapshot, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open repo %s: %w", dir, err)
	}

	if err := fetchOrigin(ctx, repo, i.auth); err != nil {
		return Snapshot{}, classifyFetchError(remoteURL(repo), err)
	}

	commit, err := resolveOrigin(ctx, repo, ref, i.auth)
	if err != nil {
		return Snapshot{}, &RefNotFoundError{Dir: dir, Ref: ref, Err: err}
	}

	subs, err := i.submoduleCommits(ctx, repo, dir)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Commit: commit.String(), Submodules: subs}, nil
}

// LocalHead returns the commit currently checked out at dir.
func LocalHead(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("open repo %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	return head.Hash().String(), nil
}

// submoduleCommits resolves origin HEAD for every initialised submodule and
// the commit pinned by the superproject for the others.
func (i *Inspector) submoduleCommits(ctx context.Context, repo *git.Repository, dir string) (map[string]string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	subs, err := wt.Submodules()
	if err != nil {
		return nil, fmt.Errorf("submodules: %w", err)
	}

	out := make(map[string]string, len(subs))
	for _, sub := range subs {
		path := sub.Config().Path
		i.logger.DebugContext(ctx, "Looking for submodule", logfields.Submodule(path))

		subDir := filepath.Join(dir, filepath.FromSlash(path))
		if _, err := os.Stat(filepath.Join(subDir, ".git")); err == nil {
			commit, err := i.inspectSubmodule(ctx, subDir)
			if err != nil {
				return nil, fmt.Errorf("submodule %s: %w", path, err)
			}
			out[path] = commit
			continue
		}

		st, err := sub.Status()
		if err != nil {
			return nil, fmt.Errorf("submodule %s status: %w", path, err)
		}
		if st.Expected.IsZero() {
			return nil, fmt.Errorf("submodule %s: no commit recorded in the superproject", path)
		}
		out[path] = st.Expected.String()
	}
	return out, nil
}

// inspectSubmodule fetches the submodule's origin and resolves origin/HEAD.
// Fetch failures fall back to the remote-tracking refs already present.
func (i *Inspector) inspectSubmodule(ctx context.Context, subDir string) (string, error) {
	repo, err := git.PlainOpen(subDir)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	if err := fetchOrigin(ctx, repo, nil); err != nil {
		i.logger.WarnContext(ctx, "Submodule fetch failed, using known remote refs",
			logfields.Path(subDir), logfields.Error(err))
	}
	commit, err := resolveOrigin(ctx, repo, plumbing.HEAD.String(), nil)
	if err != nil {
		return "", err
	}
	return commit.String(), nil
}

// fetchOrigin updates refs/remotes/origin/* from the origin remote.
func fetchOrigin(ctx context.Context, repo *git.Repository, auth transport.AuthMethod) error {
	fetchOpts := &git.FetchOptions{
		RemoteName: originRemote,
		Tags:       git.NoTags,
		RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Auth:       auth,
	}
	if err := repo.FetchContext(ctx, fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch: %w", err)
	}
	return nil
}

// resolveOrigin resolves refs/remotes/origin/<ref>. For HEAD, a missing
// origin/HEAD symref falls back to the HEAD advertised by the remote.
func resolveOrigin(ctx context.Context, repo *git.Repository, ref string, auth transport.AuthMethod) (plumbing.Hash, error) {
	name := plumbing.NewRemoteReferenceName(originRemote, ref)
	r, err := repo.Reference(name, true)
	if err == nil {
		return r.Hash(), nil
	}
	if ref != plumbing.HEAD.String() {
		return plumbing.ZeroHash, err
	}
	return advertisedHead(ctx, repo, auth)
}

// advertisedHead asks origin which commit its HEAD points to.
func advertisedHead(ctx context.Context, repo *git.Repository, auth transport.AuthMethod) (plumbing.Hash, error) {
	remote, err := repo.Remote(originRemote)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("list remote: %w", err)
	}

	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(refs))
	for _, r := range refs {
		byName[r.Name()] = r
	}
	head, ok := byName[plumbing.HEAD]
	if !ok {
		return plumbing.ZeroHash, fmt.Errorf("remote does not advertise HEAD")
	}
	if head.Type() == plumbing.HashReference {
		return head.Hash(), nil
	}

	target := head.Target()
	if t, ok := byName[target]; ok && t.Type() == plumbing.HashReference {
		return t.Hash(), nil
	}
	// The target branch was fetched into the remote-tracking namespace.
	if t, err := repo.Reference(plumbing.NewRemoteReferenceName(originRemote, target.Short()), true); err == nil {
		return t.Hash(), nil
	}
	return plumbing.ZeroHash, fmt.Errorf("remote HEAD target %s not found", target)
}

func remoteURL(repo *git.Repository) string {
	remote, err := repo.Remote(originRemote)
	if err != nil || len(remote.Config().URLs) == 0 {
		return originRemote
	}
	return remote.Config().URLs[0]
}
