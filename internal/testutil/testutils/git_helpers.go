package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var testSignature = object.Signature{Name: "Site Builder", Email: "builder@example.com"}

// SetupTestGitRepo initializes a temporary git repository on branch main with
// one commit. Returns the repository, its worktree, and the directory.
func SetupTestGitRepo(t *testing.T) (*git.Repository, *git.Worktree, string) {
	t.Helper()

	tempDir := t.TempDir()

	repo, err := git.PlainInitWithOptions(tempDir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		t.Fatalf("failed to initialize git repo: %v", err)
	}

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}

	CommitFile(t, repo, "index.md", "# hello\n")
	return repo, w, tempDir
}

// CommitFile writes name with content in the repository worktree and commits it.
func CommitFile(t *testing.T, repo *git.Repository, name, content string) plumbing.Hash {
	t.Helper()

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	full := filepath.Join(w.Filesystem.Root(), name)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if _, err := w.Add(name); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	return commit(t, w, "update "+name)
}

// CloneRepo clones the repository at src into a new temporary directory.
func CloneRepo(t *testing.T, src string) (*git.Repository, string) {
	t.Helper()
	dst := filepath.Join(t.TempDir(), "checkout")
	return CloneRepoInto(t, src, dst), dst
}

// CloneRepoInto clones the repository at src into dst.
func CloneRepoInto(t *testing.T, src, dst string) *git.Repository {
	t.Helper()
	repo, err := git.PlainClone(dst, false, &git.CloneOptions{URL: src})
	if err != nil {
		t.Fatalf("clone %s: %v", src, err)
	}
	return repo
}

// AddSubmoduleEntry records a submodule at path pinned to hash: a .gitmodules
// section plus a gitlink index entry, committed in one commit.
func AddSubmoduleEntry(t *testing.T, repo *git.Repository, path, url string, hash plumbing.Hash) plumbing.Hash {
	t.Helper()

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	modulesFile := filepath.Join(w.Filesystem.Root(), ".gitmodules")
	f, err := os.OpenFile(modulesFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open .gitmodules: %v", err)
	}
	section := "[submodule \"" + path + "\"]\n\tpath = " + path + "\n\turl = " + url + "\n"
	if _, err := f.WriteString(section); err != nil {
		t.Fatalf("write .gitmodules: %v", err)
	}
	_ = f.Close()
	if _, err := w.Add(".gitmodules"); err != nil {
		t.Fatalf("add .gitmodules: %v", err)
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	e := idx.Add(path)
	e.Mode = filemode.Submodule
	e.Hash = hash
	if err := repo.Storer.SetIndex(idx); err != nil {
		t.Fatalf("write index: %v", err)
	}
	return commit(t, w, "add submodule "+path)
}

// SetRemoteHead points refs/remotes/origin/HEAD at origin/<branch>.
func SetRemoteHead(t *testing.T, repo *git.Repository, branch string) {
	t.Helper()
	ref := plumbing.NewSymbolicReference(
		plumbing.NewRemoteReferenceName("origin", "HEAD"),
		plumbing.NewRemoteReferenceName("origin", branch))
	if err := repo.Storer.SetReference(ref); err != nil {
		t.Fatalf("set origin/HEAD: %v", err)
	}
}

func commit(t *testing.T, w *git.Worktree, msg string) plumbing.Hash {
	t.Helper()
	sig := testSignature
	sig.When = time.Now()
	h, err := w.Commit(msg, &git.CommitOptions{Author: &sig})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return h
}
