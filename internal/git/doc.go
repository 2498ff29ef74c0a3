// Package git inspects a site checkout with go-git: it fetches origin,
// resolves the tracked ref and the HEAD of every submodule, without touching
// the worktree.
//
// Mutating operations (stash, pull --rebase, submodule sync) are run through
// the git binary by the cycle package, since go-git has no stash or rebase.
package git
