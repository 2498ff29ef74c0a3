// Package lock provides the per-project single-instance marker: a file named
// lock_<name> created exclusively and holding the owner's pid.
//
// The marker is not an advisory lock. A run that is killed leaves it behind
// and later runs report "already running" until an operator removes it; the
// recorded pid is never probed for liveness.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mscherer/site-builder/internal/errors"
)

// FileName returns the marker file name for a project.
func FileName(name string) string { return "lock_" + name }

// Lock is a held marker. Release is idempotent.
type Lock struct {
	path string
	once sync.Once
	err  error
}

// Acquire creates <dir>/lock_<name> with O_EXCL and writes the current pid.
// An existing marker yields an AlreadyRunning concurrency error.
func Acquire(dir, name string) (*Lock, error) {
	path := filepath.Join(dir, FileName(name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.AlreadyRunning(name, path)
		}
		return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "failed to create lock file").
			WithContext("path", path)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return nil, errors.Wrap(werr, errors.CategoryFileSystem, errors.SeverityFatal, "failed to write lock file").
			WithContext("path", path)
	}
	return &Lock{path: path}, nil
}

// Path returns the marker location.
func (l *Lock) Path() string { return l.path }

// Release removes the marker. Calls after the first return the first result.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			l.err = fmt.Errorf("remove lock %s: %w", l.path, err)
		}
	})
	return l.err
}

// Holder reports whether a marker exists for name and, if its content parses,
// the recorded pid (0 otherwise).
func Holder(dir, name string) (held bool, pid int, err error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName(name)))
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	pid, _ = strconv.Atoi(strings.TrimSpace(string(data)))
	return true, pid, nil
}
