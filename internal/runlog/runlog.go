// Package runlog writes the per-run build log: a short header describing the
// upstream state followed by progress lines and captured command output.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// PublishedName is the file name of the log copy placed in the output directory.
// The .txt extension keeps web servers willing to serve it.
const PublishedName = "build_log.txt"

// Header is written at the top of every run log.
type Header struct {
	Date       time.Time
	Commit     string
	Submodules map[string]string
}

// Log is an open run log. It is truncated when opened.
type Log struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	mirror io.Writer
}

// Open truncates (or creates) the log at path. When mirror is non-nil,
// Print also writes there (debug mode).
func Open(path string, mirror io.Writer) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	return &Log{path: path, f: f, mirror: mirror}, nil
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// WriteHeader writes the header block followed by a blank line.
func (l *Log) WriteHeader(h Header) error {
	var b strings.Builder
	fmt.Fprintf(&b, "last_build_date: %s\n", h.Date.UTC().Format("2006-01-02 15:04:05 (UTC)"))
	fmt.Fprintf(&b, "last_build_commit: %s\n", h.Commit)
	fmt.Fprintf(&b, "submodule_commits: %s\n", formatSubmodules(h.Submodules))
	b.WriteString("\n")
	return l.write(b.String(), false)
}

// Print appends msg and mirrors it when debug output is enabled.
func (l *Log) Print(msg string) error { return l.write(line(msg), true) }

// Record appends msg to the file only.
func (l *Log) Record(msg string) error { return l.write(line(msg), false) }

func (l *Log) write(s string, mirror bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if mirror && l.mirror != nil {
		_, _ = io.WriteString(l.mirror, s)
	}
	if l.f == nil {
		return os.ErrClosed
	}
	if _, err := io.WriteString(l.f, s); err != nil {
		return err
	}
	return l.f.Sync()
}

// Close closes the file. It is safe to call more than once.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// CopyInto copies the log to <dir>/build_log.txt, keeping its modification time.
func (l *Log) CopyInto(dir string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dst := filepath.Join(dir, PublishedName)
	src, err := os.Open(l.path)
	if err != nil {
		return "", err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return "", err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return dst, nil
}

func line(msg string) string {
	if strings.HasSuffix(msg, "\n") {
		return msg
	}
	return msg + "\n"
}

func formatSubmodules(subs map[string]string) string {
	keys := make([]string, 0, len(subs))
	for k := range subs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + subs[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
