package helpers

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// FileAssertions checks files below a checkout, output or home directory.
// Every method reports through t.Errorf and returns the receiver so checks
// can be chained.
type FileAssertions struct {
	t    *testing.T
	root string
}

// NewFileAssertions roots the assertions at dir.
func NewFileAssertions(t *testing.T, dir string) *FileAssertions {
	t.Helper()
	return &FileAssertions{t: t, root: dir}
}

func (fa *FileAssertions) path(rel string) string { return filepath.Join(fa.root, rel) }

// AssertFileExists fails when nothing exists at rel.
func (fa *FileAssertions) AssertFileExists(rel string) *FileAssertions {
	fa.t.Helper()
	if _, err := os.Stat(fa.path(rel)); err != nil {
		fa.t.Errorf("%s: expected to exist: %v", rel, err)
	}
	return fa
}

// AssertFileMissing fails when anything exists at rel.
func (fa *FileAssertions) AssertFileMissing(rel string) *FileAssertions {
	fa.t.Helper()
	if _, err := os.Stat(fa.path(rel)); !os.IsNotExist(err) {
		fa.t.Errorf("%s: expected to be absent (stat: %v)", rel, err)
	}
	return fa
}

// AssertFileContains fails unless the file at rel holds want.
func (fa *FileAssertions) AssertFileContains(rel, want string) *FileAssertions {
	fa.t.Helper()
	data, err := os.ReadFile(fa.path(rel))
	switch {
	case err != nil:
		fa.t.Errorf("%s: %v", rel, err)
	case !strings.Contains(string(data), want):
		fa.t.Errorf("%s: missing %q in:\n%s", rel, want, data)
	}
	return fa
}

// AssertDirEmpty fails unless rel is a directory without entries.
func (fa *FileAssertions) AssertDirEmpty(rel string) *FileAssertions {
	fa.t.Helper()
	entries, err := os.ReadDir(fa.path(rel))
	if err != nil {
		fa.t.Errorf("%s: %v", rel, err)
		return fa
	}
	if len(entries) > 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		slices.Sort(names)
		fa.t.Errorf("%s: expected empty directory, found %v", rel, names)
	}
	return fa
}
