package runlog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderAndLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.log")
	var mirror bytes.Buffer

	l, err := Open(path, &mirror)
	require.NoError(t, err)
	require.NoError(t, l.WriteHeader(Header{
		Date:       time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC),
		Commit:     "0123abcd",
		Submodules: map[string]string{"themes/b": "bb", "themes/a": "aa"},
	}))
	require.NoError(t, l.Print("Bundle complete!"))
	require.NoError(t, l.Record("error output\n"))
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "last_build_date: 2024-03-01 12:30:05 (UTC)\n"+
		"last_build_commit: 0123abcd\n"+
		"submodule_commits: {themes/a: aa, themes/b: bb}\n"+
		"\n"+
		"Bundle complete!\n"+
		"error output\n", string(data))

	assert.Equal(t, "Bundle complete!\n", mirror.String(), "only Print is mirrored")
	assert.ErrorIs(t, l.Print("late"), os.ErrClosed)
}

func TestOpenTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.log")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o644))

	l, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, l.Print("new run"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new run\n", string(data))
}

func TestCopyInto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.log")
	out := t.TempDir()

	l, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, l.Print("build failed"))

	dst, err := l.CopyInto(out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, PublishedName), dst)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "build failed\n", string(data))
	require.NoError(t, l.Close())
}

func TestEmptySubmodules(t *testing.T) {
	assert.Equal(t, "{}", formatSubmodules(nil))
}
