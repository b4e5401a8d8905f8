package pathext

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMtime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestMarkAndClearComplete(t *testing.T) {
	target := filepath.Join(t.TempDir(), "tmp", "x86_64-linux", "foo", "3.4.1")

	require.NoError(t, MarkComplete(target))
	marker := filepath.Join(target, CompleteMarker)
	assert.FileExists(t, marker)

	past := time.Now().Add(-time.Hour)
	setMtime(t, marker, past)
	require.NoError(t, MarkComplete(target))
	info, err := os.Stat(marker)
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(past), "MarkComplete must refresh the marker")

	require.NoError(t, ClearComplete(target))
	assert.NoFileExists(t, marker)
	assert.NoError(t, ClearComplete(target), "clearing twice is fine")
}

func TestUpToDate(t *testing.T) {
	f := newGemFixture(t, "foo")
	source := filepath.Join(f.extDir, "foo.c")

	ok, err := UpToDate(f.root, f.target)
	require.NoError(t, err)
	assert.False(t, ok, "no marker yet")

	require.NoError(t, MarkComplete(f.target))
	old := time.Now().Add(-time.Hour)
	for _, path := range []string{
		source,
		filepath.Join(f.extDir, "extconf.rb"),
		filepath.Join(f.root, "foo.gemspec"),
	} {
		setMtime(t, path, old)
	}

	ok, err = UpToDate(f.root, f.target)
	require.NoError(t, err)
	assert.True(t, ok)

	// Residue written by the build itself does not count.
	writeFile(t, filepath.Join(f.extDir, "Makefile"), "all:\n")
	writeFile(t, filepath.Join(f.extDir, "foo.o"), "obj")
	writeFile(t, filepath.Join(f.libDir, "foo.so"), "lib")
	writeFile(t, filepath.Join(f.root, lockFileName), "")
	writeFile(t, filepath.Join(f.root, ".git", "index"), "git")
	writeFile(t, filepath.Join(f.extDir, workspacePrefix+"abc", "x.so"), "ws")
	future := time.Now().Add(time.Hour)
	for _, path := range []string{
		filepath.Join(f.extDir, "Makefile"),
		filepath.Join(f.extDir, "foo.o"),
		filepath.Join(f.libDir, "foo.so"),
		filepath.Join(f.root, lockFileName),
		filepath.Join(f.root, ".git", "index"),
		filepath.Join(f.extDir, workspacePrefix+"abc", "x.so"),
	} {
		setMtime(t, path, future)
	}

	ok, err = UpToDate(f.root, f.target)
	require.NoError(t, err)
	assert.True(t, ok)

	setMtime(t, source, future)
	ok, err = UpToDate(f.root, f.target)
	require.NoError(t, err)
	assert.False(t, ok, "edited source must invalidate the marker")
}

func TestUpToDateMissingSource(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, MarkComplete(target))
	_, err := UpToDate(filepath.Join(t.TempDir(), "gone"), target)
	assert.Error(t, err)
}
