package pathext

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// CompleteMarker is the file whose presence in an extension directory means
// the last build of the source tree succeeded.
const CompleteMarker = "gem.build_complete"

// skipDirs are never considered part of a gem's sources.
var skipDirs = map[string]struct{}{
	"tmp":  {},
	".git": {},
	".hg":  {},
	".svn": {},
}

// MarkComplete touches the completion marker in targetDir.
func MarkComplete(targetDir string) error {
	path := filepath.Join(targetDir, CompleteMarker)
	now := time.Now()
	if err := os.Chtimes(path, now, now); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// ClearComplete removes the completion marker, if any.
func ClearComplete(targetDir string) error {
	err := os.Remove(filepath.Join(targetDir, CompleteMarker))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// UpToDate reports whether targetDir holds a completion marker at least as
// new as every file in sourceDir. Build residue (tmp/, VCS metadata,
// workspaces, the lock file) and Makefiles/objects regenerated by the build
// itself are ignored.
func UpToDate(sourceDir, targetDir string) (bool, error) {
	info, err := os.Stat(filepath.Join(targetDir, CompleteMarker))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	marked := info.ModTime()

	newest, err := newestSource(sourceDir, targetDir)
	if err != nil {
		return false, err
	}
	return !newest.After(marked), nil
}

func newestSource(sourceDir, targetDir string) (time.Time, error) {
	var newest time.Time
	absTarget, _ := filepath.Abs(targetDir)

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == sourceDir {
				return nil
			}
			if _, skip := skipDirs[name]; skip || IsWorkspaceName(name) {
				return filepath.SkipDir
			}
			if abs, _ := filepath.Abs(path); abs == absTarget {
				return filepath.SkipDir
			}
			return nil
		}
		if isBuildResidue(name) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
		return nil
	})
	return newest, err
}

// isBuildResidue matches files that configure and make write back into the
// source tree.
func isBuildResidue(name string) bool {
	switch name {
	case lockFileName, "Makefile", mkmfLogName, "extconf.h", gemMakeOutName:
		return true
	}
	return MatchesExtension(name, ".o", ".obj") || isNativeLibrary(name)
}
