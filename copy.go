package pathext

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// copyEntries copies every entry of srcDir into destDir, replacing any
// same-named destination entry. It returns the destination paths of the
// copied files.
func copyEntries(srcDir, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, err
	}

	var copied []string
	for _, entry := range entries {
		src := filepath.Join(srcDir, entry.Name())
		dest := filepath.Join(destDir, entry.Name())

		// A stale entry of a different type under the same name is replaced.
		if err := removeConflicting(dest, entry.IsDir()); err != nil {
			return copied, err
		}

		files, err := copyTree(src, dest)
		copied = append(copied, files...)
		if err != nil {
			return copied, err
		}
	}
	sort.Strings(copied)
	return copied, nil
}

func removeConflicting(dest string, srcIsDir bool) error {
	info, err := os.Lstat(dest)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if srcIsDir && info.IsDir() {
		return nil
	}
	return os.RemoveAll(dest)
}

// copyTree copies a file or directory recursively.
func copyTree(src, dest string) ([]string, error) {
	var copied []string
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(link, target); err != nil {
				return err
			}
		default:
			if err := copyFile(path, target); err != nil {
				return err
			}
		}
		copied = append(copied, target)
		return nil
	})
	return copied, err
}

func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", srcPath)
	}

	if mkErr := os.MkdirAll(filepath.Dir(destPath), 0o755); mkErr != nil {
		return mkErr
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	// Unlink first so a loaded shared object keeps its old inode.
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// moveFile renames src to dest, falling back to copy and delete across
// filesystems.
func moveFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}
