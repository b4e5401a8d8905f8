package pathext

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const workspacePrefix = ".gem."

// TempWorkspace is a uniquely named directory under a source tree that
// isolates one build's intermediate output. It belongs to exactly one build
// and must be removed when that build returns.
type TempWorkspace struct {
	// Path is the absolute workspace location.
	Path string
	// Rel is Path relative to the source tree ("./.gem.<id>") when
	// possible, Path otherwise.
	Rel string
}

// NewTempWorkspace creates a workspace inside base.
func NewTempWorkspace(base string) (*TempWorkspace, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace base: %w", err)
	}
	for attempt := 0; attempt < 3; attempt++ {
		path := filepath.Join(absBase, workspacePrefix+uuid.NewString())
		err = os.Mkdir(path, 0o755)
		if err == nil {
			return &TempWorkspace{Path: path, Rel: RelativePath(path, absBase)}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	return nil, fmt.Errorf("create workspace in %s: %w", absBase, err)
}

// IsWorkspaceName reports whether name looks like a workspace directory.
func IsWorkspaceName(name string) bool {
	return strings.HasPrefix(name, workspacePrefix)
}

// Files lists regular files below the workspace, relative to it and sorted.
func (w *TempWorkspace) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(w.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.Path, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Remove deletes the workspace and everything in it.
func (w *TempWorkspace) Remove() error {
	if w == nil || w.Path == "" {
		return nil
	}
	return os.RemoveAll(w.Path)
}
