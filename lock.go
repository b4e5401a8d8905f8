package pathext

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const lockFileName = ".pathext.lock"

// sourceLocks serializes builds of one source tree within the process.
var sourceLocks sync.Map // map[string]*sync.Mutex

// LockSource acquires exclusive access to a source tree for the duration of
// a build. Within a process it is a mutex keyed by the absolute directory;
// across processes it is an advisory lock on <dir>/.pathext.lock where the
// platform supports one.
//
// The returned function releases both and is safe to call once.
func LockSource(dir string) (unlock func(), err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	v, _ := sourceLocks.LoadOrStore(abs, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()

	f, err := os.OpenFile(filepath.Join(abs, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		mu.Unlock()
		return nil, fmt.Errorf("lock %s: %w", abs, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = unlockFile(f)
			_ = f.Close()
			mu.Unlock()
		})
	}, nil
}
