//go:build !unix && !windows

package pathext

import "os"

// No advisory file locks here; the in-process mutex still applies.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
