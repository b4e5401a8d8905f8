//go:build !unix

package pathext

import "os/exec"

// killProcessGroup keeps the default cancellation, which kills the direct
// child; WaitDelay bounds the wait for anything it spawned.
func killProcessGroup(*exec.Cmd) {}
