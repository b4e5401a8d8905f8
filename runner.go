package pathext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Command is one toolchain invocation.
type Command struct {
	Args []string
	Dir  string
	// Env holds KEY=VALUE overrides applied on top of the inherited
	// environment.
	Env []string
	// Scrub lists variables removed from the inherited environment.
	Scrub []string
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Runner executes toolchain commands.
//
// Implementations must deliver combined stdout and stderr to onLine, one
// line at a time, and block until the process exits. A non-zero exit is
// reported as *ExitError.
type Runner interface {
	Run(ctx context.Context, cmd Command, onLine func(string)) error
}

// ExitError reports a command that ran but exited unsuccessfully.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
}

// Indirections for tests.
var (
	execCommandContext = exec.CommandContext
	execLookPath       = exec.LookPath
)

// waitDelay bounds how long Run waits for output pipes after the child was
// killed. Grandchildren that inherited them may outlive the kill.
const waitDelay = time.Second

// ExecRunner runs commands as child processes. On unix, cancellation kills
// the whole process group of the command, not only the direct child.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, c Command, onLine func(string)) error {
	if len(c.Args) == 0 {
		return errors.New("empty command")
	}

	//nolint:gosec // Commands come from builder configuration
	cmd := execCommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = childEnv(os.Environ(), c.Scrub, c.Env)
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	w := &lineWriter{onLine: onLine}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	w.Flush()

	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", c, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: c.String(), Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("%s: %w", c, err)
}

// childEnv builds a child environment from base without the scrubbed keys
// and with overrides applied last.
func childEnv(base, scrub, overrides []string) []string {
	drop := make(map[string]struct{}, len(scrub)+len(overrides))
	for _, key := range scrub {
		drop[key] = struct{}{}
	}
	for _, kv := range overrides {
		if key, _, ok := strings.Cut(kv, "="); ok {
			drop[key] = struct{}{}
		}
	}

	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := drop[key]; ok {
			continue
		}
		env = append(env, kv)
	}
	return append(env, overrides...)
}

// lineWriter splits a byte stream into lines. Stdout and stderr share one
// writer so it must be safe for concurrent use.
type lineWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	onLine func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush emits a trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(strings.TrimRight(w.buf.String(), "\r\n"))
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	if w.onLine != nil {
		w.onLine(line)
	}
}
