package pathext

import (
	"errors"
	"fmt"
)

// Error kinds reported by builders. Match them with errors.Is.
var (
	ErrConfigurationFailed    = errors.New("configuration failed")
	ErrCompilationFailed      = errors.New("compilation failed")
	ErrCopyFailed             = errors.New("artifact copy failed")
	ErrCleanupFailed          = errors.New("cleanup failed")
	ErrNoBuildDescription     = errors.New("no build description found")
	ErrUnsupportedDescription = errors.New("unsupported build description")
)

// StepError is returned when a build step aborts a build.
type StepError struct {
	Kind error
	Step string
	// DiagnosticLog is the on-disk location of a more detailed log, if any.
	DiagnosticLog string
	Err           error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Step != "" {
		msg = fmt.Sprintf("%s: %s", e.Step, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.DiagnosticLog != "" {
		msg = fmt.Sprintf("%s (see %s)", msg, e.DiagnosticLog)
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func stepError(kind error, step string, err error) *StepError {
	return &StepError{Kind: kind, Step: step, Err: err}
}
