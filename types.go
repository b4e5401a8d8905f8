package pathext

import (
	"path/filepath"
	"time"
)

// BuildRequest describes one native extension build.
//
// A request is immutable once handed to a builder:
//   - SourceDir: directory holding the build description; the temporary
//     workspace and diagnostic logs are scoped to it
//   - DescriptionFile: the build description (e.g. "extconf.rb"), relative
//     to SourceDir or absolute
//   - TargetDir: extension directory that receives diagnostics and the
//     completion marker
//   - LibDir: optional directory the artifacts are copied into
//   - ExtraArgs: arguments forwarded to the configure step
//   - CrossCompile: optional target configuration
//   - Jobs: parallelism hint for the toolchain (0 = toolchain default)
type BuildRequest struct {
	SourceDir       string
	DescriptionFile string
	TargetDir       string
	LibDir          string
	ExtraArgs       []string
	CrossCompile    *TargetConfig
	Jobs            int
}

// DescriptionPath returns the absolute path of the build description.
func (r *BuildRequest) DescriptionPath() string {
	if filepath.IsAbs(r.DescriptionFile) {
		return r.DescriptionFile
	}
	return filepath.Join(r.SourceDir, r.DescriptionFile)
}

// TargetConfig is the cross-compilation target handed to the configure step.
type TargetConfig struct {
	// Path of the target rbconfig.rb.
	Path string
	// Platform of the target, e.g. "aarch64-linux".
	Platform string
	// MakeProgram overrides the make program for this target.
	MakeProgram string
}

// BuildResult contains the output and status of a build operation.
//
// After a build completes, this structure provides:
//   - Success status indicating if the build completed without errors
//   - The captured log (toolchain output plus builder notices)
//   - Outputs produced in the workspace and the artifacts copied from it
//   - Error information if the build failed
type BuildResult struct {
	Success         bool          // True if build completed successfully
	Skipped         bool          // True when there was nothing to build
	State           BuildState    // Terminal state of the build
	Log             []string      // Lines of output from the build process
	Outputs         []string      // Files produced by the toolchain, relative to the workspace
	ArtifactsCopied []string      // Destination paths written into LibDir
	Duration        time.Duration // Wall time of the build
	Error           error         // Error if build failed, nil otherwise

	MissingDependencies []string // Names of build-time dependencies that were missing
}

func (r *BuildResult) logf(line string) {
	r.Log = append(r.Log, line)
}

// BuildState is a step of the per-build state machine.
type BuildState int

// Build states. The failed states, Skipped and Done are terminal.
const (
	StateInit BuildState = iota
	StateConfiguring
	StateConfigFailed
	StateCompiling
	StateCompileFailed
	StateCopyingArtifacts
	StateCopyFailed
	StateCleaning
	StateDone
	StateSkipped
)

var stateNames = [...]string{
	StateInit:             "init",
	StateConfiguring:      "configuring",
	StateConfigFailed:     "config-failed",
	StateCompiling:        "compiling",
	StateCompileFailed:    "compile-failed",
	StateCopyingArtifacts: "copying-artifacts",
	StateCopyFailed:       "copy-failed",
	StateCleaning:         "cleaning",
	StateDone:             "done",
	StateSkipped:          "skipped",
}

func (s BuildState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition follows s.
func (s BuildState) Terminal() bool {
	switch s {
	case StateConfigFailed, StateCompileFailed, StateCopyFailed, StateDone, StateSkipped:
		return true
	}
	return false
}
