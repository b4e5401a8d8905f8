package pathext

import (
	"context"
	"fmt"
	"os"
	"time"
)

// toolchain bundles what every builder needs to run commands: the Runner
// and the shared Config.
type toolchain struct {
	runner Runner
	config *Config
}

func newToolchain(runner Runner, config *Config) toolchain {
	if runner == nil {
		runner = ExecRunner{}
	}
	if config == nil {
		config = DefaultConfig()
	}
	return toolchain{runner: runner, config: config}
}

// run executes cmd, echoing the working directory and command line into the
// result log before the streamed output.
func (t toolchain) run(ctx context.Context, result *BuildResult, cmd Command) error {
	cmd.Env = append(append([]string{}, t.config.Env...), cmd.Env...)
	result.logf("current directory: " + cmd.Dir)
	result.logf(cmd.String())
	t.config.logger().Debugf("running %q in %s", cmd.String(), cmd.Dir)
	return t.runner.Run(ctx, cmd, result.logf)
}

// buildSteps is the shape shared by the secondary builders: an optional
// configure, a build that writes into the workspace, and collection of what
// the build produced.
type buildSteps struct {
	name      string
	configure func(ctx context.Context, req *BuildRequest, ws *TempWorkspace, result *BuildResult) error
	build     func(ctx context.Context, req *BuildRequest, ws *TempWorkspace, result *BuildResult) error
	collect   func(req *BuildRequest, ws *TempWorkspace, result *BuildResult) error
}

// runSteps drives buildSteps with the same guarantees as ArtifactBuilder:
// a fresh workspace per call, removed on every exit path, and artifacts
// published into LibDir only after every step succeeded.
//
// If any step fails, processing stops and the error is returned with
// Success=false.
func runSteps(ctx context.Context, tc toolchain, req *BuildRequest, steps buildSteps) (result *BuildResult, err error) {
	start := time.Now()
	result = &BuildResult{State: StateInit}
	defer func() {
		result.Duration = time.Since(start)
		if err != nil {
			result.Error = err
		}
	}()

	if _, statErr := os.Stat(req.DescriptionPath()); os.IsNotExist(statErr) {
		markSkipped(result, fmt.Sprintf("Skipping %s: no build description at %s", steps.name, req.DescriptionPath()))
		return result, nil
	}

	ws, err := NewTempWorkspace(req.SourceDir)
	if err != nil {
		return result, err
	}
	defer removeWorkspace(tc.config, ws, result)

	if steps.configure != nil {
		result.State = StateConfiguring
		if err := steps.configure(ctx, req, ws, result); err != nil {
			result.State = StateConfigFailed
			return result, err
		}
	}

	result.State = StateCompiling
	if err := steps.build(ctx, req, ws, result); err != nil {
		result.State = StateCompileFailed
		return result, err
	}

	if steps.collect != nil {
		if err := steps.collect(req, ws, result); err != nil {
			result.State = StateCompileFailed
			return result, err
		}
	}

	if result.Outputs, err = ws.Files(); err != nil {
		result.State = StateCompileFailed
		return result, stepError(ErrCompilationFailed, "collect outputs", err)
	}

	dest := req.LibDir
	if dest == "" {
		dest = req.TargetDir
	}
	if dest != "" && len(result.Outputs) > 0 {
		result.State = StateCopyingArtifacts
		copied, copyErr := copyEntries(ws.Path, dest)
		result.ArtifactsCopied = copied
		if copyErr != nil {
			result.State = StateCopyFailed
			return result, stepError(ErrCopyFailed, "copy artifacts", copyErr)
		}
	}

	result.State = StateDone
	result.Success = true
	return result, nil
}

func markSkipped(result *BuildResult, notice string) {
	result.logf(notice)
	result.State = StateSkipped
	result.Skipped = true
	result.Success = true
}

// removeWorkspace is deferred by every builder. A failure is logged and never
// changes the outcome of the build.
func removeWorkspace(cfg *Config, ws *TempWorkspace, result *BuildResult) {
	if err := ws.Remove(); err != nil {
		msg := fmt.Sprintf("failed to remove workspace %s: %v", ws.Path, err)
		result.logf(msg)
		cfg.logger().Warnf("%s", msg)
	}
}
