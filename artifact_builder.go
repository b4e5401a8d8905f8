package pathext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactBuilder compiles extconf.rb and Makefile based extensions of a
// path-sourced gem and always publishes the result into the gem's lib
// directory.
//
// A Build call runs configure (extconf.rb) in the source tree, makes the
// extension into a private TempWorkspace, copies the workspace into LibDir
// and runs make clean. The workspace is removed on every exit path and
// LibDir is only touched after the toolchain reported success.
//
// Unlike the stock installer flow, nothing is moved into the shared
// extension directory: TargetDir only receives mkmf.log, the completion
// marker and, when a step fails, the log as gem_make.out. Local gems do not
// bump their version when their sources change, so a cached copy there
// would go stale.
type ArtifactBuilder struct {
	toolchain
	getenv func(string) string
}

var _ Builder = (*ArtifactBuilder)(nil)

// NewArtifactBuilder creates a builder. A nil runner runs real processes, a
// nil config uses DefaultConfig.
func NewArtifactBuilder(runner Runner, config *Config) *ArtifactBuilder {
	return &ArtifactBuilder{
		toolchain: newToolchain(runner, config),
		getenv:    os.Getenv,
	}
}

// Name returns the builder name
func (b *ArtifactBuilder) Name() string {
	return "ExtConf"
}

// RequiredTools returns the tools needed for extconf.rb builds
func (b *ArtifactBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{
			Name:    rubyCommand,
			Purpose: "Ruby interpreter for extconf.rb",
		},
		{
			Name:         "gcc",
			Alternatives: []string{"clang", "cc", "cl"},
			Purpose:      "C/C++ compiler for native extensions",
		},
		{
			Name:         makeProgram,
			Alternatives: []string{"gmake", nmakeProgram},
			Purpose:      "Build automation tool",
		},
	}
}

// CheckTools verifies that Ruby, a C compiler and make are available
func (b *ArtifactBuilder) CheckTools() error {
	return CheckRequiredTools(b.RequiredTools())
}

// CanBuild accepts configure scripts and prebuilt Makefiles.
func (b *ArtifactBuilder) CanBuild(descriptionFile string) bool {
	kind := KindOf(descriptionFile)
	return kind == KindConfigureScript || kind == KindPrebuilt
}

// Build runs configure, make, artifact publication and make clean.
//
// A missing description, or a configure script that produced no Makefile, is
// not an error: the result is a successful skip with a notice in the log.
// Every other failure returns a *StepError whose kind is one of
// ErrConfigurationFailed, ErrCompilationFailed or ErrCopyFailed, together
// with a result carrying the full log. Cleanup failures are only logged.
func (b *ArtifactBuilder) Build(ctx context.Context, req *BuildRequest) (result *BuildResult, err error) {
	start := time.Now()
	result = &BuildResult{State: StateInit}
	logger := b.config.logger()

	defer func() {
		result.Duration = time.Since(start)
		if err != nil {
			result.Error = err
			result.Success = false
			logger.Debugf("%s: build of %s ended in %s", b.Name(), req.DescriptionFile, result.State)
			return
		}
		if result.Success && !result.Skipped {
			result.logf(fmt.Sprintf("Finished building %s after %0.2f seconds", req.DescriptionFile, result.Duration.Seconds()))
		}
	}()

	kind := KindOf(req.DescriptionFile)
	if kind == KindOther {
		return result, stepError(ErrUnsupportedDescription, b.Name(), fmt.Errorf("%s", req.DescriptionFile))
	}

	desc := req.DescriptionPath()
	if _, statErr := os.Stat(desc); statErr != nil {
		if os.IsNotExist(statErr) {
			markSkipped(result, fmt.Sprintf("Skipping %s: no build description found at %s", req.DescriptionFile, desc))
			return result, nil
		}
		return result, stepError(ErrConfigurationFailed, "stat description", statErr)
	}

	if req.TargetDir != "" {
		if mkErr := os.MkdirAll(req.TargetDir, 0o755); mkErr != nil {
			return result, stepError(ErrConfigurationFailed, "create target directory", mkErr)
		}
	}

	ws, err := NewTempWorkspace(req.SourceDir)
	if err != nil {
		return result, stepError(ErrConfigurationFailed, "create workspace", err)
	}
	defer removeWorkspace(b.config, ws, result)

	if kind == KindConfigureScript {
		result.State = StateConfiguring
		if err := b.configure(ctx, req, result); err != nil {
			result.State = StateConfigFailed
			return result, b.logFailure(req, result, err)
		}
	}

	result.State = StateCompiling
	if err := b.compile(ctx, req, ws, result); err != nil {
		if errors.Is(err, ErrNoBuildDescription) {
			result.logf(err.Error())
			markSkipped(result, fmt.Sprintf("Skipping make for %s as no Makefile was found.", req.DescriptionFile))
			return result, nil
		}
		result.State = StateCompileFailed
		return result, b.logFailure(req, result, err)
	}

	if result.Outputs, err = ws.Files(); err != nil {
		result.State = StateCompileFailed
		return result, stepError(ErrCompilationFailed, "list build outputs", err)
	}

	switch {
	case req.LibDir == "":
	case !b.config.Capabilities.InstallInLib:
		result.logf("Installing extensions into lib is disabled; leaving build output in place")
	case b.crossCompiling(req):
		result.logf(fmt.Sprintf("Cross-compiling for %s; not copying extensions into %s", req.CrossCompile.Platform, req.LibDir))
	default:
		result.State = StateCopyingArtifacts
		copied, copyErr := copyEntries(ws.Path, req.LibDir)
		result.ArtifactsCopied = copied
		if copyErr != nil {
			result.State = StateCopyFailed
			return result, b.logFailure(req, result, stepError(ErrCopyFailed, "copy into "+req.LibDir, copyErr))
		}
	}

	result.State = StateCleaning
	if cleanErr := b.runMake(ctx, req, ws, result, "clean"); cleanErr != nil {
		msg := stepError(ErrCleanupFailed, "make clean", cleanErr).Error()
		result.logf(msg)
		logger.Warnf("%s", msg)
	}

	if req.TargetDir != "" {
		if markErr := MarkComplete(req.TargetDir); markErr != nil {
			result.logf(fmt.Sprintf("failed to write completion marker: %v", markErr))
			logger.Warnf("failed to write completion marker in %s: %v", req.TargetDir, markErr)
		}
	}

	result.State = StateDone
	result.Success = true
	return result, nil
}

// Clean runs make clean in the source tree when a Makefile is present.
func (b *ArtifactBuilder) Clean(ctx context.Context, req *BuildRequest) error {
	if _, err := os.Stat(filepath.Join(req.SourceDir, "Makefile")); os.IsNotExist(err) {
		return nil // Nothing to clean
	}
	prog, _ := b.config.makeCommand(req.CrossCompile)
	result := &BuildResult{}
	return b.run(ctx, result, Command{
		Args: append(prog, "clean"),
		Dir:  req.SourceDir,
	})
}

// configure executes ruby extconf.rb to generate the Makefile.
func (b *ArtifactBuilder) configure(ctx context.Context, req *BuildRequest, result *BuildResult) error {
	rubyPath := b.config.RubyPath
	if rubyPath == "" {
		rubyPath = rubyCommand
	}

	args := []string{rubyPath, b.descriptionArg(req)}
	if target := b.targetConfig(req); target != nil && target.Path != "" {
		args = append(args, "--target-rbconfig="+target.Path)
	}
	args = append(args, req.ExtraArgs...)

	runErr := b.run(ctx, result, Command{Args: args, Dir: req.SourceDir})

	var diagnostic string
	mkmfLog := filepath.Join(req.SourceDir, mkmfLogName)
	if _, statErr := os.Stat(mkmfLog); statErr == nil && req.TargetDir != "" {
		dest := filepath.Join(req.TargetDir, mkmfLogName)
		if runErr != nil {
			result.logf("To see why this extension failed to compile, please check the mkmf.log which can be found here:")
			result.logf("  " + dest)
		}
		if mvErr := moveFile(mkmfLog, dest); mvErr != nil {
			result.logf(fmt.Sprintf("failed to move %s into %s: %v", mkmfLogName, req.TargetDir, mvErr))
		} else {
			diagnostic = dest
		}
	}

	if runErr != nil {
		err := stepError(ErrConfigurationFailed, "extconf", runErr)
		err.DiagnosticLog = diagnostic
		return err
	}
	return nil
}

// logFailure saves the log so far as gem_make.out in TargetDir and names
// that file in the log and in err. Errors that already point at a
// diagnostic log are returned as they are.
func (b *ArtifactBuilder) logFailure(req *BuildRequest, result *BuildResult, err error) error {
	var stepErr *StepError
	if req.TargetDir == "" || !errors.As(err, &stepErr) || stepErr.DiagnosticLog != "" {
		return err
	}
	if writeErr := writeGemMakeOut(req.TargetDir, result.Log); writeErr != nil {
		b.config.logger().Warnf("writing %s: %v", gemMakeOutName, writeErr)
		return err
	}
	path := filepath.Join(req.TargetDir, gemMakeOutName)
	result.logf("Results logged to " + path)
	stepErr.DiagnosticLog = path
	return err
}

// compile runs the default make targets with output going to the workspace.
func (b *ArtifactBuilder) compile(ctx context.Context, req *BuildRequest, ws *TempWorkspace, result *BuildResult) error {
	if _, err := os.Stat(filepath.Join(req.SourceDir, "Makefile")); os.IsNotExist(err) {
		if _, gnuErr := os.Stat(filepath.Join(req.SourceDir, "GNUmakefile")); os.IsNotExist(gnuErr) {
			return fmt.Errorf("%w: no Makefile in %s", ErrNoBuildDescription, req.SourceDir)
		}
	}
	for _, target := range []string{"clean", "", "install"} {
		if err := b.runMake(ctx, req, ws, result, target); err != nil {
			step := strings.TrimSpace("make " + target)
			return stepError(ErrCompilationFailed, step, err)
		}
	}
	return nil
}

// runMake invokes one make target. sitearchdir and sitelibdir point at the
// workspace so "make install" writes nowhere else. DESTDIR is passed empty on
// the command line, overriding anything inherited through MAKEFLAGS, and is
// scrubbed from the child environment.
func (b *ArtifactBuilder) runMake(ctx context.Context, req *BuildRequest, ws *TempWorkspace, result *BuildResult, target string) error {
	prog, hasArgs := b.config.makeCommand(b.targetConfig(req))
	isNmake := strings.Contains(strings.ToLower(filepath.Base(prog[0])), nmakeProgram)

	args := append([]string{}, prog...)
	if jobs := b.jobs(req); target != "clean" && jobs > 0 && !hasArgs && !isNmake && b.getenv("MAKEFLAGS") == "" {
		args = append(args, fmt.Sprintf("-j%d", jobs))
	}
	if !isNmake {
		args = append(args, "DESTDIR=")
	}
	args = append(args, "sitearchdir="+ws.Rel, "sitelibdir="+ws.Rel)
	if target != "" {
		args = append(args, target)
	}

	return b.run(ctx, result, Command{
		Args:  args,
		Dir:   req.SourceDir,
		Scrub: []string{"DESTDIR"},
	})
}

func (b *ArtifactBuilder) jobs(req *BuildRequest) int {
	if !b.config.Capabilities.Jobs {
		return 0
	}
	if req.Jobs > 0 {
		return req.Jobs
	}
	return b.config.Jobs
}

// targetConfig returns the cross-compile config when the toolchain accepts one.
func (b *ArtifactBuilder) targetConfig(req *BuildRequest) *TargetConfig {
	if !b.config.Capabilities.TargetConfig {
		return nil
	}
	return req.CrossCompile
}

// crossCompiling reports a target platform that differs from the host.
func (b *ArtifactBuilder) crossCompiling(req *BuildRequest) bool {
	target := b.targetConfig(req)
	if target == nil || target.Platform == "" {
		return false
	}
	host := b.config.RubyPlatform
	if host == "" {
		host = HostPlatform()
	}
	return target.Platform != host
}

func (b *ArtifactBuilder) descriptionArg(req *BuildRequest) string {
	desc := req.DescriptionPath()
	if rel, err := filepath.Rel(req.SourceDir, desc); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return desc
}
