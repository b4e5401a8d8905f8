package pathext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"
)

// Build tool constants
const (
	unixMakefiles = "Unix Makefiles"
	cmakeCommand  = "cmake"
)

// nativeLibraryGlob matches compiled extensions at any depth.
const nativeLibraryGlob = "**/*.{so,bundle,dll,dylib}"

// CmakeBuilder handles CMake-based builds.
//
// The project is configured out of tree into the workspace, built there,
// and the native libraries found anywhere below the build tree are
// collected into the workspace root before publication.
type CmakeBuilder struct {
	toolchain
}

var _ Builder = (*CmakeBuilder)(nil)

// NewCmakeBuilder creates a CmakeBuilder.
func NewCmakeBuilder(runner Runner, config *Config) *CmakeBuilder {
	return &CmakeBuilder{toolchain: newToolchain(runner, config)}
}

// Name returns the builder name
func (b *CmakeBuilder) Name() string {
	return "CMake"
}

// RequiredTools returns the tools needed for CMake builds
func (b *CmakeBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{Name: cmakeCommand, Purpose: "CMake build system"},
		{Name: "ninja", Optional: true, Purpose: "Ninja build tool"},
	}
}

// CheckTools verifies that cmake is available
func (b *CmakeBuilder) CheckTools() error {
	return CheckRequiredTools(b.RequiredTools())
}

// CanBuild checks if this builder can handle the description file
func (b *CmakeBuilder) CanBuild(descriptionFile string) bool {
	return MatchesPattern(descriptionFile, `CMakeLists\.txt$`)
}

// Build compiles the extension using the cmake configure / build workflow.
func (b *CmakeBuilder) Build(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	return runSteps(ctx, b.toolchain, req, buildSteps{
		name:      b.Name(),
		configure: b.runConfigure,
		build:     b.runBuild,
		collect:   b.collectLibraries,
	})
}

// Clean is a no-op: every build happens out of tree in a workspace that is
// already gone.
func (b *CmakeBuilder) Clean(context.Context, *BuildRequest) error {
	return nil
}

func (b *CmakeBuilder) buildDir(ws *TempWorkspace) string {
	return filepath.Join(ws.Path, "build")
}

func (b *CmakeBuilder) env() []string {
	if b.config.RubyPath == "" {
		return nil
	}
	return []string{fmt.Sprintf("Ruby_EXECUTABLE=%s", b.config.RubyPath)}
}

// runConfigure generates the build tree in <workspace>/build.
func (b *CmakeBuilder) runConfigure(ctx context.Context, req *BuildRequest, ws *TempWorkspace, result *BuildResult) error {
	args := []string{cmakeCommand, "-S", ".", "-B", b.buildDir(ws), "-DCMAKE_BUILD_TYPE=Release"}
	if generator := b.getGenerator(); generator != "" {
		args = append(args, "-G", generator)
	}
	args = append(args, req.ExtraArgs...)

	if err := b.run(ctx, result, Command{Args: args, Dir: req.SourceDir, Env: b.env()}); err != nil {
		return stepError(ErrConfigurationFailed, "cmake", err)
	}
	return nil
}

// runBuild builds the configured tree.
func (b *CmakeBuilder) runBuild(ctx context.Context, req *BuildRequest, ws *TempWorkspace, result *BuildResult) error {
	buildArgs := []string{cmakeCommand, "--build", b.buildDir(ws), "--config", "Release"}
	jobs := req.Jobs
	if jobs == 0 {
		jobs = b.config.Jobs
	}
	if jobs > 0 {
		buildArgs = append(buildArgs, "--parallel", fmt.Sprintf("%d", jobs))
	}
	if err := b.run(ctx, result, Command{Args: buildArgs, Dir: req.SourceDir, Env: b.env()}); err != nil {
		return stepError(ErrCompilationFailed, "cmake --build", err)
	}
	return nil
}

// collectLibraries moves the native libraries out of the build tree into the
// workspace root and drops the rest of the tree.
func (b *CmakeBuilder) collectLibraries(_ *BuildRequest, ws *TempWorkspace, result *BuildResult) error {
	buildDir := b.buildDir(ws)
	matches, err := doublestar.Glob(os.DirFS(buildDir), nativeLibraryGlob)
	if err != nil {
		return stepError(ErrCompilationFailed, "find libraries", err)
	}
	if len(matches) == 0 {
		return stepError(ErrCompilationFailed, "find libraries", fmt.Errorf("no native libraries under %s", buildDir))
	}

	for _, match := range matches {
		src := filepath.Join(buildDir, filepath.FromSlash(match))
		if info, err := os.Stat(src); err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := moveFile(src, filepath.Join(ws.Path, filepath.Base(src))); err != nil {
			return stepError(ErrCompilationFailed, "collect "+match, err)
		}
		result.logf("Collected " + match)
	}
	return os.RemoveAll(buildDir)
}

// getGenerator returns the appropriate CMake generator for the platform
func (b *CmakeBuilder) getGenerator() string {
	if generator := os.Getenv("CMAKE_GENERATOR"); generator != "" {
		return generator
	}
	if runtime.GOOS == platformWindows {
		return ""
	}
	return unixMakefiles
}
