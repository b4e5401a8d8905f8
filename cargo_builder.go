package pathext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// CargoBuilder handles Rust-based builds using Cargo.
//
// Cargo's target directory is redirected into the workspace so that the
// source tree stays clean; the cdylib it produces is renamed to the
// extension name Ruby expects and published like any other artifact.
type CargoBuilder struct {
	toolchain
}

var _ Builder = (*CargoBuilder)(nil)

// NewCargoBuilder creates a CargoBuilder.
func NewCargoBuilder(runner Runner, config *Config) *CargoBuilder {
	return &CargoBuilder{toolchain: newToolchain(runner, config)}
}

// Name returns the builder name
func (b *CargoBuilder) Name() string {
	return "Cargo"
}

// RequiredTools returns the tools needed for Cargo builds
func (b *CargoBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{Name: "cargo", Purpose: "Rust compiler and package manager"},
	}
}

// CheckTools verifies that cargo is available
func (b *CargoBuilder) CheckTools() error {
	return CheckRequiredTools(b.RequiredTools())
}

// CanBuild checks if this builder can handle the description file
func (b *CargoBuilder) CanBuild(descriptionFile string) bool {
	return MatchesPattern(descriptionFile, `Cargo\.toml$`)
}

// Build compiles the extension using cargo
func (b *CargoBuilder) Build(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	return runSteps(ctx, b.toolchain, req, buildSteps{
		name:    b.Name(),
		build:   b.runCargo,
		collect: b.collectLibraries,
	})
}

// Clean is a no-op: the cargo target directory lives in the workspace.
func (b *CargoBuilder) Clean(context.Context, *BuildRequest) error {
	return nil
}

func (b *CargoBuilder) targetDir(ws *TempWorkspace) string {
	return filepath.Join(ws.Path, "target")
}

// runCargo executes cargo to build the Rust extension
func (b *CargoBuilder) runCargo(ctx context.Context, req *BuildRequest, ws *TempWorkspace, result *BuildResult) error {
	args := []string{b.getCargoPath(), "rustc", "--release", "--lib", "--crate-type", "cdylib"}

	if target := b.cargoTarget(); target != "" {
		args = append(args, "--target", target)
	}

	if _, err := os.Stat(filepath.Join(req.SourceDir, "Cargo.lock")); err == nil {
		args = append(args, "--locked")
	}

	jobs := req.Jobs
	if jobs == 0 {
		jobs = b.config.Jobs
	}
	if jobs > 0 {
		args = append(args, "--jobs", fmt.Sprintf("%d", jobs))
	}

	args = append(args, req.ExtraArgs...)

	if rustcArgs := b.getRustcArgs(); len(rustcArgs) > 0 {
		args = append(args, "--")
		args = append(args, rustcArgs...)
	}

	env := append([]string{"CARGO_TARGET_DIR=" + b.targetDir(ws)}, b.getRubyEnv()...)
	if err := b.run(ctx, result, Command{Args: args, Dir: req.SourceDir, Env: env}); err != nil {
		return stepError(ErrCompilationFailed, "cargo", err)
	}
	return nil
}

// collectLibraries renames the built dynamic libraries into the workspace
// root and drops cargo's target directory.
func (b *CargoBuilder) collectLibraries(_ *BuildRequest, ws *TempWorkspace, result *BuildResult) error {
	releaseDir := b.targetDir(ws)
	if target := b.cargoTarget(); target != "" {
		releaseDir = filepath.Join(releaseDir, target)
	}
	releaseDir = filepath.Join(releaseDir, "release")

	libs, err := b.findCargoOutputs(releaseDir)
	if err != nil {
		return stepError(ErrCompilationFailed, "find cargo outputs", err)
	}
	if len(libs) == 0 {
		return stepError(ErrCompilationFailed, "find cargo outputs", fmt.Errorf("no dynamic libraries found in %s", releaseDir))
	}

	for _, lib := range libs {
		dest := filepath.Join(ws.Path, b.getRubyExtensionName(lib))
		if err := moveFile(lib, dest); err != nil {
			return stepError(ErrCompilationFailed, "rename "+filepath.Base(lib), err)
		}
		result.logf(fmt.Sprintf("Renamed %s -> %s", filepath.Base(lib), filepath.Base(dest)))
	}

	return os.RemoveAll(b.targetDir(ws))
}

// findCargoOutputs locates built dynamic libraries
func (b *CargoBuilder) findCargoOutputs(dir string) ([]string, error) {
	var pattern string
	switch runtime.GOOS {
	case platformWindows:
		pattern = "*.dll"
	case platformDarwin:
		pattern = "*.dylib"
	default:
		pattern = "*.so"
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	return matches, nil
}

// getRubyExtensionName converts a Rust library name to Ruby extension format
func (b *CargoBuilder) getRubyExtensionName(libPath string) string {
	filename := filepath.Base(libPath)
	name := strings.TrimSuffix(strings.TrimPrefix(filename, "lib"), filepath.Ext(filename))

	switch runtime.GOOS {
	case platformDarwin:
		return name + ".bundle"
	case platformWindows:
		return name + ".dll"
	default:
		return name + ".so"
	}
}

// getRustcArgs returns rustc arguments for Ruby integration
func (b *CargoBuilder) getRustcArgs() []string {
	switch runtime.GOOS {
	case platformDarwin:
		return []string{"-C", "link-arg=-Wl,-undefined,dynamic_lookup"}
	case platformWindows:
		return []string{"-C", "link-arg=-Wl,--dynamicbase", "-C", "link-arg=-Wl,--disable-auto-image-base", "-C", "link-arg=-static-libgcc"}
	}
	return nil
}

// getRubyEnv returns Ruby-specific environment variables for Cargo
func (b *CargoBuilder) getRubyEnv() []string {
	rustFlags := "--cfg=rb_sys_gem --cfg=rubygems"
	if existing := os.Getenv("RUSTFLAGS"); existing != "" {
		rustFlags = existing + " " + rustFlags
	}

	env := []string{"RUSTFLAGS=" + rustFlags}
	if b.config.RubyPath != "" {
		env = append(env, "RUBY="+b.config.RubyPath)
	}
	if b.config.RubyVersion != "" {
		env = append(env, "RUBY_VERSION="+b.config.RubyVersion)
	}
	return env
}

func (b *CargoBuilder) cargoTarget() string {
	return os.Getenv("CARGO_BUILD_TARGET")
}

// getCargoPath returns the path to the cargo executable
func (b *CargoBuilder) getCargoPath() string {
	if cargoPath := os.Getenv("CARGO"); cargoPath != "" {
		return cargoPath
	}
	return "cargo"
}
