package pathext

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// RakeBuilder handles Rakefile and mkrf_conf.rb based extensions.
//
// By default rake runs with RUBYARCHDIR and RUBYLIBDIR pointing at a
// temporary workspace whose contents are then copied into LibDir. With
// Targets set (e.g. "compile") the given tasks run as-is and the gem's own
// Rakefile decides where the output goes.
type RakeBuilder struct {
	toolchain
	// Targets replaces the RUBYARCHDIR/RUBYLIBDIR invocation when set.
	Targets []string
}

var _ Builder = (*RakeBuilder)(nil)

// NewRakeBuilder creates a RakeBuilder.
func NewRakeBuilder(runner Runner, config *Config) *RakeBuilder {
	return &RakeBuilder{toolchain: newToolchain(runner, config)}
}

// Name returns the builder name
func (b *RakeBuilder) Name() string {
	return "Rake"
}

// RequiredTools returns the tools needed for rake builds
func (b *RakeBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{Name: rubyCommand, Purpose: "Ruby interpreter for rake"},
		{Name: rakeCommand, Optional: true, Purpose: "Rake (falls back to the rake gem)"},
	}
}

// CheckTools verifies that Ruby is available
func (b *RakeBuilder) CheckTools() error {
	return CheckRequiredTools(b.RequiredTools())
}

// CanBuild checks if this builder can handle the description file
func (b *RakeBuilder) CanBuild(descriptionFile string) bool {
	return MatchesPattern(strings.ToLower(filepath.Base(descriptionFile)), `^rakefile(\.rb)?$`, `^mkrf_conf(\.rb)?$`)
}

// Compile returns a copy of b that runs the given rake tasks instead of the
// install-style invocation.
func (b *RakeBuilder) Compile(targets ...string) *RakeBuilder {
	c := *b
	c.Targets = append([]string{}, targets...)
	return &c
}

// Build runs rake for the extension.
func (b *RakeBuilder) Build(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	if len(b.Targets) > 0 {
		return b.runTargets(ctx, req)
	}
	return runSteps(ctx, b.toolchain, req, buildSteps{
		name:      b.Name(),
		configure: b.runMkrfConf,
		build:     b.runRake,
	})
}

// Clean runs "rake clean".
func (b *RakeBuilder) Clean(ctx context.Context, req *BuildRequest) error {
	name, args := b.determineRakeCommand([]string{"clean"})
	return b.run(ctx, &BuildResult{}, Command{Args: append([]string{name}, args...), Dir: req.SourceDir})
}

// runTargets runs explicit rake tasks in SourceDir. There is no workspace:
// the Rakefile owns its output layout.
func (b *RakeBuilder) runTargets(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	result := &BuildResult{State: StateCompiling}
	if missing, err := b.ensureRakeAvailable(ctx); err != nil {
		result.MissingDependencies = missing
		result.State = StateCompileFailed
		result.Error = stepError(ErrCompilationFailed, "rake", err)
		return result, result.Error
	}

	name, args := b.determineRakeCommand(b.Targets)
	cmd := Command{Args: append([]string{name}, args...), Dir: req.SourceDir}
	if err := b.run(ctx, result, cmd); err != nil {
		result.State = StateCompileFailed
		result.Error = stepError(ErrCompilationFailed, "rake "+strings.Join(b.Targets, " "), err)
		return result, result.Error
	}
	result.State = StateDone
	result.Success = true
	return result, nil
}

// runMkrfConf runs mkrf_conf.rb first when that is the description.
func (b *RakeBuilder) runMkrfConf(ctx context.Context, req *BuildRequest, _ *TempWorkspace, result *BuildResult) error {
	if missing, err := b.ensureRakeAvailable(ctx); err != nil {
		result.MissingDependencies = missing
		return stepError(ErrConfigurationFailed, "rake", err)
	}
	if !strings.HasPrefix(strings.ToLower(filepath.Base(req.DescriptionFile)), "mkrf_conf") {
		return nil
	}
	args := append([]string{b.rubyPath(), filepath.Base(req.DescriptionFile)}, req.ExtraArgs...)
	if err := b.run(ctx, result, Command{Args: args, Dir: req.SourceDir}); err != nil {
		return stepError(ErrConfigurationFailed, "mkrf_conf", err)
	}
	return nil
}

func (b *RakeBuilder) runRake(ctx context.Context, req *BuildRequest, ws *TempWorkspace, result *BuildResult) error {
	dest, err := filepath.Abs(ws.Path)
	if err != nil {
		return stepError(ErrCompilationFailed, "rake", err)
	}
	rakeArgs := []string{"RUBYARCHDIR=" + dest, "RUBYLIBDIR=" + dest}
	if strings.HasPrefix(strings.ToLower(filepath.Base(req.DescriptionFile)), "rakefile") {
		rakeArgs = append(rakeArgs, req.ExtraArgs...)
	}

	name, args := b.determineRakeCommand(rakeArgs)
	if err := b.run(ctx, result, Command{Args: append([]string{name}, args...), Dir: req.SourceDir}); err != nil {
		return stepError(ErrCompilationFailed, "rake", err)
	}
	return nil
}

// determineRakeCommand resolves the rake command line: an explicit
// Config.RakeCommand, rake on PATH, or the rake gem loaded through ruby.
// The args slice is never modified.
func (b *RakeBuilder) determineRakeCommand(args []string) (string, []string) {
	if len(b.config.RakeCommand) > 0 {
		resolved := append([]string{}, b.config.RakeCommand[1:]...)
		return b.config.RakeCommand[0], append(resolved, args...)
	}

	if path, err := execLookPath(rakeCommand); err == nil {
		return path, append([]string{}, args...)
	}

	resolved := []string{
		"-rrubygems",
		"-e", `load Gem.bin_path("rake", "rake")`,
		"--",
	}
	return b.rubyPath(), append(resolved, args...)
}

// ensureRakeAvailable checks for rake on PATH and otherwise for the rake gem.
// It returns the names of missing dependencies.
func (b *RakeBuilder) ensureRakeAvailable(ctx context.Context) ([]string, error) {
	if len(b.config.RakeCommand) > 0 {
		return nil, nil
	}
	if _, err := execLookPath(rakeCommand); err == nil {
		return nil, nil
	}

	rubyPath, err := execLookPath(b.rubyPath())
	if err != nil {
		return []string{rubyCommand, rakeCommand}, fmt.Errorf("ruby not found")
	}

	probe := Command{Args: []string{rubyPath, "-e", `gem "rake"`}, Env: b.config.Env}
	if err := b.runner.Run(ctx, probe, nil); err != nil {
		return []string{rakeCommand}, fmt.Errorf("rake not found")
	}
	return nil, nil
}

func (b *RakeBuilder) rubyPath() string {
	if b.config.RubyPath != "" {
		return b.config.RubyPath
	}
	return rubyCommand
}
