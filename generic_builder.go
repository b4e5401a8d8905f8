package pathext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GenericBuilder is a configurable builder for languages that compile a
// source file straight into a shared library (Crystal, Zig, Swift and
// similar). It is not part of NewRegistry; register it explicitly:
//
//	registry.Register(pathext.NewZigBuilder(runner, cfg))
//
// The build command runs in SourceDir with the output pointed into the
// build's workspace. Libraries the tool writes into the source tree anyway
// (zig-out/) are collected by OutputPatterns.
type GenericBuilder struct {
	toolchain
	spec GenericBuilderConfig
}

var _ Builder = (*GenericBuilder)(nil)

// GenericBuilderConfig defines configuration for a GenericBuilder.
type GenericBuilderConfig struct {
	// Name is the human-readable builder name (e.g., "Crystal", "Zig")
	Name string

	// Patterns are filename globs to match (e.g., "*.cr", "build.zig")
	Patterns []string

	// Tools are the required build tools
	Tools []ToolRequirement

	// BuildCommand is the command template to build the extension.
	// Supports placeholders:
	//   {{input}}     - the description file (e.g., extension.cr)
	//   {{output}}    - the library to produce, inside the workspace
	//   {{dir}}       - the source directory
	//   {{workspace}} - the workspace directory
	BuildCommand []string

	// CleanCommand is an optional command to clean build artifacts
	CleanCommand []string

	// OutputPatterns are doublestar globs, relative to SourceDir, of
	// libraries the tool leaves in the source tree
	// (e.g., "zig-out/lib/*.{so,dylib}").
	OutputPatterns []string
}

// NewGenericBuilder creates a new GenericBuilder from configuration.
func NewGenericBuilder(runner Runner, config *Config, spec GenericBuilderConfig) *GenericBuilder {
	return &GenericBuilder{toolchain: newToolchain(runner, config), spec: spec}
}

// Name returns the builder name
func (b *GenericBuilder) Name() string {
	return b.spec.Name
}

// RequiredTools returns the tools needed for this builder
func (b *GenericBuilder) RequiredTools() []ToolRequirement {
	return b.spec.Tools
}

// CheckTools verifies that all required tools are available
func (b *GenericBuilder) CheckTools() error {
	return CheckRequiredTools(b.RequiredTools())
}

// CanBuild checks if this builder can handle the description file
func (b *GenericBuilder) CanBuild(descriptionFile string) bool {
	filename := strings.ToLower(filepath.Base(descriptionFile))
	for _, pattern := range b.spec.Patterns {
		if matched, _ := filepath.Match(strings.ToLower(pattern), filename); matched {
			return true
		}
	}
	return false
}

// Build compiles the extension using the configured build command
func (b *GenericBuilder) Build(ctx context.Context, req *BuildRequest) (*BuildResult, error) {
	return runSteps(ctx, b.toolchain, req, buildSteps{
		name:    b.Name(),
		build:   b.runBuild,
		collect: b.collectOutputs,
	})
}

// Clean runs the configured clean command. Failures are ignored since there
// may be nothing to clean.
func (b *GenericBuilder) Clean(ctx context.Context, req *BuildRequest) error {
	if len(b.spec.CleanCommand) == 0 {
		return nil
	}
	_ = b.run(ctx, &BuildResult{}, Command{Args: b.spec.CleanCommand, Dir: req.SourceDir})
	return nil
}

// outputName is the library name Ruby will require: the description's base
// name with the platform's extension suffix.
func (b *GenericBuilder) outputName(req *BuildRequest) string {
	base := filepath.Base(req.DescriptionFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "build" || name == "Package" || name == "shard" {
		name = filepath.Base(req.SourceDir)
	}
	return name + "." + dlext(b.config.RubyPlatform)
}

// expand substitutes the command template placeholders.
func (b *GenericBuilder) expand(req *BuildRequest, ws *TempWorkspace) ([]string, error) {
	if len(b.spec.BuildCommand) == 0 {
		return nil, fmt.Errorf("no build command configured for %s builder", b.Name())
	}
	replacer := strings.NewReplacer(
		"{{input}}", filepath.Base(req.DescriptionFile),
		"{{output}}", filepath.Join(ws.Path, b.outputName(req)),
		"{{dir}}", req.SourceDir,
		"{{workspace}}", ws.Path,
	)
	args := make([]string, 0, len(b.spec.BuildCommand)+len(req.ExtraArgs))
	for _, arg := range b.spec.BuildCommand {
		args = append(args, replacer.Replace(arg))
	}
	return append(args, req.ExtraArgs...), nil
}

func (b *GenericBuilder) runBuild(ctx context.Context, req *BuildRequest, ws *TempWorkspace, result *BuildResult) error {
	args, err := b.expand(req, ws)
	if err != nil {
		return stepError(ErrCompilationFailed, b.Name(), err)
	}
	if err := b.run(ctx, result, Command{Args: args, Dir: req.SourceDir}); err != nil {
		return stepError(ErrCompilationFailed, b.Name(), err)
	}
	return nil
}

// collectOutputs moves libraries matching OutputPatterns from the source
// tree into the workspace.
func (b *GenericBuilder) collectOutputs(req *BuildRequest, ws *TempWorkspace, result *BuildResult) error {
	fsys := os.DirFS(req.SourceDir)
	var matches []string
	for _, pattern := range b.spec.OutputPatterns {
		found, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return stepError(ErrCompilationFailed, "find outputs", fmt.Errorf("pattern %s: %w", pattern, err))
		}
		matches = append(matches, found...)
	}
	sort.Strings(matches)

	for _, match := range matches {
		if IsWorkspaceName(strings.SplitN(match, "/", 2)[0]) {
			continue
		}
		src := filepath.Join(req.SourceDir, filepath.FromSlash(match))
		if err := moveFile(src, filepath.Join(ws.Path, filepath.Base(src))); err != nil {
			return stepError(ErrCompilationFailed, "collect "+match, err)
		}
		result.logf("Collected " + match)
	}
	return nil
}

// dlext returns the shared library suffix for a Ruby platform string.
func dlext(platform string) string {
	switch {
	case strings.Contains(platform, "darwin"):
		return "bundle"
	case strings.Contains(platform, "mingw"), strings.Contains(platform, "mswin"):
		return "dll"
	default:
		return "so"
	}
}

// NewCrystalBuilder creates a builder for Crystal extensions.
func NewCrystalBuilder(runner Runner, config *Config) *GenericBuilder {
	return NewGenericBuilder(runner, config, GenericBuilderConfig{
		Name:     "Crystal",
		Patterns: []string{"*.cr"},
		Tools: []ToolRequirement{
			{Name: "crystal", Purpose: "Crystal compiler"},
		},
		BuildCommand: []string{
			"crystal", "build", "--single-module",
			"--link-flags=-shared", "-o", "{{output}}", "{{input}}",
		},
	})
}

// NewZigBuilder creates a builder for Zig extensions built with build.zig.
func NewZigBuilder(runner Runner, config *Config) *GenericBuilder {
	return NewGenericBuilder(runner, config, GenericBuilderConfig{
		Name:     "Zig",
		Patterns: []string{"build.zig"},
		Tools: []ToolRequirement{
			{Name: "zig", Purpose: "Zig compiler and build system"},
		},
		BuildCommand:   []string{"zig", "build", "-Doptimize=ReleaseFast"},
		CleanCommand:   []string{"rm", "-rf", "zig-out", ".zig-cache"},
		OutputPatterns: []string{"zig-out/lib/*.{so,dylib,dll,bundle}"},
	})
}

// NewSwiftBuilder creates a builder for single-file Swift extensions.
func NewSwiftBuilder(runner Runner, config *Config) *GenericBuilder {
	return NewGenericBuilder(runner, config, GenericBuilderConfig{
		Name:     "Swift",
		Patterns: []string{"*.swift"},
		Tools: []ToolRequirement{
			{Name: "swiftc", Purpose: "Swift compiler"},
		},
		BuildCommand: []string{
			"swiftc", "-emit-library", "-o", "{{output}}", "{{input}}",
		},
	})
}

// GenericPresets maps lowercased preset names to their constructors.
var GenericPresets = map[string]func(Runner, *Config) *GenericBuilder{
	"crystal": NewCrystalBuilder,
	"zig":     NewZigBuilder,
	"swift":   NewSwiftBuilder,
}
