package pathext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

var nativeLibraryExtensions = map[string]struct{}{
	".so":     {},
	".bundle": {},
	".dll":    {},
	".dylib":  {},
}

func isNativeLibrary(path string) bool {
	_, ok := nativeLibraryExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Package is a gem checked out on the local filesystem.
type Package struct {
	Name    string
	Version string
	// Dir is the gem root, the directory holding the gemspec.
	Dir string
	// Extensions are build descriptions relative to Dir, in build order.
	Extensions []string
	// RequirePaths are load paths relative to Dir; the first one receives
	// the compiled extensions.
	RequirePaths []string
}

// LibDir returns the directory compiled extensions are copied into.
func (p *Package) LibDir() string {
	lib := "lib"
	if len(p.RequirePaths) > 0 && p.RequirePaths[0] != "" {
		lib = p.RequirePaths[0]
	}
	if filepath.IsAbs(lib) {
		return lib
	}
	return filepath.Join(p.Dir, lib)
}

func (p *Package) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + " " + p.Version
}

// InstallReport summarizes the extension builds of one package.
type InstallReport struct {
	Package      *Package
	ExtensionDir string
	Results      []*BuildResult
	// Cached is set when the completion marker made the build unnecessary.
	Cached   bool
	Duration time.Duration
}

// Installer builds every native extension of path-sourced packages.
//
// Compiled extensions are placed in the package's first require path and
// the build bookkeeping (mkmf.log, gem_make.out, completion marker) in a
// project-local extension directory:
//
//	<Dir>/tmp/<ruby platform>/<name>/<ruby version>
type Installer struct {
	registry *Registry
	config   *Config
	out      io.Writer
	outMu    sync.Mutex
}

// NewInstaller creates an installer printing progress to out.
func NewInstaller(registry *Registry, out io.Writer) *Installer {
	if out == nil {
		out = io.Discard
	}
	return &Installer{registry: registry, config: registry.artifact.config, out: out}
}

func (i *Installer) printf(format string, args ...any) {
	i.outMu.Lock()
	defer i.outMu.Unlock()
	fmt.Fprintf(i.out, format, args...)
}

// ExtensionDir returns the project-local extension directory of pkg.
func (i *Installer) ExtensionDir(pkg *Package) string {
	platform := i.config.RubyPlatform
	if platform == "" {
		platform = HostPlatform()
	}
	version := i.config.RubyVersion
	if version == "" {
		version = "unknown"
	}
	return filepath.Join(pkg.Dir, "tmp", platform, pkg.Name, version)
}

// Install builds the extensions of pkg unless the completion marker shows
// that nothing changed since the last successful build.
//
// Builds of the same package directory are serialized with LockSource. On
// failure the completion marker is removed and the returned error carries
// the captured log.
func (i *Installer) Install(ctx context.Context, pkg *Package) (*InstallReport, error) {
	start := time.Now()
	extDir := i.ExtensionDir(pkg)
	report := &InstallReport{Package: pkg, ExtensionDir: extDir}
	defer func() { report.Duration = time.Since(start) }()

	if len(pkg.Extensions) == 0 {
		return report, nil
	}

	unlock, err := LockSource(pkg.Dir)
	if err != nil {
		return report, err
	}
	defer unlock()

	if !i.config.Force {
		upToDate, err := UpToDate(pkg.Dir, extDir)
		if err != nil {
			i.config.logger().Warnf("checking completion marker of %s: %v", pkg, err)
		}
		if upToDate {
			i.printf("Using native extensions for %s from %s\n", pkg, extDir)
			report.Cached = true
			return report, nil
		}
	}

	if len(i.config.BuildArgs) == 0 {
		i.printf("Building native extensions for %s. This could take a while...\n", pkg)
	} else {
		i.printf("Building native extensions for %s with: '%s'\n", pkg, strings.Join(i.config.BuildArgs, " "))
		i.printf("This could take a while...\n")
	}

	if err := ClearComplete(extDir); err != nil {
		return report, err
	}
	if err := os.MkdirAll(extDir, 0o755); err != nil {
		return report, err
	}

	for _, extension := range pkg.Extensions {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		builder, result, err := i.buildExtension(ctx, pkg, extension, extDir)
		var logged string
		if result != nil {
			report.Results = append(report.Results, result)
			if writeErr := writeGemMakeOut(extDir, result.Log); writeErr != nil {
				i.config.logger().Warnf("writing %s: %v", gemMakeOutName, writeErr)
			} else {
				logged = filepath.Join(extDir, gemMakeOutName)
			}
		}
		if err != nil {
			_ = ClearComplete(extDir)
			name := "extension"
			var log []string
			if builder != nil {
				name = builder.Name()
			}
			if result != nil {
				log = result.Log
			}
			if logged != "" {
				return report, fmt.Errorf("%s: %w\n\nResults logged to %s", extension, BuildError(name, log, err), logged)
			}
			return report, fmt.Errorf("%s: %w", extension, BuildError(name, log, err))
		}
		// The ArtifactBuilder marks every successful extension; the package
		// is only complete once the last one is built.
		if err := ClearComplete(extDir); err != nil {
			return report, err
		}
	}

	i.printf("  Finished %s after %0.2f seconds\n", pkg, time.Since(start).Seconds())
	if err := MarkComplete(extDir); err != nil {
		return report, err
	}
	return report, nil
}

// buildExtension dispatches one description to its builder.
func (i *Installer) buildExtension(ctx context.Context, pkg *Package, extension, extDir string) (Builder, *BuildResult, error) {
	path := filepath.Join(pkg.Dir, filepath.FromSlash(extension))
	req := &BuildRequest{
		SourceDir:       filepath.Dir(path),
		DescriptionFile: filepath.Base(path),
		TargetDir:       extDir,
		LibDir:          pkg.LibDir(),
		ExtraArgs:       append([]string{}, i.config.BuildArgs...),
		CrossCompile:    i.config.CrossCompile,
		Jobs:            i.config.Jobs,
	}

	if KindOf(extension) == KindConfigureScript && i.config.PreferRake {
		if _, err := os.Stat(filepath.Join(pkg.Dir, "Rakefile")); err == nil {
			if b, ok := i.registry.Builder("Rake"); ok {
				if rake, ok := b.(*RakeBuilder); ok {
					compile := rake.Compile("compile")
					req.SourceDir = pkg.Dir
					req.DescriptionFile = "Rakefile"
					result, err := compile.Build(ctx, req)
					return compile, result, err
				}
			}
		}
	}

	builder, err := i.registry.BuilderFor(extension)
	if err != nil {
		return nil, nil, err
	}
	i.config.logger().Debugf("building %s of %s with %s", extension, pkg, builder.Name())
	result, err := builder.Build(ctx, req)
	return builder, result, err
}

func writeGemMakeOut(extDir string, log []string) error {
	content := strings.Join(log, "\n")
	if content != "" {
		content += "\n"
	}
	return os.WriteFile(filepath.Join(extDir, gemMakeOutName), []byte(content), 0o644)
}

// InstallAll installs independent packages concurrently with at most workers
// builds in flight (0 = number of CPUs). Reports keep the order of pkgs;
// the returned error joins every package failure.
func (i *Installer) InstallAll(ctx context.Context, pkgs []*Package, workers int) ([]*InstallReport, error) {
	if len(pkgs) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	reports := make([]*InstallReport, len(pkgs))
	errs := make([]error, len(pkgs))
	var wg sync.WaitGroup

	pool, err := ants.NewPoolWithFunc(workers, func(arg any) {
		idx, ok := arg.(int)
		if !ok {
			panic("install pool args type error")
		}
		defer wg.Done()
		reports[idx], errs[idx] = i.Install(ctx, pkgs[idx])
	})
	if err != nil {
		return nil, fmt.Errorf("create install pool: %w", err)
	}
	defer pool.Release()

	for idx := range pkgs {
		wg.Add(1)
		if err := pool.Invoke(idx); err != nil {
			wg.Done()
			errs[idx] = fmt.Errorf("schedule %s: %w", pkgs[idx], err)
		}
	}
	wg.Wait()

	for idx, err := range errs {
		if err != nil {
			errs[idx] = fmt.Errorf("%s: %w", pkgs[idx], err)
		}
	}
	return reports, errors.Join(errs...)
}
