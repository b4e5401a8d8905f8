package pathext

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/contriboss/pathext-go/internal/log"
)

// Platform and tool constants
const (
	platformWindows = "windows"
	platformDarwin  = "darwin"

	rubyCommand  = "ruby"
	rakeCommand  = "rake"
	makeProgram  = "make"
	nmakeProgram = "nmake"

	mkmfLogName    = "mkmf.log"
	gemMakeOutName = "gem_make.out"
)

// Config holds settings shared by all builders.
//
// Toolchain programs:
//   - RubyPath: interpreter used for configure scripts
//   - MakeProgram: make command line, may contain arguments ("gmake -s")
//   - RakeCommand: explicit rake command line; empty means resolve it
//
// Host description:
//   - RubyVersion / RubyPlatform: used for the extension directory layout
//     and to detect cross compilation
//   - Capabilities: feature switches derived from the RubyGems version
//   - CrossCompile: optional target handed to every build
//
// Build behavior:
//   - Jobs: parallelism hint (0 = toolchain default)
//   - BuildArgs: extra configure arguments
//   - Env: KEY=VALUE overrides for every child process
//   - PreferRake: run "rake compile" when the package has a Rakefile
//   - Force: ignore the completion marker
type Config struct {
	RubyPath    string
	MakeProgram string
	RakeCommand []string

	RubyVersion  string
	RubyPlatform string
	Capabilities ToolchainCapabilities
	CrossCompile *TargetConfig

	Jobs       int
	BuildArgs  []string
	Env        []string
	PreferRake bool
	Force      bool

	Logger log.Logger
}

// DefaultConfig returns a configuration for the current host with
// environment overrides applied.
func DefaultConfig() *Config {
	cfg := &Config{
		RubyPath:     rubyCommand,
		MakeProgram:  defaultMakeProgram(),
		RubyPlatform: HostPlatform(),
		Capabilities: ToolchainCapabilities{InstallInLib: true},
		Logger:       log.Default,
	}
	cfg.applyEnv(os.Getenv)
	return cfg
}

func defaultMakeProgram() string {
	if runtime.GOOS == platformWindows {
		return nmakeProgram
	}
	return makeProgram
}

func (c *Config) applyEnv(getenv func(string) string) {
	if ruby := getenv("RUBY"); ruby != "" {
		c.RubyPath = ruby
	}
	for _, key := range []string{"MAKE", "make"} {
		if prog := getenv(key); prog != "" {
			c.MakeProgram = prog
			break
		}
	}
	if rake := getenv("rake"); rake != "" {
		c.RakeCommand = strings.Fields(rake)
	}
	if jobs, err := strconv.Atoi(getenv("PATHEXT_JOBS")); err == nil && jobs > 0 {
		c.Jobs = jobs
	}
}

// Apply sets the interpreter description and recomputes capabilities.
func (c *Config) Apply(info *RubyInfo) {
	if info == nil {
		return
	}
	c.RubyVersion = info.Version
	c.RubyPlatform = info.Platform
	installInLib := c.Capabilities.InstallInLib
	c.Capabilities = CapabilitiesFor(info.RubygemsVersion)
	c.Capabilities.InstallInLib = installInLib
}

func (c *Config) logger() log.Logger {
	if c == nil || c.Logger == nil {
		return log.Nop
	}
	return c.Logger
}

// makeCommand splits the make program and reports whether it carried its
// own arguments.
func (c *Config) makeCommand(target *TargetConfig) (prog []string, hasArgs bool) {
	name := c.MakeProgram
	if target != nil && target.MakeProgram != "" && c.Capabilities.TargetConfig {
		name = target.MakeProgram
	}
	if name == "" {
		name = defaultMakeProgram()
	}
	prog = strings.Fields(name)
	return prog, len(prog) > 1
}
