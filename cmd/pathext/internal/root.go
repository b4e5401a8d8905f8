package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/contriboss/pathext-go"
	"github.com/contriboss/pathext-go/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "pathext",
	Short: "pathext builds native extensions of path-sourced gems",
	Long: `pathext compiles the native extensions of gems used straight from a local
checkout and copies the results into the gem's lib directory.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.LevelDebug)
		}
	},
}

var (
	verbose  bool
	rubyPath string
	makeProg string
	jobs     int
	presets  []string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print build output and debug logs")
	flags.StringVar(&rubyPath, "ruby", "", "Ruby interpreter (default $RUBY or ruby)")
	flags.StringVar(&makeProg, "make", "", "Make program (default $MAKE or make)")
	flags.IntVarP(&jobs, "jobs", "j", 0, "Parallel make jobs (0 = toolchain default)")
	flags.StringSliceVar(&presets, "builder", nil, "Extra builders to enable: crystal, zig, swift")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Interrupts cancel the command context, which kills running toolchains.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig builds the shared configuration from the environment, the
// persistent flags and the interpreter itself. A missing interpreter is
// only a warning: prebuilt Makefiles and the secondary builders can work
// without it.
func loadConfig(ctx context.Context, runner pathext.Runner) *pathext.Config {
	cfg := pathext.DefaultConfig()
	if rubyPath != "" {
		cfg.RubyPath = rubyPath
	}
	if makeProg != "" {
		cfg.MakeProgram = makeProg
	}
	if jobs > 0 {
		cfg.Jobs = jobs
	}

	info, err := pathext.DetectRuby(ctx, runner, cfg.RubyPath)
	if err != nil {
		log.Warnf("%v; using host defaults", err)
		return cfg
	}
	log.Debugf("ruby %s (%s), rubygems %s", info.Version, info.Platform, info.RubygemsVersion)
	cfg.Apply(info)
	return cfg
}

// newRegistry returns the standard builders plus the presets enabled with
// --builder.
func newRegistry(runner pathext.Runner, cfg *pathext.Config) (*pathext.Registry, error) {
	registry := pathext.NewRegistry(runner, cfg)
	for _, name := range presets {
		preset, ok := pathext.GenericPresets[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown builder %q", name)
		}
		registry.Register(preset(runner, cfg))
	}
	return registry, nil
}

func printLog(cmd *cobra.Command, lines []string) {
	out := cmd.ErrOrStderr()
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
