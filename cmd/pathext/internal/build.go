package internal

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/contriboss/pathext-go"
)

var buildCmd = &cobra.Command{
	Use:   "build [description]",
	Short: "Build one extension",
	Long: `Build compiles the extension described by an extconf.rb, Makefile, Rakefile,
CMakeLists.txt or Cargo.toml and copies the artifacts into the lib directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

var (
	buildTargetDir     string
	buildLibDir        string
	buildArgs          []string
	buildCrossRbconfig string
	buildCrossPlatform string
)

func init() {
	flags := buildCmd.Flags()
	flags.StringVar(&buildTargetDir, "target-dir", "", "Directory for mkmf.log and the completion marker")
	flags.StringVar(&buildLibDir, "lib-dir", "", "Directory receiving the compiled artifacts")
	flags.StringArrayVar(&buildArgs, "arg", nil, "Extra configure argument (repeatable)")
	flags.StringVar(&buildCrossRbconfig, "target-rbconfig", "", "rbconfig.rb of the cross-compilation target")
	flags.StringVar(&buildCrossPlatform, "target-platform", "", "Platform of the cross-compilation target")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runner := pathext.ExecRunner{}
	cfg := loadConfig(ctx, runner)

	desc, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	req := &pathext.BuildRequest{
		SourceDir:       filepath.Dir(desc),
		DescriptionFile: filepath.Base(desc),
		TargetDir:       buildTargetDir,
		LibDir:          buildLibDir,
		ExtraArgs:       buildArgs,
		Jobs:            jobs,
	}
	if buildCrossRbconfig != "" || buildCrossPlatform != "" {
		req.CrossCompile = &pathext.TargetConfig{Path: buildCrossRbconfig, Platform: buildCrossPlatform}
	}

	registry, err := newRegistry(runner, cfg)
	if err != nil {
		return err
	}
	builder, err := registry.BuilderFor(req.DescriptionFile)
	if err != nil {
		return err
	}

	result, err := builder.Build(ctx, req)
	if result != nil && (verbose || err != nil) {
		printLog(cmd, result.Log)
	}
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	switch {
	case result.Skipped:
		fmt.Fprintf(out, "Skipped %s\n", args[0])
	case len(result.ArtifactsCopied) > 0:
		for _, path := range result.ArtifactsCopied {
			fmt.Fprintf(out, "Installed %s\n", path)
		}
	default:
		fmt.Fprintf(out, "Built %s (%d outputs)\n", args[0], len(result.Outputs))
	}
	return nil
}
