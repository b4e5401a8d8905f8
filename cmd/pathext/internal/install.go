package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/contriboss/pathext-go"
)

var installCmd = &cobra.Command{
	Use:   "install [gem-dir...]",
	Short: "Build every extension of local gems",
	Long: `Install builds all native extensions found under ext/ of each gem checkout,
skipping gems whose completion marker is newer than their sources.`,
	RunE: runInstall,
}

var (
	installForce      bool
	installPreferRake bool
	installWorkers    int
	installBuildArgs  []string
)

func init() {
	flags := installCmd.Flags()
	flags.BoolVarP(&installForce, "force", "f", false, "Rebuild even when the completion marker is current")
	flags.BoolVar(&installPreferRake, "prefer-rake", false, "Run 'rake compile' for gems that ship a Rakefile")
	flags.IntVarP(&installWorkers, "workers", "w", 0, "Gems built concurrently (0 = number of CPUs)")
	flags.StringArrayVar(&installBuildArgs, "build-arg", nil, "Extra configure argument (repeatable)")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}

	ctx := cmd.Context()
	runner := pathext.ExecRunner{}
	cfg := loadConfig(ctx, runner)
	cfg.Force = installForce
	cfg.PreferRake = installPreferRake
	cfg.BuildArgs = installBuildArgs

	pkgs := make([]*pathext.Package, 0, len(args))
	for _, dir := range args {
		pkg, err := pathext.Discover(dir)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", dir, err)
		}
		if len(pkg.Extensions) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s has no native extensions\n", pkg)
			continue
		}
		pkgs = append(pkgs, pkg)
	}

	registry, err := newRegistry(runner, cfg)
	if err != nil {
		return err
	}
	installer := pathext.NewInstaller(registry, cmd.OutOrStdout())
	reports, err := installer.InstallAll(ctx, pkgs, installWorkers)
	if verbose {
		for _, report := range reports {
			if report == nil {
				continue
			}
			for _, result := range report.Results {
				printLog(cmd, result.Log)
			}
		}
	}
	return err
}
