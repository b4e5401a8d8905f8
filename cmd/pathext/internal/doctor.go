package internal

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/contriboss/pathext-go"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the build toolchain",
	Long:  `Doctor reports which tools every builder needs and which of them are on PATH.`,
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runner := pathext.ExecRunner{}
	cfg := loadConfig(ctx, runner)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "ruby %s on %s\n", valueOr(cfg.RubyVersion, "unknown"), cfg.RubyPlatform)
	fmt.Fprintf(out, "  target-rbconfig: %v, make jobs: %v\n", cfg.Capabilities.TargetConfig, cfg.Capabilities.Jobs)

	registry, err := newRegistry(runner, cfg)
	if err != nil {
		return err
	}
	missing := 0
	for _, builder := range registry.ListBuilders() {
		checker, ok := builder.(pathext.ToolChecker)
		if !ok {
			continue
		}
		missing += reportTools(out, builder.Name(), pathext.ResolveTools(checker.RequiredTools()))
	}
	if missing > 0 {
		return fmt.Errorf("%d required tools missing", missing)
	}
	return nil
}

// reportTools prints one builder's tool table and returns how many required
// tools were not found.
func reportTools(out io.Writer, name string, statuses []pathext.ToolStatus) int {
	fmt.Fprintf(out, "%s:\n", name)
	missing := 0
	for _, status := range statuses {
		req := status.Requirement
		switch {
		case status.Found != "":
			fmt.Fprintf(out, "  ok       %-8s %s\n", status.Found, req.Purpose)
		case req.Optional:
			fmt.Fprintf(out, "  optional %-8s %s\n", req.Name, req.Purpose)
		default:
			fmt.Fprintf(out, "  MISSING  %-8s %s\n", req.Name, req.Purpose)
			missing++
		}
	}
	return missing
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
