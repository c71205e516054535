package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	workspaceDir string
	configPath   string
	outputJSON   bool
)

// Execute runs the root cobra command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "depctx",
		Short:         "Build and inspect dependency context manifests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&workspaceDir, "workspace", "", "Path to the workspace directory (defaults to the current directory)")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to depctx.yaml (defaults to <workspace>/depctx.yaml)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newMirrorCmd())
	cmd.AddCommand(newTargetsCmd())
	cmd.AddCommand(newConfigCmd())
	return cmd
}
