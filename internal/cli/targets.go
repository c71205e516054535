package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"depctx/internal/buildtargets"
	"depctx/internal/logx"
)

// targetRunner is swapped out by tests.
var targetRunner buildtargets.Runner = buildtargets.CmdRunner{}

func newTargetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List or run build preparation targets",
	}
	cmd.AddCommand(newTargetsListCmd())
	cmd.AddCommand(newTargetsRunCmd())
	return cmd
}

func newTargetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available targets",
		Args:  cobra.NoArgs,
		RunE:  runTargetsList,
	}
}

func newTargetsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [target]",
		Short: "Run a target and everything it depends on",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTargetsRun,
	}
}

type targetInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DependsOn   []string `json:"dependsOn"`
}

type targetResult struct {
	Target     string `json:"target"`
	Status     string `json:"status"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

func runTargetsList(cmd *cobra.Command, _ []string) error {
	registry := buildtargets.NewPrepareRegistry()
	targets := registry.Targets()

	if outputJSON {
		out := make([]targetInfo, 0, len(targets))
		for _, t := range targets {
			deps := t.DependsOn
			if deps == nil {
				deps = []string{}
			}
			out = append(out, targetInfo{Name: t.Name, Description: t.Description, DependsOn: deps})
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tDEPENDS ON\tDESCRIPTION")
	for _, t := range targets {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, nonEmptyOrDash(strings.Join(t.DependsOn, ", ")), t.Description)
	}
	return tw.Flush()
}

func runTargetsRun(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	env, err := ws.environment()
	if err != nil {
		return err
	}
	logger, closeLog := ws.openLogger("targets")
	defer closeLog()

	name := ws.Config.Targets.Default
	if len(args) > 0 {
		name = args[0]
	}

	tc := buildtargets.NewContext(env, ws.Config.Targets, ws.Paths, targetRunner, logx.Tee(logger, cmd.ErrOrStderr()))
	tc.Stdout = cmd.ErrOrStderr()

	results, runErr := buildtargets.NewPrepareRegistry().Run(commandContext(cmd), tc, name)
	if results == nil && runErr != nil {
		return runErr
	}

	if outputJSON {
		out := make([]targetResult, 0, len(results))
		for _, r := range results {
			tr := targetResult{Target: r.Target, Status: string(r.Status), DurationMs: r.Duration.Milliseconds()}
			if r.Err != nil {
				tr.Error = r.Err.Error()
			}
			out = append(out, tr)
		}
		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TARGET\tSTATUS\tDURATION")
		for _, r := range results {
			duration := "-"
			if r.Status != buildtargets.StatusSkipped {
				duration = r.Duration.Round(time.Millisecond).String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Target, r.Status, duration)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if v := tc.State.BuildVersion; v != nil && runErr == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "\nBuild version: %s (NuGet %s)\n", v.SimpleVersion(), v.NuGetVersion())
		}
	}
	return runErr
}
