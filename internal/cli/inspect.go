package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"depctx/internal/manifest"
	"depctx/internal/tui"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <manifest>",
		Short: "Summarize a manifest written by build",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
}

type inspectOutput struct {
	Path     string            `json:"path"`
	Format   manifest.Format   `json:"format"`
	Digest   string            `json:"digest"`
	Manifest manifest.Document `json:"manifest"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	depCtx, err := manifest.Read(path)
	if err != nil {
		return err
	}
	digest, err := manifest.Digest(depCtx)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), inspectOutput{
			Path:     path,
			Format:   manifest.FormatForPath(path),
			Digest:   digest,
			Manifest: manifest.FromContext(depCtx),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Manifest: %s\n", path)
	fmt.Fprintf(out, "Framework: %s\n", depCtx.TargetFramework)
	fmt.Fprintf(out, "Runtime: %s\n", nonEmptyOrDash(depCtx.Runtime))
	fmt.Fprintf(out, "Digest: %s\n", digest)
	if defines := depCtx.CompilationOptions.Defines; len(defines) > 0 {
		fmt.Fprintf(out, "Defines: %s\n", strings.Join(defines, ";"))
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tTYPE\tNAME\tVERSION\tDEPS\tASSETS\tSERVICEABLE")
	for _, lib := range depCtx.CompileLibraries {
		fmt.Fprintf(tw, "compile\t%s\t%s\t%s\t%d\t%d\t%t\n",
			lib.Type, lib.Name, nonEmptyOrDash(lib.Version), len(lib.Dependencies), len(lib.Assemblies), lib.Serviceable)
	}
	for _, lib := range depCtx.RuntimeLibraries {
		assets := len(lib.Assemblies) + len(lib.ResourceAssemblies)
		for _, rt := range lib.RuntimeTargets {
			assets += len(rt.Assemblies) + len(rt.NativeLibraries)
		}
		fmt.Fprintf(tw, "runtime\t%s\t%s\t%s\t%d\t%s\t%t\n",
			lib.Type, lib.Name, nonEmptyOrDash(lib.Version), len(lib.Dependencies), strconv.Itoa(assets), lib.Serviceable)
	}
	return tw.Flush()
}

func nonEmptyOrDash(value string) string {
	return tui.NonEmptyOrDash(value)
}
