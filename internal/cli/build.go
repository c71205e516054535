package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"depctx/internal/buildstate"
	"depctx/internal/depmodel"
	"depctx/internal/manifest"
	"depctx/internal/tui"
	"depctx/pkg/exportset"
)

var (
	buildOutput    string
	buildFormat    string
	buildFramework string
	buildRuntime   string
	buildRefRoot   string
	buildStrict    bool
	buildForce     bool
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <project-file>",
		Short: "Build a dependency manifest from an export set",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}

	cmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Manifest path (defaults to <out>/<project>.deps.<format>)")
	cmd.Flags().StringVar(&buildFormat, "format", "", "Manifest format: json or cbor")
	cmd.Flags().StringVar(&buildFramework, "framework", "", "Override the target framework")
	cmd.Flags().StringVar(&buildRuntime, "runtime", "", "Override the runtime identifier")
	cmd.Flags().StringVar(&buildRefRoot, "ref-root", "", "Override the reference assemblies root")
	cmd.Flags().BoolVar(&buildStrict, "strict", false, "Refuse to write the manifest when verification finds errors")
	cmd.Flags().BoolVar(&buildForce, "force", false, "Rewrite the manifest even when it is up to date")
	return cmd
}

type buildSummary struct {
	Project          string           `json:"project"`
	Manifest         string           `json:"manifest"`
	Format           manifest.Format  `json:"format"`
	TargetFramework  string           `json:"targetFramework"`
	Runtime          string           `json:"runtime"`
	CompileLibraries int              `json:"compileLibraries"`
	RuntimeLibraries int              `json:"runtimeLibraries"`
	Digest           string           `json:"digest"`
	Written          bool             `json:"written"`
	Reason           string           `json:"reason"`
	Issues           []depmodel.Issue `json:"issues"`
}

// buildRequest is the resolved input of one build after flags, config and
// project file have been layered.
type buildRequest struct {
	project   *exportset.Project
	framework depmodel.Framework
	runtime   string
	refRoot   string
	format    manifest.Format
	output    string
	strict    bool
}

func runBuild(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	logger, closeLog := ws.openLogger("build")
	defer closeLog()

	var status *tui.StatusWriter
	if !outputJSON && tui.IsTerminal(cmd.ErrOrStderr()) {
		status = tui.NewStatusWriter(cmd.ErrOrStderr())
		defer status.Stop("")
	}
	phase := func(msg string) {
		logger.Print(msg)
		if status != nil {
			status.Update(msg)
		}
	}

	phase("Loading " + args[0])
	project, err := loadProject(cmd.ErrOrStderr(), args[0])
	if err != nil {
		return err
	}

	req, err := resolveBuild(cmd, ws, project)
	if err != nil {
		return err
	}

	phase("Verifying dependencies")
	issues := verifyProject(project)
	if depmodel.HasErrors(issues) && req.strict {
		if status != nil {
			status.Stop("")
		}
		printIssues(cmd.ErrOrStderr(), issues)
		return fmt.Errorf("%s: verification failed; manifest not written", args[0])
	}

	phase("Building manifest")
	builder := depmodel.NewBuilder(req.refRoot)
	framework := req.framework
	depCtx, err := builder.Build(project.Options(), project.CompileExports(), project.RuntimeExports(), &framework, req.runtime)
	if err != nil {
		return err
	}

	digest, err := manifest.Digest(depCtx)
	if err != nil {
		return err
	}

	statePath := filepath.Join(ws.Paths.MetaDir, buildstate.FileName)
	state, err := buildstate.Load(statePath)
	if err != nil {
		return err
	}
	decision := buildstate.Detect(state, req.output, digest, string(req.format), buildForce)
	if decision.Write() {
		phase("Writing " + req.output)
		if err := manifest.Write(req.output, depCtx, req.format); err != nil {
			return err
		}
		state.Record(req.output, buildstate.Entry{
			Project: project.Path,
			Format:  string(req.format),
			Digest:  digest,
			BuiltAt: time.Now().UTC(),
		})
	}
	if n := state.PruneMissing(); n > 0 {
		logger.Printf("pruned %d stale build state entries", n)
	}
	if err := state.Save(statePath); err != nil {
		logger.Printf("save build state: %v", err)
	}
	logger.Printf("%s %s (%s) digest=%s compile=%d runtime=%d issues=%d", decision.Action, req.output, decision.Reason, digest, len(depCtx.CompileLibraries), len(depCtx.RuntimeLibraries), len(issues))
	if status != nil {
		status.Stop("")
	}

	summary := buildSummary{
		Project:          args[0],
		Manifest:         req.output,
		Format:           req.format,
		TargetFramework:  depCtx.TargetFramework,
		Runtime:          depCtx.Runtime,
		CompileLibraries: len(depCtx.CompileLibraries),
		RuntimeLibraries: len(depCtx.RuntimeLibraries),
		Digest:           digest,
		Written:          decision.Write(),
		Reason:           decision.Reason,
		Issues:           issues,
	}
	if summary.Issues == nil {
		summary.Issues = []depmodel.Issue{}
	}
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), summary)
	}

	printIssues(cmd.ErrOrStderr(), issues)
	out := cmd.OutOrStdout()
	verb := "Wrote"
	if !summary.Written {
		verb = "Up to date:"
	}
	fmt.Fprintf(out, "%s %s (%d compile, %d runtime libraries)\n", verb, summary.Manifest, summary.CompileLibraries, summary.RuntimeLibraries)
	fmt.Fprintf(out, "Framework: %s\n", summary.TargetFramework)
	if summary.Runtime != "" {
		fmt.Fprintf(out, "Runtime: %s\n", summary.Runtime)
	}
	fmt.Fprintf(out, "Digest: %s\n", summary.Digest)
	return nil
}

// resolveBuild layers command flags over depctx.yaml over the project file.
func resolveBuild(cmd *cobra.Command, ws workspace, project *exportset.Project) (buildRequest, error) {
	req := buildRequest{
		project:   project,
		framework: project.Framework(),
		runtime:   project.Runtime(),
		refRoot:   project.ReferenceAssembliesRoot(),
		strict:    ws.Config.Build.StrictValue(),
	}

	if raw := firstSet(buildFramework, ws.Config.Build.Framework); raw != "" {
		fw, err := depmodel.ParseFramework(raw)
		if err != nil {
			return buildRequest{}, err
		}
		req.framework = fw
	}
	if v := firstSet(buildRuntime, ws.Config.Build.Runtime); v != "" {
		req.runtime = v
	}
	if v := firstSet(buildRefRoot, ws.Config.Build.ReferenceAssembliesRoot); v != "" {
		req.refRoot = v
	}
	if cmd.Flags().Changed("strict") {
		req.strict = buildStrict
	}

	switch {
	case cmd.Flags().Changed("format"):
		f, err := manifest.ParseFormat(buildFormat)
		if err != nil {
			return buildRequest{}, err
		}
		req.format = f
	case buildOutput != "":
		req.format = manifest.FormatForPath(buildOutput)
	default:
		f, err := manifest.ParseFormat(ws.Config.Build.Format)
		if err != nil {
			return buildRequest{}, err
		}
		req.format = f
	}

	req.output = buildOutput
	if req.output == "" {
		req.output = ws.Paths.ManifestPath(project.Path, req.format.Extension())
	}
	return req, nil
}

// loadProject loads an export set, listing every validation problem on w
// before failing.
func loadProject(w io.Writer, path string) (*exportset.Project, error) {
	project, err := exportset.Load(path)
	if err == nil {
		return project, nil
	}
	var verrs exportset.ValidationErrors
	if errors.As(err, &verrs) {
		for _, issue := range verrs.Issues() {
			fmt.Fprintf(w, "  %s\n", issue.Error())
		}
		return nil, fmt.Errorf("%s: %d validation error(s)", path, len(verrs))
	}
	return nil, err
}

// verifyProject checks the compile and runtime sets, reporting an issue found
// in both only once.
func verifyProject(project *exportset.Project) []depmodel.Issue {
	var issues []depmodel.Issue
	seen := map[depmodel.Issue]bool{}
	for _, set := range [][]depmodel.LibraryExport{project.CompileExports(), project.RuntimeExports()} {
		for _, issue := range depmodel.Verify(set) {
			if seen[issue] {
				continue
			}
			seen[issue] = true
			issues = append(issues, issue)
		}
	}
	return issues
}

func printIssues(w io.Writer, issues []depmodel.Issue) {
	for _, issue := range issues {
		fmt.Fprintln(w, issue.String())
	}
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
