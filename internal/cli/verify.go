package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"depctx/internal/depmodel"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <project-file>",
		Short: "Check dependency edges against resolved versions",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}
}

type verifyReport struct {
	Project string           `json:"project"`
	Errors  int              `json:"errors"`
	Issues  []depmodel.Issue `json:"issues"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	project, err := loadProject(cmd.ErrOrStderr(), args[0])
	if err != nil {
		return err
	}

	issues := verifyProject(project)
	report := verifyReport{Project: args[0], Issues: issues}
	if report.Issues == nil {
		report.Issues = []depmodel.Issue{}
	}
	for _, issue := range issues {
		if issue.Level == depmodel.IssueError {
			report.Errors++
		}
	}

	if outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else if len(issues) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no issues\n", args[0])
	} else {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LEVEL\tLIBRARY\tDEPENDENCY\tMESSAGE")
		for _, issue := range issues {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", issue.Level, nonEmptyOrDash(issue.Library), nonEmptyOrDash(issue.Dependency), issue.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if report.Errors > 0 {
		return fmt.Errorf("%s: %d error(s)", args[0], report.Errors)
	}
	return nil
}
