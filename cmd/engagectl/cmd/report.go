package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engagestack/engagement-intel/internal/app"
	"github.com/engagestack/engagement-intel/internal/session"
	"github.com/engagestack/engagement-intel/internal/utils"
)

func newReportCmd(opts *options) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the recommendation report",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app.App, _ session.State, _ []string) error {
			report, err := a.Session.Report()
			if err != nil {
				return err
			}
			switch {
			case opts.json:
				return writeJSON(cmd.OutOrStdout(), report)
			case markdown:
				_, err := fmt.Fprint(cmd.OutOrStdout(), report.NotebookMarkdown)
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.Summary)
			printList(cmd, "Suggested fixes", report.Fixes)
			printList(cmd, "Tuning parameters", report.TuningParams)
			if len(report.Hotspots) > 0 {
				fmt.Fprintln(out, "\nTopic hotspots:")
				for _, h := range report.Hotspots {
					fmt.Fprintf(out, "  %s: %d engagement(s), mean sentiment %.2f, %d at risk\n", h.Topic, h.Count, h.MeanSentiment, h.AtRiskCount)
				}
			}
			if len(report.Dips) > 0 {
				dates := make([]string, 0, len(report.Dips))
				for _, d := range report.Dips {
					dates = append(dates, d.Date.String())
				}
				fmt.Fprintf(out, "\nSentiment dips: %s\n", strings.Join(dates, ", "))
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the notebook markdown")
	return cmd
}

func newCommitCmd(opts *options) *cobra.Command {
	var notebookPath string
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit the report to the notebook store",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app.App, _ session.State, _ []string) error {
			res, err := a.Session.Commit(cmd.Context(), notebookPath)
			if err != nil {
				return utils.NewAppErrorCode("commit", "report not committed", utils.ExitUnavailable, err)
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "committed (%s) request %s\n", res.Status, res.RequestID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&notebookPath, "path", "", "notebook path (defaults to report.notebookPath)")
	return cmd
}

func printList(cmd *cobra.Command, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", item)
	}
}
