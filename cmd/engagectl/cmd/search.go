package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/engagestack/engagement-intel/internal/app"
	"github.com/engagestack/engagement-intel/internal/engine"
	"github.com/engagestack/engagement-intel/internal/session"
)

func newSearchCmd(opts *options) *cobra.Command {
	var page, pageSize int
	var highlight []string
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "List engagements whose customer or notes match the query",
		Long:  "List engagements whose customer or notes contain the query, case-insensitively. An empty query lists everything.",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app.App, _ session.State, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			for _, id := range highlight {
				a.Session.Toggle(id)
			}
			selection := a.Session.State().Selection

			matches := a.Session.Search(query)
			total := len(matches)
			if page > 0 {
				matches = engine.Page(matches, page, pageSize)
			}

			if opts.json {
				type row struct {
					ID        string   `json:"id"`
					Customer  string   `json:"customer"`
					Date      string   `json:"date"`
					Sentiment float64  `json:"sentiment"`
					Topics    []string `json:"topics"`
					AtRisk    bool     `json:"risk"`
					Selected  bool     `json:"selected"`
				}
				rows := make([]row, 0, len(matches))
				for _, e := range matches {
					rows = append(rows, row{e.ID, e.Customer, e.Date.String(), e.Sentiment, e.Topics, e.AtRisk, selection.Contains(e.ID)})
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"query": query, "count": total, "engagements": rows})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tCUSTOMER\tDATE\tSENTIMENT\tTOPICS")
			for _, e := range matches {
				mark := ""
				if selection.Contains(e.ID) {
					mark = "*"
				}
				if e.AtRisk {
					mark += "!"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n", mark, e.ID, e.Customer, e.Date, e.Sentiment, strings.Join(e.Topics, ","))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d match(es)\n", total)
			return nil
		}),
	}
	cmd.Flags().IntVar(&page, "page", 0, "page number starting at 1 (0 disables paging)")
	cmd.Flags().IntVar(&pageSize, "page-size", engine.DefaultPageSize, "rows per page")
	cmd.Flags().StringSliceVar(&highlight, "highlight", nil, "engagement ids to mark as selected")
	return cmd
}
