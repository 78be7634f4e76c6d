package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/engagestack/engagement-intel/internal/app"
	"github.com/engagestack/engagement-intel/internal/models"
	"github.com/engagestack/engagement-intel/internal/session"
)

func newKPIsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "kpis",
		Short: "Show headline KPIs and the sentiment distribution",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ *app.App, st session.State, _ []string) error {
			views := st.Dashboard.Views
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), struct {
					KPIs         models.KPISummary            `json:"kpis"`
					Distribution models.SentimentDistribution `json:"sentiment_distribution"`
				}{views.KPIs, views.Distribution})
			}

			k := views.KPIs
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Total engagements\t%d\n", k.TotalEngagements)
			fmt.Fprintf(tw, "Average sentiment\t%.2f\n", k.AvgSentiment)
			fmt.Fprintf(tw, "Sentiment vs neutral\t%+.2f\n", k.SentimentDelta)
			fmt.Fprintf(tw, "Positive\t%d (%.0f%%)\n", k.PositiveCount, 100*k.PositiveShare())
			fmt.Fprintf(tw, "At risk\t%d (%.0f%%)\n", k.AtRiskCount, 100*k.AtRiskShare())
			fmt.Fprintln(tw)
			for _, class := range models.SentimentClasses {
				d := views.Distribution
				fmt.Fprintf(tw, "%s\t%d (%.0f%%)\n", class, d.Count(class), 100*d.Share(class))
			}
			return tw.Flush()
		}),
	}
}

func newTopicsCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Show topic frequencies",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ *app.App, st session.State, _ []string) error {
			topics := st.Dashboard.Views.Topics.Top(limit)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), topics)
			}
			if len(topics) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no topics")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOPIC\tCOUNT")
			for _, t := range topics {
				fmt.Fprintf(tw, "%s\t%d\n", t.Topic, t.Count)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n topics (0 for all)")
	return cmd
}

func newTimelineCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Show mean sentiment per day",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ *app.App, st session.State, _ []string) error {
			timeline := st.Dashboard.Views.Timeline
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), timeline)
			}
			if len(timeline) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no data")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tSENTIMENT\tENGAGEMENTS")
			for _, p := range timeline {
				fmt.Fprintf(tw, "%s\t%.2f\t%d\n", p.Date, p.MeanSentiment, p.Count)
			}
			return tw.Flush()
		}),
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the backend and show the summary mode",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app.App, _ session.State, _ []string) error {
			h, err := a.Session.Health(cmd.Context())
			if opts.json {
				if encErr := writeJSON(cmd.OutOrStdout(), h); encErr != nil {
					return encErr
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\nmode: %s\n", h.Status, h.Mode)
			return err
		}),
	}
}
