package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/engagestack/engagement-intel/internal/app"
	"github.com/engagestack/engagement-intel/internal/config"
	"github.com/engagestack/engagement-intel/internal/session"
	"github.com/engagestack/engagement-intel/internal/utils"
)

type options struct {
	configPath string
	file       string
	url        string
	positive   float64
	negative   float64
	baseline   float64
	json       bool
	logLevel   string
}

// NewRootCmd builds the command tree writing results to out and logs to errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "engagectl",
		Short:         "Engagement intelligence from the command line",
		Long:          "Load engagement data from a backend or a local file and print KPIs, topics, sentiment trends and recommendations.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to configuration file")
	flags.StringVarP(&opts.file, "file", "f", "", "read engagements from a local JSON file")
	flags.StringVar(&opts.url, "url", "", "dashboard backend base URL")
	flags.Float64Var(&opts.positive, "positive", 0, "positive sentiment threshold")
	flags.Float64Var(&opts.negative, "negative", 0, "negative sentiment threshold")
	flags.Float64Var(&opts.baseline, "baseline", 0, "neutral baseline for the sentiment delta")
	flags.BoolVar(&opts.json, "json", false, "print JSON instead of tables")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newKPIsCmd(opts),
		newTopicsCmd(opts),
		newTimelineCmd(opts),
		newSearchCmd(opts),
		newReportCmd(opts),
		newCommitCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

// Execute runs the root command against the process streams.
func Execute() error {
	return NewRootCmd(os.Stdout, os.Stderr).Execute()
}

// loadSession resolves configuration from file, environment and flags,
// builds the session and performs the initial refresh.
func loadSession(cmd *cobra.Command, opts *options) (*app.App, session.State, error) {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return nil, session.State{}, err
	}
	logger := utils.NewLoggerTo(cmd.ErrOrStderr(), opts.logLevel, false)
	a, err := app.Build(cfg, logger)
	if err != nil {
		return nil, session.State{}, err
	}
	st, err := a.Load(cmd.Context())
	if err != nil {
		_ = a.Close()
		return nil, session.State{}, err
	}
	return a, st, nil
}

func resolveConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, utils.NewAppErrorCode("config", "load configuration", utils.ExitUsage, err)
	}

	// Flags override file and environment.
	flags := cmd.Flags()
	if opts.file != "" {
		cfg.Source.SamplePath = opts.file
		cfg.Clients.Dashboard.BaseURL = ""
	}
	if opts.url != "" {
		cfg.Clients.Dashboard.BaseURL = opts.url
	}
	if flags.Changed("positive") {
		cfg.Aggregation.PositiveThreshold = opts.positive
	}
	if flags.Changed("negative") {
		cfg.Aggregation.NegativeThreshold = opts.negative
	}
	if flags.Changed("baseline") {
		cfg.Aggregation.NeutralBaseline = opts.baseline
	}
	cfg.Source.Watch = false
	if err := cfg.Validate(); err != nil {
		return nil, utils.NewAppErrorCode("config", "invalid options", utils.ExitUsage, err)
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func withApp(opts *options, run func(cmd *cobra.Command, a *app.App, st session.State, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if cmd.Context() == nil {
			cmd.SetContext(context.Background())
		}
		a, st, err := loadSession(cmd, opts)
		if err != nil {
			return err
		}
		defer a.Close()
		if st.Dropped > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d invalid record(s) skipped\n", st.Dropped)
		}
		return run(cmd, a, st, args)
	}
}
