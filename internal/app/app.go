// Package app assembles the dashboard session from configuration. Both the
// server and the CLI build their object graph here.
package app

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go/option"

	"github.com/engagestack/engagement-intel/internal/cache"
	"github.com/engagestack/engagement-intel/internal/config"
	"github.com/engagestack/engagement-intel/internal/engine"
	"github.com/engagestack/engagement-intel/internal/extractors"
	"github.com/engagestack/engagement-intel/internal/ingest"
	"github.com/engagestack/engagement-intel/internal/patterns"
	"github.com/engagestack/engagement-intel/internal/repo"
	"github.com/engagestack/engagement-intel/internal/session"
	"github.com/engagestack/engagement-intel/internal/summarize"
	"github.com/engagestack/engagement-intel/internal/utils"
)

// App holds the assembled components.
type App struct {
	Session  *session.Session
	Pipeline *engine.Pipeline
	Source   session.Source
	// SamplePath is set when data comes from a local file.
	SamplePath string

	cache cache.Provider
}

// Build wires the configured source, cache, rule pack, summarizer and
// session. A backend URL takes precedence over the sample file.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, utils.NewAppErrorCode("bootstrap", "configuration is required", utils.ExitUsage, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cacheProvider := newCache(cfg.Cache, logger)

	a := &App{cache: cacheProvider}
	opts := session.Options{Logger: logger, NotebookPath: cfg.Report.NotebookPath}
	if cfg.Clients.Dashboard.BaseURL != "" {
		client := repo.NewDashboardClient(repo.DashboardClientConfig{
			BaseURL:           cfg.Clients.Dashboard.BaseURL,
			DataPath:          cfg.Clients.Dashboard.DataPath,
			HealthPath:        cfg.Clients.Dashboard.HealthPath,
			CommitPath:        cfg.Clients.Dashboard.CommitPath,
			Timeout:           cfg.Clients.Dashboard.Timeout,
			RequestsPerSecond: cfg.Clients.Dashboard.RequestsPerSecond,
			Burst:             cfg.Clients.Dashboard.Burst,
			PayloadTTL:        cfg.Cache.PayloadTTL,
			HealthTTL:         cfg.Cache.HealthTTL,
		}, cacheProvider)
		a.Source = client
		opts.Health = client
		opts.Committer = client
	} else {
		a.Source = repo.NewFileSource(cfg.Source.SamplePath)
		a.SamplePath = cfg.Source.SamplePath
	}

	thresholds := cfg.Aggregation.Thresholds()
	aggregator, err := engine.NewAggregator(thresholds)
	if err != nil {
		return nil, utils.NewAppErrorCode("bootstrap", "invalid thresholds", utils.ExitUsage, err)
	}
	rules, err := engine.NewRuleEngine(cfg.Report.RulesPath, logger)
	if err != nil {
		return nil, utils.NewAppError("bootstrap", "load rule pack", err)
	}
	pipeline, err := engine.NewPipeline(
		logger,
		aggregator,
		rules,
		newSummarizer(cfg.Report.OpenAI, logger),
		patterns.NewMiner(logger),
		extractors.NewDipExtractor(thresholds.Negative),
	)
	if err != nil {
		return nil, utils.NewAppError("bootstrap", "build pipeline", err)
	}
	decoder, err := ingest.NewDecoder(logger)
	if err != nil {
		return nil, utils.NewAppError("bootstrap", "compile record schema", err)
	}

	sess, err := session.New(a.Source, decoder, pipeline, opts)
	if err != nil {
		return nil, utils.NewAppError("bootstrap", "build session", err)
	}
	a.Session = sess
	a.Pipeline = pipeline
	return a, nil
}

// Load performs the initial refresh. A fetch failure is reported with the
// unavailable exit code.
func (a *App) Load(ctx context.Context) (session.State, error) {
	st, err := a.Session.Refresh(ctx)
	if err != nil {
		return st, utils.NewAppErrorCode("load", "fetch snapshot from "+a.Source.Name(), utils.ExitUnavailable, err)
	}
	return st, nil
}

// Close releases the cache connection.
func (a *App) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

func newCache(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled || cfg.Addr == "" {
		return cache.NoopProvider{}
	}
	provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		TLS:          cfg.TLS,
		KeyPrefix:    cfg.KeyPrefix,
	})
	if err != nil {
		logger.Warn("valkey cache unavailable, falling back to in-process cache", slog.Any("error", err))
		return cache.NewMemoryProvider()
	}
	return provider
}

func newSummarizer(cfg config.OpenAIConfig, logger *slog.Logger) summarize.Summarizer {
	if !cfg.Enabled {
		return summarize.Heuristic{}
	}
	var opts []option.RequestOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	s, err := summarize.NewOpenAISummarizer(cfg.APIKey, cfg.Model, opts...)
	if err != nil {
		logger.Warn("openai summarizer disabled", slog.Any("error", err))
		return summarize.Heuristic{}
	}
	return s
}
