package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/engagestack/engagement-intel/internal/api"
	"github.com/engagestack/engagement-intel/internal/app"
	"github.com/engagestack/engagement-intel/internal/config"
	"github.com/engagestack/engagement-intel/internal/metrics"
	"github.com/engagestack/engagement-intel/internal/services"
	"github.com/engagestack/engagement-intel/internal/utils"
	"github.com/engagestack/engagement-intel/internal/watch"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(utils.ExitUsage)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting engagement-intel", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(utils.ExitFailure)
	}

	application, err := app.Build(cfg, logger)
	if err != nil {
		logger.Error("failed to build application", slog.Any("error", err))
		os.Exit(utils.ExitCode(err))
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start with whatever is reachable; the dashboard shows stale or empty
	// state until a refresh succeeds.
	if _, err := application.Load(ctx); err != nil {
		logger.Warn("initial load failed", slog.Any("error", err))
	}

	sess := application.Session
	dashboardService := services.NewDashboardService(logger, sess)

	server, err := api.NewServer(cfg.Server, dashboardService, api.WithRequestLogging(logger))
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(utils.ExitFailure)
	}

	// Readiness follows whether any snapshot has been loaded.
	server.SetServing(sess.State().Loaded())
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				server.SetServing(sess.State().Loaded())
			}
		}
	}()

	if cfg.Source.Watch {
		watcher, err := watch.NewWatcher(logger, watch.DefaultDebounce)
		if err != nil {
			logger.Warn("file watching disabled", slog.Any("error", err))
		} else {
			defer watcher.Stop()
			if application.SamplePath != "" {
				if err := watcher.Add(application.SamplePath, func(path string) {
					logger.Info("sample data changed", slog.String("path", path))
					_, _ = sess.Refresh(ctx)
				}); err != nil {
					logger.Warn("cannot watch sample data", slog.Any("error", err))
				}
			}
			if cfg.Report.RulesPath != "" {
				if err := watcher.Add(cfg.Report.RulesPath, func(path string) {
					if err := sess.ReloadRules(ctx, path); err != nil {
						logger.Warn("rule pack reload failed", slog.String("path", path), slog.Any("error", err))
					}
				}); err != nil {
					logger.Warn("cannot watch rule pack", slog.Any("error", err))
				}
			}
		}
	}

	if cfg.Server.RefreshInterval > 0 {
		go sess.Poll(ctx, cfg.Server.RefreshInterval)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("engagement-intel stopped", slog.Duration("refresh_p95", dashboardService.RefreshLatencyP95()))
}
