package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sales-dashboard/internal/auth"
	"sales-dashboard/internal/config"
	"sales-dashboard/internal/dataset"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
)

const (
	dataLoadTimeout    = 60 * time.Second
	rateLimiterSweep   = 5 * time.Minute
	applicationVersion = "1.0.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", applicationVersion,
		"addr", cfg.Address(),
		"data_file", cfg.Data.CSVFile,
	)

	if err := cfg.CheckDataFile(); err != nil {
		return err
	}

	tracing, err := observability.NewTracing(cfg.Tracing, os.Stdout)
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()

	analytics := services.NewAnalytics(
		services.WithLogger(logger),
		services.WithCache(dataset.Cache{Dir: cfg.Data.CacheDir}),
		services.WithObserver(metrics),
	)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), dataLoadTimeout)
	err = analytics.LoadFromFile(loadCtx, cfg.Data.CSVFile)
	cancelLoad()
	if err != nil {
		return err
	}

	sessions := auth.NewSessionStore(cfg.Security.SessionTTL)
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	defer stopLimiter()
	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	go rateLimiter.Run(limiterCtx, rateLimiterSweep, func() {
		if n := sessions.Sweep(); n > 0 {
			logger.Debug("expired sessions removed", "count", n)
		}
	})

	srv := server.NewServer(server.Deps{
		Analytics:   analytics,
		Sessions:    sessions,
		Metrics:     metrics,
		RateLimiter: rateLimiter,
		Security:    cfg.Security,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook("rate-limiter", func(context.Context) error {
		stopLimiter()
		return nil
	})
	gracefulServer.RegisterShutdownHook("tracing", tracing.Shutdown)

	if err := gracefulServer.ListenAndServe(context.Background()); err != nil {
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}
