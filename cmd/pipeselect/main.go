package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/PipeSelect/internal/advisor"
	"github.com/MikeSquared-Agency/PipeSelect/internal/api"
	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
	"github.com/MikeSquared-Agency/PipeSelect/internal/config"
	"github.com/MikeSquared-Agency/PipeSelect/internal/events"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog: Postgres when configured, otherwise YAML
	var provider catalog.Provider
	if cfg.Database.URL != "" {
		pg, err := catalog.NewPostgresProvider(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Verify(ctx); err != nil {
			logger.Error("stored catalog is invalid, run scripts/seed_catalog.go", "error", err)
			os.Exit(1)
		}
		provider = pg
		logger.Info("catalog served from database")
	} else {
		static, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			logger.Error("failed to load catalog", "path", cfg.Catalog.Path, "error", err)
			os.Exit(1)
		}
		provider = static
		logger.Info("catalog loaded", "path", cfg.Catalog.Path)
	}

	// Events (optional)
	var eventsClient events.Client
	if cfg.Events.URL != "" {
		nc, err := events.NewNATSClient(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to nats, running without events", "error", err)
		} else {
			eventsClient = nc
			defer nc.Close()
			logger.Info("connected to nats")
		}
	}

	// Cost advisor (optional)
	var advisorClient advisor.Client
	if cfg.Advisor.URL != "" {
		advisorClient = advisor.NewHTTPClient(cfg.Advisor.URL, cfg.Advisor.Model, cfg.AdvisorTimeout())
		logger.Info("cost advisor enabled", "model", cfg.Advisor.Model)
	}

	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(provider, eventsClient, advisorClient, cfg, logger),
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
