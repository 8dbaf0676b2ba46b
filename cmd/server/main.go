package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/leadstream/leadstream/internal/api"
	"github.com/leadstream/leadstream/internal/config"
	"github.com/leadstream/leadstream/internal/database"
	"github.com/leadstream/leadstream/internal/ingestion"
	"github.com/leadstream/leadstream/internal/logging"
	"github.com/leadstream/leadstream/internal/lookup"
	"github.com/leadstream/leadstream/internal/metrics"
	"github.com/leadstream/leadstream/internal/models"
	"github.com/leadstream/leadstream/internal/server"
	"github.com/leadstream/leadstream/internal/sources"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting leadstream")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("connecting to database")
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed the source catalog from the built-in adapter registry. Operator
	// status overrides survive reseeding.
	registry := sources.NewDefaultRegistry(nil)
	catalogRepo := database.NewPostgresCatalogRepository(db)
	entries := []models.ConnectorSource{}
	for _, entry := range registry.List() {
		entries = append(entries, models.ConnectorSource{Key: entry.Key, Title: entry.Title})
	}
	if err := catalogRepo.Seed(ctx, entries); err != nil {
		logger.Error("failed to seed source catalog", "error", err)
		os.Exit(1)
	}

	connectorRepo := database.NewPostgresConnectorRepository(db)
	leadRepo := database.NewPostgresLeadRepository(db)

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	if cfg.Lookup.BaseURL == "" {
		logger.Error("LOOKUP_BASE_URL is required")
		os.Exit(1)
	}
	lookupClient := lookup.NewHTTPClient(cfg.Lookup.BaseURL, nil)
	resolver := lookup.NewResolver(lookupClient, lookup.PollPolicy{
		MaxAttempts: cfg.Lookup.PollMaxAttempts,
		Delay:       cfg.Lookup.PollDelay,
	})
	resolver.OnPollAttempt(collector.RecordPollAttempt)

	processor := ingestion.NewProcessor(registry, connectorRepo, leadRepo, resolver, logger, collector)
	orchestrator := ingestion.NewOrchestrator(connectorRepo, processor, logger)

	queue := ingestion.NewQueue(orchestrator, cfg.Sync.QueueSize, cfg.Sync.Workers, logger, collector)
	queue.Start(ctx)
	logger.Info("sync queue started", "size", cfg.Sync.QueueSize, "workers", cfg.Sync.Workers)

	handler := api.NewHandler(catalogRepo, connectorRepo, leadRepo, queue, registry, api.DBHealthCheck(db), logger)

	mux := http.NewServeMux()
	api.SetupRoutes(mux, handler, collector.Handler())

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("leadstream started", "port", cfg.Server.Port)

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	cancel()
	queue.Stop()
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
