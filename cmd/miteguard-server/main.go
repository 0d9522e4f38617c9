// Package main provides the entry point for the miteguard API server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/futonlab/miteguard/internal/config"
	"github.com/futonlab/miteguard/internal/db"
	"github.com/futonlab/miteguard/internal/forecast"
	"github.com/futonlab/miteguard/internal/metrics"
	"github.com/futonlab/miteguard/internal/notify"
	"github.com/futonlab/miteguard/internal/predictor"
	"github.com/futonlab/miteguard/internal/server"
	"github.com/futonlab/miteguard/internal/service"
	"github.com/futonlab/miteguard/internal/window"
)

const version = "0.1.0"

func main() {
	// Parse flags
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("miteguard-server starting",
		"version", version,
		"port", cfg.ServerPort,
		"surrealdb_url", cfg.SurrealDBURL,
		"forecast_url", cfg.ForecastURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}

	dbClient, err := db.NewClient(ctx, dbCfg, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		_ = dbClient.Close(context.Background())
	}()

	// Initialize database schema
	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	// Wipe database if requested (via flag or env var)
	if *wipeDB || os.Getenv("MITEGUARD_WIPE_DB") == "true" {
		if err := dbClient.WipeData(ctx); err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
	}

	// Load window tuning
	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		logger.Error("failed to load tuning", "error", err, "file", cfg.TuningFile)
		os.Exit(1)
	}

	// Outcome predictor: AI-backed when a provider is configured, with the
	// deterministic fallback otherwise.
	var pred predictor.Predictor = predictor.Fallback{}
	if cfg.LLMProvider != "" {
		model, err := predictor.NewModel(predictor.ModelConfig{
			Provider:        cfg.LLMProvider,
			Model:           cfg.LLMModel,
			OllamaHost:      cfg.OllamaHost,
			OpenAIAPIKey:    cfg.OpenAIAPIKey,
			AnthropicAPIKey: cfg.AnthropicAPIKey,
		})
		if err != nil {
			logger.Error("failed to create predictor model", "error", err)
			os.Exit(1)
		}
		pred = predictor.NewLLM(model, logger)
		logger.Info("predictor initialized", "provider", cfg.LLMProvider, "model", cfg.LLMModel)
	}

	// Notifications: websocket hub always, Kafka when brokers are configured.
	hub := server.NewHub(logger)
	notifiers := notify.Multi{notify.NewLogNotifier(logger), hub}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() { _ = kafkaNotifier.Close() }()
		notifiers = append(notifiers, kafkaNotifier)
		logger.Info("kafka notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	collector := metrics.NewCollector()

	coordinator := service.NewCoordinator(service.Deps{
		Store:     dbClient,
		Forecast:  forecast.NewClient(cfg.ForecastURL),
		Predictor: pred,
		Notifier:  notifiers,
		Finder:    window.NewFinder(tuning),
		Metrics:   collector,
		Logger:    logger,
		RadiusKm:  cfg.DefaultRadiusKm,
	})

	srv := server.New(cfg.ServerPort, dbClient, coordinator, hub, collector, logger)

	logger.Info("server ready, awaiting connections")

	// Run server (blocks until context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
