package main

import (
	"fmt"
	"os"

	"gaextractor/internal/delivery"
	"gaextractor/internal/infrastructure"
	"gaextractor/internal/usecase"
	"gaextractor/pkg/config"
	"gaextractor/pkg/logger"
	"gaextractor/pkg/metrics"
)

const componentName = "ga-extractor"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("Starting server")

	m := metrics.New()

	accounts, err := infrastructure.NewAccountRepository(cfg.Storage.AccountsDSN, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open accounts store")
	}
	defer accounts.Close()

	sink, err := infrastructure.NewSQLiteSink(cfg.Storage.SinkDSN, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open storage sink")
	}
	defer sink.Close()

	reportClient := infrastructure.NewReportClient(infrastructure.ReportClientConfig{
		BaseURL:           cfg.API.BaseURL,
		OAuthTokenURL:     cfg.API.OAuthTokenURL,
		OAuthClientID:     cfg.API.OAuthClientID,
		OAuthClientSecret: cfg.API.OAuthClientSecret,
		PageSize:          cfg.Extractor.PageSize,
		BackoffAttempts:   cfg.Extractor.BackoffAttempts,
		BackoffBase:       cfg.Extractor.BackoffBase,
		Timeout:           cfg.Extractor.RequestTimeout,
		RateLimit:         cfg.Extractor.RateLimitPerSecond,
	}, log, m)

	planner := usecase.NewExtractionPlanner()
	writer := usecase.NewTableWriter(sink, cfg.Extractor.TempDir, log, m)
	extraction := usecase.NewExtractionService(
		reportClient, accounts, sink, planner, writer, log, m, componentName)

	handlers := delivery.NewHTTPHandlers(extraction, accounts, log, m)
	router := delivery.NewHTTPRouter(handlers, log, m)

	engine := router.SetupRoutes()
	if err := engine.Run(":" + cfg.Server.Port); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}
