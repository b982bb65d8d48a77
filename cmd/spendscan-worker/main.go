package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spendscan/internal/amqp"
	"spendscan/internal/cache"
	"spendscan/internal/classify"
	"spendscan/internal/config"
	"spendscan/internal/core"
	applog "spendscan/internal/log"
	"spendscan/internal/pipeline"
	"spendscan/internal/rules"
	gsheet "spendscan/internal/sheets/google"
	"spendscan/internal/storage"
	"spendscan/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	rulesPath := flag.String("rules", "", "path to a JSON rule set (optional)")
	flag.Parse()

	logger.Info("Starting spendscan-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	var ruleSet []core.CategoryRule
	if *rulesPath != "" {
		var err error
		ruleSet, err = rules.LoadFile(*rulesPath)
		if err != nil {
			logger.Error("Failed to load rule set", applog.FieldError, err, "path", *rulesPath)
			os.Exit(1)
		}
		logger.Info("Loaded rule set", "rules", len(ruleSet))
	}

	var store cache.Store
	var err error
	switch cfg.DataBackend {
	case "memory":
		store = cache.NewMemoryStore()
		logger.Info("Initialized memory backend")
	default:
		store, err = storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	}
	defer store.Close()

	// Google Sheets export is optional
	var sheetsClient *gsheet.Client
	if cfg.SheetsExportEnabled() {
		sheetsClient, err = gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPResultsQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	runner := pipeline.NewRunner(store, pipeline.Options{
		Classifier: classify.Options{RequireOTP: cfg.RequireOTPGate},
		Location:   cfg.Location(),
		Workers:    cfg.ClassifyWorkers,
	})

	opts := worker.Options{
		RuleSet:   ruleSet,
		BatchSize: cfg.IngestBatchSize,
		Publisher: amqpClient,
		Logger:    logger,
	}
	if sheetsClient != nil {
		opts.Summary = sheetsClient
		opts.Categories = sheetsClient
	}
	analysisWorker := worker.NewAnalysisWorker(runner, opts)

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	go func() {
		if err := amqpClient.ConsumeRawMessagesForever(ctx, analysisWorker.Handler(ctx)); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", applog.FieldError, err)
			}
			cancel()
		}
	}()

	// Periodic flush picks up partial batches between deliveries.
	if err := analysisWorker.RunPeriodicFlush(ctx, cfg.IngestInterval); err != nil && err != context.Canceled {
		logger.Error("Worker stopped", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
