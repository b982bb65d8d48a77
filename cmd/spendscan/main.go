package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"spendscan/internal/amqp"
	"spendscan/internal/cache"
	"spendscan/internal/classify"
	"spendscan/internal/config"
	"spendscan/internal/core"
	"spendscan/internal/pipeline"
	"spendscan/internal/rules"
	gsheet "spendscan/internal/sheets/google"
	"spendscan/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	inputPath := flag.String("input", "", "path to a JSONL file of raw messages (one envelope per line)")
	rulesPath := flag.String("rules", "", "path to a JSON rule set (optional)")
	reprocessBefore := flag.String("reprocess-before", "", "re-classify cached entries processed before this RFC3339 time (optional)")
	export := flag.Bool("export", false, "export summaries to the configured Google Sheet")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: spendscan -input messages.jsonl [-rules rules.json] [-export]")
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	msgs, err := readMessages(*inputPath)
	if err != nil {
		logger.Error("Failed to read input messages", "error", err, "path", *inputPath)
		os.Exit(1)
	}

	var ruleSet []core.CategoryRule
	if *rulesPath != "" {
		ruleSet, err = rules.LoadFile(*rulesPath)
		if err != nil {
			logger.Error("Failed to load rule set", "error", err, "path", *rulesPath)
			os.Exit(1)
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("Failed to open cache store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	opts := pipeline.Options{
		Classifier: classify.Options{RequireOTP: cfg.RequireOTPGate},
		Location:   cfg.Location(),
		Workers:    cfg.ClassifyWorkers,
	}
	if *reprocessBefore != "" {
		cutoff, err := time.Parse(time.RFC3339, *reprocessBefore)
		if err != nil {
			logger.Error("Invalid -reprocess-before value", "error", err)
			os.Exit(1)
		}
		opts.ReprocessBefore = cutoff
	}

	ctx := context.Background()
	runner := pipeline.NewRunner(store, opts)
	result, err := runner.Run(ctx, msgs, ruleSet)
	if err != nil {
		logger.Error("Analysis run failed", "error", err)
		os.Exit(1)
	}

	printResult(os.Stdout, result)

	if *export {
		if !cfg.SheetsExportEnabled() {
			logger.Error("Export requested but no GOOGLE_SPREADSHEET_ID configured")
			os.Exit(1)
		}
		if err := exportResult(ctx, cfg, result); err != nil {
			logger.Error("Export failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Summaries exported", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}
}

// readMessages parses one RawMessageEnvelope per line, skipping blanks.
func readMessages(path string) ([]core.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var msgs []core.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		envelope, err := amqp.RawMessageEnvelopeFromJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		msgs = append(msgs, envelope.ToRawMessage())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func openStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.DataBackend {
	case "memory":
		return cache.NewMemoryStore(), nil
	default:
		return storage.NewSQLiteStore(cfg.SQLiteDBPath)
	}
}

func printResult(w io.Writer, result *pipeline.Result) {
	fmt.Fprintf(w, "Processed %d new messages, %d transactions cached\n\n",
		result.NewlyProcessed, len(result.Transactions))

	fmt.Fprintln(w, "Monthly spending:")
	for _, m := range result.Monthly {
		fmt.Fprintf(w, "  %s  %12s  (%d transactions)\n", m.Month, m.Total.StringFixed(2), m.Count)
	}

	fmt.Fprintln(w, "\nYearly spending:")
	for _, y := range result.Yearly {
		fmt.Fprintf(w, "  %s     %12s  (%d transactions)\n", y.Year, y.Total.StringFixed(2), y.Count)
	}

	if len(result.ByCategory) > 0 {
		fmt.Fprintln(w, "\nBy category:")
		for _, c := range result.ByCategory {
			fmt.Fprintf(w, "  %-16s %12s\n", c.Category.Display(), c.Total.StringFixed(2))
		}
	}

	fmt.Fprintf(w, "\nTotal spending:   %s\n", result.TotalSpending.StringFixed(2))
	fmt.Fprintf(w, "Average daily:    %s\n", result.AverageDaily.StringFixed(2))
	fmt.Fprintf(w, "Average monthly:  %s\n", result.AverageMonthly.StringFixed(2))
}

func exportResult(ctx context.Context, cfg *config.Config, result *pipeline.Result) error {
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return err
	}
	if _, err := client.WriteMonthlySummaries(ctx, result.Monthly); err != nil {
		return err
	}
	_, err = client.WriteCategoryTotals(ctx, result.ByCategory)
	return err
}
