package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetbook/internal/amqp"
	"budgetbook/internal/cli"
	"budgetbook/internal/log"
	gsheet "budgetbook/internal/sheets/google"
	"budgetbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting budgetbook-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}
	if !cfg.SheetsEnabled() {
		logger.Error("Google Sheets export is not configured; set GOOGLE_SPREADSHEET_ID and credentials")
		os.Exit(1)
	}

	res := cli.InitStore(context.Background(), logger, cfg)
	if res.Cleanup != nil {
		defer res.Cleanup()
	}

	sheetsClient, err := gsheet.NewClient(context.Background(), gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleBudgetSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(res.Store, sheetsClient, cfg.SyncConcurrency, cfg.SyncTimeout)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Exports every stored profile once in case messages were missed while
	// the worker was down.
	logger.Info("Performing startup sync")
	if err := syncWorker.StartupSync(ctx); err != nil {
		logger.Error("Startup sync failed", log.FieldError, err)
	}

	if err := amqpClient.ConsumeProfileSync(ctx, syncWorker.HandleSyncMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
