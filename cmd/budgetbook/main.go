// Command budgetbook is the interactive budgeting console.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"budgetbook/internal/cli"
	"budgetbook/internal/console"
	"budgetbook/internal/log"
)

func main() {
	cli.LoadEnvFile()

	// Records go to stderr so they do not interleave with console output.
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLoggerTo(os.Stderr, level, log.ComponentConsole)

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := cli.InitStore(ctx, logger, cfg)
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Error("Failed to close profile store", log.FieldError, err)
			}
		}()
	}

	c := console.New(res.Store, os.Stdin, os.Stdout, console.Options{
		Prompt: true,
		Logger: logger,
	})
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Console stopped", log.FieldError, err)
		os.Exit(1)
	}
}
