package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetbook/internal/cache"
	"budgetbook/internal/cli"
	apphttp "budgetbook/internal/http"
	"budgetbook/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitStore(context.Background(), logger, cfg)
	publisher := cli.InitPublisher(logger, cfg)
	profiles := cli.NewProfileService(logger, cfg, res, publisher)

	caches := cache.NewManager(logger.Logger)
	for _, c := range profiles.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, profiles, apphttp.Options{Logger: logger})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := profiles.Close(); err != nil {
			logger.Error("Failed to close profile service", log.FieldError, err)
		}
		if publisher != nil {
			publisher.Close()
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Failed to close profile store", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting budgetbook server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
