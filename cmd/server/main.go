// Package main implements the entry point for the podforge server,
// the control plane for print-on-demand generation jobs: accept a
// submission, route it through the worker pool, and expose the
// resulting artifacts and pool health over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/staticwaves/podforge/internal/config"
	"github.com/staticwaves/podforge/internal/platform/logger"
)

// main is the entry point for the podforge server. It initializes
// configuration, logging, persistence, and the worker pool, then runs
// the HTTP control plane until a shutdown signal arrives.
func main() {
	ctx := context.Background()

	app, err := initializeApp(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server terminated with error: %v", err)
	}
}

// initializeApp loads configuration and sets up application components.
func initializeApp(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Pool.WorkerCount,
		"database_configured", cfg.Database.URL != "",
		"redis_configured", cfg.Redis.URL != "")

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}

	return app, nil
}
