package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/staticwaves/podforge/internal/config"
	"github.com/staticwaves/podforge/internal/domain"
	"github.com/staticwaves/podforge/internal/engine"
	"github.com/staticwaves/podforge/internal/events"
	"github.com/staticwaves/podforge/internal/monitor"
	"github.com/staticwaves/podforge/internal/platform/postgres"
	"github.com/staticwaves/podforge/internal/queue"
	"github.com/staticwaves/podforge/internal/store"
	"github.com/staticwaves/podforge/internal/worker"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB
	redis  redis.UniversalClient

	// Persistence (interface so the in-memory store can stand in)
	jobStore store.JobStore

	// Monitoring
	metrics   *monitor.MetricsCollector
	alerts    *monitor.AlertManager
	recorder  *monitor.Recorder
	dashboard *monitor.DashboardProvider
	evaluator *monitor.Evaluator

	// Job processing
	pool *worker.Pool
}

// newApplication creates a new application instance with all
// dependencies initialized and the worker pool started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	// Persistence: PostgreSQL when configured, in-memory otherwise.
	if cfg.Database.URL != "" {
		db, err := setupAppDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		app.db = db

		if err := postgres.MigrateUp(ctx, db); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		app.jobStore = postgres.NewPostgresJobStore(db)
		logger.Info("Using PostgreSQL job store")
	} else {
		app.jobStore = store.NewMemoryJobStore()
		logger.Info("No database configured, using in-memory job store")
	}

	// Monitoring components
	app.metrics = monitor.NewMetricsCollector(cfg.Monitor.MetricRetention)
	app.alerts = monitor.NewAlertManager(monitor.Thresholds{
		FailureRate:       cfg.Monitor.FailureRate,
		MinRunningWorkers: cfg.Monitor.MinRunningWorkers,
	}, cfg.Monitor.AlertHistory, logger)
	app.recorder = monitor.NewRecorder(app.metrics, app.alerts, cfg.Monitor.RecentJobs)
	app.dashboard = monitor.NewDashboardProvider(app.recorder, app.alerts, app.metrics)

	// Worker pool over the generation pipeline
	app.pool = worker.NewPool(app.engineFactory(), worker.Config{
		WorkerCount:   cfg.Pool.WorkerCount,
		AutoRestart:   cfg.Pool.AutoRestart,
		MaxRestarts:   cfg.Pool.MaxRestarts,
		RestartDelay:  cfg.Pool.RestartDelay,
		ShutdownGrace: cfg.Pool.ShutdownGrace,
		Queue:         app.queueConfig(),
	}, logger)

	// Observers must attach before Start so every worker queue sees them.
	app.pool.AddObserver(app.recorder)
	app.pool.AddObserver(store.NewLifecycleRecorder(app.jobStore, logger))
	app.pool.NotifyWorkerFailure(func(info domain.WorkerInfo, cause error) {
		app.alerts.WorkerCrashed(info.ID, cause)
	})

	if cfg.Redis.URL != "" {
		client, err := setupRedis(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		app.redis = client
		app.pool.AddObserver(events.NewRedisPublisher(client, cfg.Redis.Channel, logger))
	}

	if err := app.pool.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	// Periodic threshold evaluation feeding the alert manager
	app.evaluator = monitor.NewEvaluator(app.pool, app.alerts, app.metrics, cfg.Monitor.EvalInterval, logger)

	logger.Info("Application initialized successfully")
	return app, nil
}

// engineFactory builds one pipeline engine per pool slot.
func (app *application) engineFactory() worker.EngineFactory {
	return func(index int) (worker.Engine, error) {
		return engine.NewPipeline(
			&engine.LocalGenerator{},
			&engine.LocalPublisher{},
			app.jobStore,
			app.metrics,
			app.logger.With("component", "pipeline", "worker_index", index),
		)
	}
}

// queueConfig maps the pool section of the config onto per-worker
// queue settings.
func (app *application) queueConfig() queue.Config {
	return queue.Config{
		MaxConcurrent: app.config.Pool.MaxConcurrentJobs,
		JobTimeout:    app.config.Pool.JobTimeout,
		RetryDelay:    app.config.Pool.RetryDelay,
		AutoRetry:     app.config.Pool.AutoRetry,
		MaxRetries:    app.config.Pool.MaxRetries,
	}
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	// Background threshold evaluation for the pool
	evalCtx, cancelEval := context.WithCancel(ctx)
	defer cancelEval()
	go app.evaluator.Run(evalCtx)

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	// Stop the worker pool within the configured grace period
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Pool.ShutdownGrace)
	defer cancel()

	if app.pool != nil {
		if err := app.pool.Stop(shutdownCtx); err != nil {
			app.logger.Error("Error stopping worker pool", "error", err)
		}
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Error closing redis client", "error", err)
		}
	}

	// Close database connection
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
