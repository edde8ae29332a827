package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/staticwaves/podforge/internal/worker"
)

// Evaluator periodically applies alert thresholds to the worker pool
// and feeds pool gauges into the metrics collector.
type Evaluator struct {
	pool     *worker.Pool
	alerts   *AlertManager
	metrics  *MetricsCollector
	interval time.Duration
	logger   *slog.Logger
}

// NewEvaluator creates an Evaluator. A non-positive interval defaults
// to 15 seconds.
func NewEvaluator(pool *worker.Pool, alerts *AlertManager, metrics *MetricsCollector, interval time.Duration, logger *slog.Logger) *Evaluator {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Evaluator{
		pool:     pool,
		alerts:   alerts,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
	}
}

// Run evaluates on a ticker until the context is cancelled.
func (e *Evaluator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Debug("alert evaluator started", "interval", e.interval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("alert evaluator stopped")
			return
		case <-ticker.C:
			e.evaluate()
		}
	}
}

func (e *Evaluator) evaluate() {
	stats := e.pool.GetStats()
	workers := e.pool.ListWorkers()

	e.alerts.EvaluatePool(stats, workers)

	queued := 0
	processing := 0
	for _, ws := range stats.Workers {
		queued += ws.Queue.Queued
		processing += ws.Queue.Processing
	}
	e.metrics.Record("pool.queued", float64(queued), nil)
	e.metrics.Record("pool.processing", float64(processing), nil)
	e.metrics.Record("pool.workers", float64(len(workers)), nil)
}
