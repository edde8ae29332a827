package api

import (
	"log/slog"
	"net/http"

	"github.com/staticwaves/podforge/internal/api/shared"
	"github.com/staticwaves/podforge/internal/domain"
	"github.com/staticwaves/podforge/internal/monitor"
	"github.com/staticwaves/podforge/internal/worker"
)

// defaultMetricLimit bounds GET /metrics responses when no limit is given.
const defaultMetricLimit = 100

// HealthResponse is returned for GET /health.
type HealthResponse struct {
	Healthy bool                `json:"healthy"`
	Workers []domain.WorkerInfo `json:"workers"`
}

// MetricsResponse is returned for GET /metrics.
type MetricsResponse struct {
	Name    string           `json:"name"`
	Metrics []monitor.Metric `json:"metrics"`
	Count   int              `json:"count"`
}

// AlertsResponse is returned for GET /alerts.
type AlertsResponse struct {
	Alerts []monitor.Alert `json:"alerts"`
	Count  int             `json:"count"`
}

// MonitorHandler serves the observability endpoints.
type MonitorHandler struct {
	pool      *worker.Pool
	metrics   *monitor.MetricsCollector
	alerts    *monitor.AlertManager
	dashboard *monitor.DashboardProvider
	logger    *slog.Logger
}

// NewMonitorHandler creates a new MonitorHandler
func NewMonitorHandler(
	pool *worker.Pool,
	metrics *monitor.MetricsCollector,
	alerts *monitor.AlertManager,
	dashboard *monitor.DashboardProvider,
	logger *slog.Logger,
) *MonitorHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for MonitorHandler")
	}

	return &MonitorHandler{
		pool:      pool,
		metrics:   metrics,
		alerts:    alerts,
		dashboard: dashboard,
		logger:    logger.With(slog.String("component", "monitor_handler")),
	}
}

// Health handles GET /health requests. The pool is healthy when at
// least one worker is running and every running worker's engine
// reports healthy; anything else is a 503.
func (h *MonitorHandler) Health(w http.ResponseWriter, r *http.Request) {
	healthy := h.pool.HealthCheck()
	workers := h.pool.ListWorkers()
	if workers == nil {
		workers = []domain.WorkerInfo{}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	shared.RespondWithJSON(w, r, status, HealthResponse{
		Healthy: healthy,
		Workers: workers,
	})
}

// Stats handles GET /stats requests with the pool-wide aggregate.
func (h *MonitorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.pool.GetStats())
}

// Dashboard handles GET /dashboard requests. The hours query parameter
// selects the trailing window; absent or invalid values fall back to
// the provider default.
func (h *MonitorHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 0)
	shared.RespondWithJSON(w, r, http.StatusOK, h.dashboard.Snapshot(hours))
}

// Metrics handles GET /metrics requests for one named series.
func (h *MonitorHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "name query parameter is required")
		return
	}

	limit := queryInt(r, "limit", defaultMetricLimit)
	series := h.metrics.GetRecent(name, limit)
	if series == nil {
		series = []monitor.Metric{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MetricsResponse{
		Name:    name,
		Metrics: series,
		Count:   len(series),
	})
}

// Alerts handles GET /alerts requests.
func (h *MonitorHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	alerts := h.alerts.GetRecent(limit)
	if alerts == nil {
		alerts = []monitor.Alert{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AlertsResponse{
		Alerts: alerts,
		Count:  len(alerts),
	})
}
