package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/staticwaves/podforge/internal/api/shared"
	"github.com/staticwaves/podforge/internal/domain"
	"github.com/staticwaves/podforge/internal/platform/logger"
	"github.com/staticwaves/podforge/internal/redact"
	"github.com/staticwaves/podforge/internal/worker"
)

// WorkerListResponse is returned for GET /workers.
type WorkerListResponse struct {
	Workers []domain.WorkerInfo `json:"workers"`
	Count   int                 `json:"count"`
}

// RestartWorkerResponse is returned after a successful manual restart.
type RestartWorkerResponse struct {
	Message  string `json:"message"`
	WorkerID string `json:"workerId"`
}

// ScaleRequest is the request body for POST /scale.
type ScaleRequest struct {
	WorkerCount int `json:"workerCount"`
}

// ScaleResponse is returned after a successful scale operation.
type ScaleResponse struct {
	Message     string `json:"message"`
	WorkerCount int    `json:"workerCount"`
}

// WorkerHandler handles worker pool HTTP requests
type WorkerHandler struct {
	pool   *worker.Pool
	logger *slog.Logger
}

// NewWorkerHandler creates a new WorkerHandler
func NewWorkerHandler(pool *worker.Pool, logger *slog.Logger) *WorkerHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for WorkerHandler")
	}

	return &WorkerHandler{
		pool:   pool,
		logger: logger.With(slog.String("component", "worker_handler")),
	}
}

// ListWorkers handles GET /workers requests.
func (h *WorkerHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers := h.pool.ListWorkers()
	if workers == nil {
		workers = []domain.WorkerInfo{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, WorkerListResponse{
		Workers: workers,
		Count:   len(workers),
	})
}

// RestartWorker handles POST /workers/{id}/restart requests. The
// restarted worker gets a fresh engine and a reset queue.
func (h *WorkerHandler) RestartWorker(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	workerID := chi.URLParam(r, "id")
	if workerID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Worker ID is required")
		return
	}

	if err := h.pool.RestartWorker(r.Context(), workerID); err != nil {
		HandleAPIError(w, r, err, "Failed to restart worker")
		return
	}

	log.Info("worker restarted on request", slog.String("worker_id", workerID))
	shared.RespondWithJSON(w, r, http.StatusOK, RestartWorkerResponse{
		Message:  "worker restarted",
		WorkerID: workerID,
	})
}

// Scale handles POST /scale requests, resizing the pool to the
// requested worker count.
func (h *WorkerHandler) Scale(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req ScaleRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if req.WorkerCount < 1 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "workerCount must be at least 1")
		return
	}

	if err := h.pool.Scale(r.Context(), req.WorkerCount); err != nil {
		HandleAPIError(w, r, err, "Failed to scale worker pool")
		return
	}

	log.Info("worker pool scaled", slog.Int("worker_count", req.WorkerCount))
	shared.RespondWithJSON(w, r, http.StatusOK, ScaleResponse{
		Message:     "worker pool scaled",
		WorkerCount: req.WorkerCount,
	})
}
