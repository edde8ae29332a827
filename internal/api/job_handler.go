// Package api provides HTTP handlers for the API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/staticwaves/podforge/internal/api/shared"
	"github.com/staticwaves/podforge/internal/domain"
	"github.com/staticwaves/podforge/internal/platform/logger"
	"github.com/staticwaves/podforge/internal/queue"
	"github.com/staticwaves/podforge/internal/redact"
	"github.com/staticwaves/podforge/internal/store"
	"github.com/staticwaves/podforge/internal/worker"
)

// logLinesPerJob caps how many log lines a job detail response carries.
const logLinesPerJob = 200

// SubmitJobRequest is the request body for POST /jobs.
type SubmitJobRequest struct {
	ProductTypes []string `json:"productTypes" validate:"required,min=1,dive,required"`
	Prompt       string   `json:"prompt,omitempty"`
	Title        string   `json:"title,omitempty"`
	Priority     int      `json:"priority,omitempty"`
	MaxRetries   *int     `json:"maxRetries,omitempty"`
}

// SubmitJobResponse is returned when a job is accepted.
type SubmitJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// JobDetailResponse is returned for GET /jobs/{id}.
type JobDetailResponse struct {
	Job      *store.JobRecord    `json:"job"`
	Images   []domain.ImageAsset `json:"images"`
	Products []domain.Product    `json:"products"`
	Logs     []domain.JobLog     `json:"logs"`
}

// JobListResponse is returned for GET /jobs.
type JobListResponse struct {
	Jobs  []*store.JobRecord `json:"jobs"`
	Count int                `json:"count"`
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	pool     *worker.Pool
	jobs     store.JobStore
	defaults queue.Config
	logger   *slog.Logger
}

// NewJobHandler creates a new JobHandler. defaults supplies the queue
// retry budget applied when a submission does not carry its own.
func NewJobHandler(pool *worker.Pool, jobs store.JobStore, defaults queue.Config, logger *slog.Logger) *JobHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for JobHandler")
	}

	return &JobHandler{
		pool:     pool,
		jobs:     jobs,
		defaults: defaults,
		logger:   logger.With(slog.String("component", "job_handler")),
	}
}

// SubmitJob handles POST /jobs requests.
// It validates the submission, persists the accepted job, and routes it
// to the least-loaded pool worker.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SubmitJobRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.Validate.Struct(req); err != nil {
		log.Warn("validation error", slog.String("error", redact.Error(err)))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	payload, err := json.Marshal(domain.JobRequest{
		ProductTypes: req.ProductTypes,
		Prompt:       req.Prompt,
		Title:        req.Title,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to accept job")
		return
	}

	maxRetries := h.defaults.MaxRetries
	if req.MaxRetries != nil && *req.MaxRetries >= 0 {
		maxRetries = *req.MaxRetries
	}

	job, err := domain.NewJob(payload, req.Priority, maxRetries)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to accept job")
		return
	}

	// Record the accepted job before dispatch so every lifecycle update
	// the queue emits finds the row already present.
	if h.jobs != nil {
		if err := h.jobs.SaveJob(r.Context(), job, domain.JobStatusQueued); err != nil {
			log.Error("failed to persist accepted job",
				slog.String("job_id", job.ID.String()),
				slog.String("error", redact.Error(err)))
		}
	}

	if err := h.pool.EnqueueJob(job); err != nil {
		if h.jobs != nil {
			if uerr := h.jobs.UpdateJobStatus(r.Context(), job.ID, domain.JobStatusFailed, err.Error(), 0); uerr != nil && !store.IsNotFoundError(uerr) {
				log.Error("failed to mark rejected job",
					slog.String("job_id", job.ID.String()),
					slog.String("error", redact.Error(uerr)))
			}
		}
		HandleAPIError(w, r, err, "Failed to accept job")
		return
	}

	log.Debug("job accepted",
		slog.String("job_id", job.ID.String()),
		slog.Int("product_types", len(req.ProductTypes)))
	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitJobResponse{
		JobID:  job.ID.String(),
		Status: "accepted",
	})
}

// GetJob handles GET /jobs/{id} requests.
// The response combines the persisted job record with its generated
// images, published products, and log lines.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	jobID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	record, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Job not found")
			return
		}
		HandleAPIError(w, r, err, "Failed to get job")
		return
	}

	images, err := h.jobs.ListImagesByJob(r.Context(), jobID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get job")
		return
	}

	products, err := h.jobs.ListProductsByJob(r.Context(), jobID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get job")
		return
	}

	logs, err := h.jobs.ListLogsByJob(r.Context(), jobID, logLinesPerJob)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get job")
		return
	}

	log.Debug("job detail served", slog.String("job_id", jobID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, JobDetailResponse{
		Job:      record,
		Images:   emptyIfNilImages(images),
		Products: emptyIfNilProducts(products),
		Logs:     emptyIfNilLogs(logs),
	})
}

// ListJobs handles GET /jobs requests with optional status and limit
// query parameters.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	opts := store.ListJobsOptions{
		Status: domain.JobStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 0),
	}

	records, err := h.jobs.ListJobs(r.Context(), opts)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list jobs")
		return
	}

	if records == nil {
		records = []*store.JobRecord{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, JobListResponse{
		Jobs:  records,
		Count: len(records),
	})
}

func emptyIfNilImages(v []domain.ImageAsset) []domain.ImageAsset {
	if v == nil {
		return []domain.ImageAsset{}
	}
	return v
}

func emptyIfNilProducts(v []domain.Product) []domain.Product {
	if v == nil {
		return []domain.Product{}
	}
	return v
}

func emptyIfNilLogs(v []domain.JobLog) []domain.JobLog {
	if v == nil {
		return []domain.JobLog{}
	}
	return v
}
