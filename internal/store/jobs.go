package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/staticwaves/podforge/internal/domain"
)

// JobRecord is the persisted view of a job. Unlike the in-memory job
// collections, it carries an explicit status column.
type JobRecord struct {
	ID         uuid.UUID        `json:"id"`
	Status     domain.JobStatus `json:"status"`
	Priority   int              `json:"priority"`
	Request    json.RawMessage  `json:"request"`
	RetryCount int              `json:"retry_count"`
	MaxRetries int              `json:"max_retries"`
	LastError  string           `json:"last_error,omitempty"`
	DurationMs int64            `json:"duration_ms,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ListJobsOptions filters ListJobs. A zero Status matches every
// status; a non-positive Limit applies the store default.
type ListJobsOptions struct {
	Status domain.JobStatus
	Limit  int
}

// JobReader is the read contract the API server consumes.
type JobReader interface {
	// GetJob retrieves a persisted job by id.
	GetJob(ctx context.Context, id uuid.UUID) (*JobRecord, error)

	// ListJobs returns jobs matching the options, newest first.
	ListJobs(ctx context.Context, opts ListJobsOptions) ([]*JobRecord, error)

	// ListImagesByJob returns the images generated for a job.
	ListImagesByJob(ctx context.Context, jobID uuid.UUID) ([]domain.ImageAsset, error)

	// ListProductsByJob returns the products published for a job.
	ListProductsByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Product, error)

	// ListLogsByJob returns up to limit log lines for a job, oldest first.
	ListLogsByJob(ctx context.Context, jobID uuid.UUID, limit int) ([]domain.JobLog, error)
}

// JobWriter is the write contract used by the submission path, the
// lifecycle recorder, and the engine.
type JobWriter interface {
	// SaveJob persists a newly accepted job with its initial status.
	SaveJob(ctx context.Context, job *domain.Job, status domain.JobStatus) error

	// UpdateJobStatus transitions a persisted job. durationMs and
	// errMsg may be zero-valued when not applicable.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string, durationMs int64) error

	// SaveImage records a generated image for a job.
	SaveImage(ctx context.Context, image domain.ImageAsset) error

	// SaveProduct records a published product for a job.
	SaveProduct(ctx context.Context, product domain.Product) error

	// AppendLog attaches a log line to a job.
	AppendLog(ctx context.Context, jobID uuid.UUID, level, message string) error
}

// JobStore combines the read and write contracts.
type JobStore interface {
	JobReader
	JobWriter
}
