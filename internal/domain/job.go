package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the observable state of a job. It is derived
// from which queue collection currently holds the job, never stored
// redundantly.
type JobStatus string

// Possible job status values
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
	JobStatusUnknown    JobStatus = "unknown"
)

// Common validation errors for Job
var (
	ErrEmptyJobID      = errors.New("job ID cannot be empty")
	ErrEmptyJobRequest = errors.New("job request cannot be empty")
	ErrNegativeRetries = errors.New("max retries cannot be negative")
)

// Job is a unit of requested work with priority and retry bookkeeping.
// The request payload is opaque to the queue; only the surrounding
// pipeline interprets it.
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Priority   int             `json:"priority"`
	Request    json.RawMessage `json:"request"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewJob creates a Job for the given request payload. It generates a
// new UUID, stamps the creation time, and validates the inputs.
func NewJob(request json.RawMessage, priority, maxRetries int) (*Job, error) {
	job := &Job{
		ID:         uuid.New(),
		Priority:   priority,
		Request:    request,
		RetryCount: 0,
		MaxRetries: maxRetries,
		CreatedAt:  time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks that the job satisfies its invariants.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}
	if len(j.Request) == 0 {
		return ErrEmptyJobRequest
	}
	if j.MaxRetries < 0 {
		return ErrNegativeRetries
	}
	return nil
}

// RetriesExhausted reports whether the job has no retry budget left.
func (j *Job) RetriesExhausted() bool {
	return j.RetryCount >= j.MaxRetries
}

// JobResult holds the outcome of a successful job execution. It is
// immutable once stored.
type JobResult struct {
	JobID    uuid.UUID       `json:"job_id"`
	Success  bool            `json:"success"`
	Output   json.RawMessage `json:"output,omitempty"`
	Errors   []string        `json:"errors,omitempty"`
	Duration time.Duration   `json:"duration"`
}
