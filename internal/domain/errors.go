package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when an entity or request fails
	// validation. Validation failures are never retried.
	ErrValidation = errors.New("validation failed")

	// ErrJobTimeout is returned when a dispatched job exceeds its
	// wall-clock timeout. Treated identically to an execution error
	// for retry purposes.
	ErrJobTimeout = errors.New("job execution timed out")

	// ErrJobNotFound is returned when a job id is unknown.
	ErrJobNotFound = errors.New("job not found")

	// ErrWorkerNotFound is returned when a worker id is unknown.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrNoRunningWorkers is returned when a submission arrives while
	// no worker is in the running state.
	ErrNoRunningWorkers = errors.New("no running workers available")

	// ErrEngineFailure marks an engine runtime failure, as opposed to
	// a per-job execution error. It triggers the pool's bounded
	// restart supervisor rather than job-level retry.
	ErrEngineFailure = errors.New("engine runtime failure")

	// ErrQueueShutdown is returned when an operation is attempted on a
	// queue that has been shut down.
	ErrQueueShutdown = errors.New("job queue is shut down")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
