package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/staticwaves/podforge/internal/domain"
)

// lifecycleWriteTimeout bounds each persistence write triggered by a
// queue event, so a slow backend cannot stall queue goroutines.
const lifecycleWriteTimeout = 5 * time.Second

// LifecycleRecorder mirrors queue lifecycle events into the persisted
// job rows. It satisfies the queue's Observer interface. Persistence
// failures are logged, never propagated: the in-memory queue remains
// the source of truth for execution.
type LifecycleRecorder struct {
	writer JobWriter
	logger *slog.Logger
}

// NewLifecycleRecorder creates a recorder over the given writer.
func NewLifecycleRecorder(writer JobWriter, logger *slog.Logger) *LifecycleRecorder {
	return &LifecycleRecorder{writer: writer, logger: logger}
}

// JobCompleted persists the terminal completed status.
func (r *LifecycleRecorder) JobCompleted(job *domain.Job, result *domain.JobResult) {
	r.update(job, domain.JobStatusCompleted, "", result.Duration.Milliseconds())
}

// JobFailed persists the terminal failed status.
func (r *LifecycleRecorder) JobFailed(job *domain.Job, err error) {
	r.update(job, domain.JobStatusFailed, err.Error(), 0)
}

// JobRetrying persists the retrying status and last error.
func (r *LifecycleRecorder) JobRetrying(job *domain.Job, err error) {
	r.update(job, domain.JobStatusRetrying, err.Error(), 0)
}

func (r *LifecycleRecorder) update(job *domain.Job, status domain.JobStatus, errMsg string, durationMs int64) {
	ctx, cancel := context.WithTimeout(context.Background(), lifecycleWriteTimeout)
	defer cancel()

	if err := r.writer.UpdateJobStatus(ctx, job.ID, status, errMsg, durationMs); err != nil {
		r.logger.Error("failed to persist job status",
			"job_id", job.ID,
			"status", status,
			"error", err)
	}
}
