package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staticwaves/podforge/internal/domain"
)

// JobSample is one finished or retried job as seen by the recorder.
type JobSample struct {
	JobID      uuid.UUID        `json:"job_id"`
	Status     domain.JobStatus `json:"status"`
	Priority   int              `json:"priority"`
	Duration   time.Duration    `json:"duration,omitempty"`
	Error      string           `json:"error,omitempty"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// Recorder subscribes to queue lifecycle events and turns them into
// metrics, alerts, and dashboard job samples. One recorder is shared
// by every worker queue, so its methods are concurrency-safe.
type Recorder struct {
	metrics *MetricsCollector
	alerts  *AlertManager

	mu      sync.Mutex
	samples []JobSample
	size    int
}

// NewRecorder creates a Recorder retaining at most size job samples.
func NewRecorder(metrics *MetricsCollector, alerts *AlertManager, size int) *Recorder {
	if size <= 0 {
		size = 500
	}
	return &Recorder{
		metrics: metrics,
		alerts:  alerts,
		size:    size,
	}
}

// JobCompleted implements queue.Observer.
func (r *Recorder) JobCompleted(job *domain.Job, result *domain.JobResult) {
	r.metrics.Record("jobs.completed", 1, nil)
	r.metrics.Record("jobs.duration_ms", float64(result.Duration.Milliseconds()), nil)
	r.append(JobSample{
		JobID:      job.ID,
		Status:     domain.JobStatusCompleted,
		Priority:   job.Priority,
		Duration:   result.Duration,
		RecordedAt: time.Now().UTC(),
	})
}

// JobFailed implements queue.Observer.
func (r *Recorder) JobFailed(job *domain.Job, err error) {
	r.metrics.Record("jobs.failed", 1, nil)
	if errors.Is(err, domain.ErrEngineFailure) {
		r.alerts.Raise(SeverityWarning, "job failed due to engine crash", map[string]any{
			"job_id": job.ID.String(),
			"error":  err.Error(),
		})
	}
	r.append(JobSample{
		JobID:      job.ID,
		Status:     domain.JobStatusFailed,
		Priority:   job.Priority,
		Error:      err.Error(),
		RecordedAt: time.Now().UTC(),
	})
}

// JobRetrying implements queue.Observer.
func (r *Recorder) JobRetrying(job *domain.Job, err error) {
	r.metrics.Record("jobs.retries", 1, nil)
	r.append(JobSample{
		JobID:      job.ID,
		Status:     domain.JobStatusRetrying,
		Priority:   job.Priority,
		Error:      err.Error(),
		RecordedAt: time.Now().UTC(),
	})
}

// RecentJobs returns the most recent limit samples in chronological
// order.
func (r *Recorder) RecentJobs(limit int) []JobSample {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.samples
	if limit > 0 && len(s) > limit {
		s = s[len(s)-limit:]
	}
	out := make([]JobSample, len(s))
	copy(out, s)
	return out
}

// JobsSince returns all retained samples recorded at or after cutoff.
func (r *Recorder) JobsSince(cutoff time.Time) []JobSample {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := 0
	for i < len(r.samples) && r.samples[i].RecordedAt.Before(cutoff) {
		i++
	}
	out := make([]JobSample, len(r.samples)-i)
	copy(out, r.samples[i:])
	return out
}

func (r *Recorder) append(s JobSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	if len(r.samples) > r.size {
		r.samples = r.samples[len(r.samples)-r.size:]
	}
}
