package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/staticwaves/podforge/internal/domain"
)

// Lifecycle event types published to subscribers.
const (
	TypeJobCompleted = "job.completed"
	TypeJobFailed    = "job.failed"
	TypeJobRetrying  = "job.retrying"
)

// JobLifecycleEvent describes one job state transition. It is the wire
// format published to the Redis channel.
type JobLifecycleEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// JobID identifies the job that transitioned
	JobID uuid.UUID `json:"job_id"`

	// Status is the job's state after the transition
	Status domain.JobStatus `json:"status"`

	// RetryCount is the job's retry counter at the time of the event
	RetryCount int `json:"retry_count"`

	// Error carries the failure message for failed and retrying events
	Error string `json:"error,omitempty"`

	// DurationMs is the execution time for completed events
	DurationMs int64 `json:"duration_ms,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewJobLifecycleEvent builds an event for the given transition.
func NewJobLifecycleEvent(eventType string, job *domain.Job, status domain.JobStatus) *JobLifecycleEvent {
	return &JobLifecycleEvent{
		ID:         uuid.New(),
		Type:       eventType,
		JobID:      job.ID,
		Status:     status,
		RetryCount: job.RetryCount,
		CreatedAt:  time.Now().UTC(),
	}
}

// Marshal serializes the event for publishing.
func (e *JobLifecycleEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
