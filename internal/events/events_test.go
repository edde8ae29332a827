package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticwaves/podforge/internal/domain"
)

func TestNewJobLifecycleEvent(t *testing.T) {
	job, err := domain.NewJob(json.RawMessage(`{"productTypes":["tshirt"]}`), 4, 3)
	require.NoError(t, err)
	job.RetryCount = 2

	event := NewJobLifecycleEvent(TypeJobRetrying, job, domain.JobStatusRetrying)
	assert.NotZero(t, event.ID)
	assert.Equal(t, TypeJobRetrying, event.Type)
	assert.Equal(t, job.ID, event.JobID)
	assert.Equal(t, domain.JobStatusRetrying, event.Status)
	assert.Equal(t, 2, event.RetryCount)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestJobLifecycleEventMarshal(t *testing.T) {
	job, err := domain.NewJob(json.RawMessage(`{"productTypes":["mug"]}`), 0, 0)
	require.NoError(t, err)

	event := NewJobLifecycleEvent(TypeJobCompleted, job, domain.JobStatusCompleted)
	event.DurationMs = 1200

	payload, err := event.Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "job.completed", decoded["type"])
	assert.Equal(t, job.ID.String(), decoded["job_id"])
	assert.Equal(t, "completed", decoded["status"])
	assert.Equal(t, float64(1200), decoded["duration_ms"])

	// Empty error strings stay off the wire entirely.
	assert.NotContains(t, decoded, "error")
}
