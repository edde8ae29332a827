package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticwaves/podforge/internal/domain"
)

func newRecordedJob(t *testing.T, priority int) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(json.RawMessage(`{"productTypes":["sticker"]}`), priority, 3)
	require.NoError(t, err)
	return job
}

func TestRecorderJobCompleted(t *testing.T) {
	metrics := NewMetricsCollector(100)
	alerts := NewAlertManager(Thresholds{}, 10, testLogger())
	r := NewRecorder(metrics, alerts, 10)

	job := newRecordedJob(t, 5)
	r.JobCompleted(job, &domain.JobResult{JobID: job.ID, Success: true, Duration: 1500 * time.Millisecond})

	samples := r.RecentJobs(0)
	require.Len(t, samples, 1)
	assert.Equal(t, job.ID, samples[0].JobID)
	assert.Equal(t, domain.JobStatusCompleted, samples[0].Status)
	assert.Equal(t, 5, samples[0].Priority)
	assert.Equal(t, 1500*time.Millisecond, samples[0].Duration)

	require.Len(t, metrics.GetRecent("jobs.completed", 0), 1)
	durations := metrics.GetRecent("jobs.duration_ms", 0)
	require.Len(t, durations, 1)
	assert.Equal(t, 1500.0, durations[0].Value)
}

func TestRecorderJobFailed(t *testing.T) {
	metrics := NewMetricsCollector(100)
	alerts := NewAlertManager(Thresholds{}, 10, testLogger())
	r := NewRecorder(metrics, alerts, 10)

	job := newRecordedJob(t, 1)
	r.JobFailed(job, errors.New("upstream rejected the design"))

	samples := r.RecentJobs(0)
	require.Len(t, samples, 1)
	assert.Equal(t, domain.JobStatusFailed, samples[0].Status)
	assert.Equal(t, "upstream rejected the design", samples[0].Error)
	require.Len(t, metrics.GetRecent("jobs.failed", 0), 1)

	// Ordinary failures do not raise alerts.
	assert.Empty(t, alerts.GetRecent(0))
}

func TestRecorderEngineFailureRaisesAlert(t *testing.T) {
	metrics := NewMetricsCollector(100)
	alerts := NewAlertManager(Thresholds{}, 10, testLogger())
	r := NewRecorder(metrics, alerts, 10)

	job := newRecordedJob(t, 1)
	r.JobFailed(job, fmt.Errorf("%w: gpu reset", domain.ErrEngineFailure))

	raised := alerts.GetRecent(0)
	require.Len(t, raised, 1)
	assert.Equal(t, SeverityWarning, raised[0].Severity)
	assert.Equal(t, job.ID.String(), raised[0].Context["job_id"])
}

func TestRecorderJobRetrying(t *testing.T) {
	metrics := NewMetricsCollector(100)
	alerts := NewAlertManager(Thresholds{}, 10, testLogger())
	r := NewRecorder(metrics, alerts, 10)

	job := newRecordedJob(t, 2)
	r.JobRetrying(job, errors.New("transient"))

	samples := r.RecentJobs(0)
	require.Len(t, samples, 1)
	assert.Equal(t, domain.JobStatusRetrying, samples[0].Status)
	require.Len(t, metrics.GetRecent("jobs.retries", 0), 1)
}

func TestRecorderRetentionAndLimit(t *testing.T) {
	metrics := NewMetricsCollector(100)
	alerts := NewAlertManager(Thresholds{}, 10, testLogger())
	r := NewRecorder(metrics, alerts, 3)

	var last *domain.Job
	for i := 0; i < 5; i++ {
		last = newRecordedJob(t, i)
		r.JobCompleted(last, &domain.JobResult{JobID: last.ID, Success: true})
	}

	kept := r.RecentJobs(0)
	require.Len(t, kept, 3)
	assert.Equal(t, last.ID, kept[2].JobID)

	limited := r.RecentJobs(1)
	require.Len(t, limited, 1)
	assert.Equal(t, last.ID, limited[0].JobID)
}

func TestRecorderJobsSince(t *testing.T) {
	metrics := NewMetricsCollector(100)
	alerts := NewAlertManager(Thresholds{}, 10, testLogger())
	r := NewRecorder(metrics, alerts, 10)

	r.JobCompleted(newRecordedJob(t, 1), &domain.JobResult{Success: true})
	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now().UTC()
	r.JobFailed(newRecordedJob(t, 1), errors.New("late failure"))

	since := r.JobsSince(cutoff)
	require.Len(t, since, 1)
	assert.Equal(t, domain.JobStatusFailed, since[0].Status)
}
