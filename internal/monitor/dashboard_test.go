package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staticwaves/podforge/internal/domain"
)

func newDashboardProvider(t *testing.T) (*DashboardProvider, *Recorder, *AlertManager, *MetricsCollector) {
	t.Helper()
	metrics := NewMetricsCollector(1000)
	alerts := NewAlertManager(Thresholds{}, 100, testLogger())
	recorder := NewRecorder(metrics, alerts, 100)
	return NewDashboardProvider(recorder, alerts, metrics), recorder, alerts, metrics
}

func TestDashboardSnapshotEmpty(t *testing.T) {
	p, _, _, _ := newDashboardProvider(t)

	data := p.Snapshot(0)
	assert.Equal(t, 24, data.WindowHours, "non-positive window defaults to 24 hours")
	assert.Equal(t, 0, data.TotalJobs)
	assert.Zero(t, data.SuccessRate)
	assert.Empty(t, data.RecentJobs)
	assert.Empty(t, data.RecentAlerts)
	assert.Empty(t, data.RecentMetrics)
	assert.Empty(t, data.StageHistograms)
}

func TestDashboardSnapshotAggregates(t *testing.T) {
	p, recorder, alerts, _ := newDashboardProvider(t)

	for i := 0; i < 3; i++ {
		job := newRecordedJob(t, i)
		recorder.JobCompleted(job, &domain.JobResult{JobID: job.ID, Success: true, Duration: 2 * time.Second})
	}
	recorder.JobFailed(newRecordedJob(t, 0), errors.New("print provider rejected"))
	alerts.Raise(SeverityWarning, "backlog", nil)

	data := p.Snapshot(1)
	assert.Equal(t, 1, data.WindowHours)
	assert.Equal(t, 4, data.TotalJobs)
	assert.Equal(t, 3, data.CompletedJobs)
	assert.Equal(t, 1, data.FailedJobs)
	assert.Equal(t, 0.75, data.SuccessRate)
	assert.Equal(t, 2000.0, data.AvgProcessingMs)
	assert.Len(t, data.RecentJobs, 4)
	require.Len(t, data.RecentAlerts, 1)

	// Counter series recorded by the recorder show up in the window.
	assert.Contains(t, data.RecentMetrics, "jobs.completed")
	assert.Contains(t, data.RecentMetrics, "jobs.failed")
}

func TestDashboardSnapshotExcludesOldSamples(t *testing.T) {
	p, _, _, metrics := newDashboardProvider(t)

	old := time.Now().UTC().Add(-3 * time.Hour)
	metrics.RecordAt("stage.generate", 50, nil, old)
	metrics.RecordAt("stage.generate", 80, nil, time.Now().UTC())

	data := p.Snapshot(1)
	require.Len(t, data.RecentMetrics["stage.generate"], 1)
	assert.Equal(t, 80.0, data.RecentMetrics["stage.generate"][0].Value)
}

func TestDashboardStageHistograms(t *testing.T) {
	p, _, _, metrics := newDashboardProvider(t)

	now := time.Now().UTC()
	for i := 1; i <= 100; i++ {
		metrics.RecordAt("stage.publish", float64(i), nil, now)
	}
	metrics.RecordAt("pool.queued", 7, nil, now)

	data := p.Snapshot(1)
	require.Contains(t, data.StageHistograms, "publish")
	h := data.StageHistograms["publish"]
	assert.Equal(t, 100, h.Count)
	assert.Equal(t, 1.0, h.Min)
	assert.Equal(t, 100.0, h.Max)
	assert.Equal(t, 50.5, h.Avg)
	assert.Equal(t, 51.0, h.P50)
	assert.Equal(t, 96.0, h.P95)
	assert.Equal(t, 100.0, h.P99)

	// Only stage-prefixed series become histograms.
	assert.NotContains(t, data.StageHistograms, "pool.queued")
	assert.Contains(t, data.RecentMetrics, "pool.queued")
}
