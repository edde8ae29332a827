package monitor

import (
	"sort"
	"strings"
	"time"

	"github.com/staticwaves/podforge/internal/domain"
)

// StageMetricPrefix namespaces the per-pipeline-stage duration metrics
// the dashboard turns into histograms. Engines record stage timings as
// "<prefix><stage>" (for example "stage.generate").
const StageMetricPrefix = "stage."

// Histogram summarizes the distribution of a duration series.
type Histogram struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// DashboardData aggregates the trailing time window for the dashboard
// endpoint.
type DashboardData struct {
	WindowHours     int                  `json:"window_hours"`
	TotalJobs       int                  `json:"total_jobs"`
	CompletedJobs   int                  `json:"completed_jobs"`
	FailedJobs      int                  `json:"failed_jobs"`
	SuccessRate     float64              `json:"success_rate"`
	AvgProcessingMs float64              `json:"avg_processing_ms"`
	RecentJobs      []JobSample          `json:"recent_jobs"`
	RecentAlerts    []Alert              `json:"recent_alerts"`
	RecentMetrics   map[string][]Metric  `json:"recent_metrics"`
	StageHistograms map[string]Histogram `json:"stage_histograms"`
}

// DashboardProvider aggregates recorder, alert, and metric state into
// a time-windowed dashboard view.
type DashboardProvider struct {
	recorder *Recorder
	alerts   *AlertManager
	metrics  *MetricsCollector
}

// NewDashboardProvider creates a provider over the shared monitoring
// state.
func NewDashboardProvider(recorder *Recorder, alerts *AlertManager, metrics *MetricsCollector) *DashboardProvider {
	return &DashboardProvider{
		recorder: recorder,
		alerts:   alerts,
		metrics:  metrics,
	}
}

// Snapshot aggregates the trailing window of hours into DashboardData.
func (p *DashboardProvider) Snapshot(hours int) DashboardData {
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	samples := p.recorder.JobsSince(cutoff)

	data := DashboardData{
		WindowHours:     hours,
		RecentJobs:      samples,
		RecentAlerts:    p.alerts.Since(cutoff),
		RecentMetrics:   make(map[string][]Metric),
		StageHistograms: make(map[string]Histogram),
	}

	var durationSum float64
	var durationCount int
	for _, s := range samples {
		switch s.Status {
		case domain.JobStatusCompleted:
			data.CompletedJobs++
			durationSum += float64(s.Duration.Milliseconds())
			durationCount++
		case domain.JobStatusFailed:
			data.FailedJobs++
		}
	}
	data.TotalJobs = data.CompletedJobs + data.FailedJobs
	if data.TotalJobs > 0 {
		data.SuccessRate = float64(data.CompletedJobs) / float64(data.TotalJobs)
	}
	if durationCount > 0 {
		data.AvgProcessingMs = durationSum / float64(durationCount)
	}

	for _, name := range p.metrics.Names() {
		series := p.metrics.Since(name, cutoff)
		if len(series) == 0 {
			continue
		}
		data.RecentMetrics[name] = series
		if stage, ok := strings.CutPrefix(name, StageMetricPrefix); ok {
			data.StageHistograms[stage] = buildHistogram(series)
		}
	}

	return data
}

// buildHistogram computes distribution statistics over a metric series.
func buildHistogram(series []Metric) Histogram {
	values := make([]float64, len(series))
	for i, m := range series {
		values[i] = m.Value
	}
	sort.Float64s(values)

	n := len(values)
	var sum float64
	for _, v := range values {
		sum += v
	}

	return Histogram{
		Count: n,
		Min:   values[0],
		Max:   values[n-1],
		Avg:   sum / float64(n),
		P50:   values[percentileIndex(n, 0.50)],
		P95:   values[percentileIndex(n, 0.95)],
		P99:   values[percentileIndex(n, 0.99)],
	}
}

func percentileIndex(n int, q float64) int {
	i := int(float64(n) * q)
	if i >= n {
		i = n - 1
	}
	return i
}
