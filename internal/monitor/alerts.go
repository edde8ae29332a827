package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/staticwaves/podforge/internal/domain"
	"github.com/staticwaves/podforge/internal/worker"
)

// Severity classifies an alert.
type Severity string

// Alert severities, in increasing order of urgency.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is an append-only record of a threshold trigger.
type Alert struct {
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// Thresholds configures when the AlertManager raises alerts.
type Thresholds struct {
	// FailureRate raises a warning when failed/(completed+failed)
	// exceeds this fraction. Zero disables the rule.
	FailureRate float64

	// MinRunningWorkers raises a critical alert when fewer workers are
	// running. Defaults to 1.
	MinRunningWorkers int
}

// AlertManager evaluates thresholds and appends Alerts to a bounded
// ring buffer. It is safe for concurrent use.
type AlertManager struct {
	thresholds Thresholds
	logger     *slog.Logger

	mu   sync.Mutex
	ring []Alert
	size int

	// Transition tracking so persistent conditions alert once.
	lowWorkers  bool
	highFailure bool
}

// NewAlertManager creates an AlertManager retaining at most size alerts.
func NewAlertManager(thresholds Thresholds, size int, logger *slog.Logger) *AlertManager {
	if size <= 0 {
		size = 100
	}
	if thresholds.MinRunningWorkers <= 0 {
		thresholds.MinRunningWorkers = 1
	}
	return &AlertManager{
		thresholds: thresholds,
		logger:     logger,
		size:       size,
	}
}

// Raise appends an alert and logs it.
func (m *AlertManager) Raise(severity Severity, message string, ctx map[string]any) {
	alert := Alert{
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Context:   ctx,
	}

	m.mu.Lock()
	m.ring = append(m.ring, alert)
	if len(m.ring) > m.size {
		m.ring = m.ring[len(m.ring)-m.size:]
	}
	m.mu.Unlock()

	level := slog.LevelInfo
	switch severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityCritical:
		level = slog.LevelError
	}
	m.logger.Log(context.Background(), level, "alert raised",
		"severity", severity,
		"message", message)
}

// GetRecent returns the most recent limit alerts in chronological
// order. A non-positive limit returns everything retained.
func (m *AlertManager) GetRecent(limit int) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	ring := m.ring
	if limit > 0 && len(ring) > limit {
		ring = ring[len(ring)-limit:]
	}
	out := make([]Alert, len(ring))
	copy(out, ring)
	return out
}

// Since returns all retained alerts raised at or after the cutoff.
func (m *AlertManager) Since(cutoff time.Time) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := 0
	for i < len(m.ring) && m.ring[i].Timestamp.Before(cutoff) {
		i++
	}
	out := make([]Alert, len(m.ring)-i)
	copy(out, m.ring[i:])
	return out
}

// EvaluatePool applies the configured thresholds to a pool snapshot.
// Each rule alerts on the transition into the bad state, not on every
// evaluation while it persists.
func (m *AlertManager) EvaluatePool(stats worker.PoolStats, workers []domain.WorkerInfo) {
	running := 0
	errored := 0
	for _, w := range workers {
		switch w.Status {
		case domain.WorkerStatusRunning:
			running++
		case domain.WorkerStatusError:
			errored++
		}
	}

	m.mu.Lock()
	lowWorkers := running < m.thresholds.MinRunningWorkers
	lowTransition := lowWorkers && !m.lowWorkers
	m.lowWorkers = lowWorkers

	var failureRate float64
	finished := stats.Completed + stats.Failed
	if finished > 0 {
		failureRate = float64(stats.Failed) / float64(finished)
	}
	highFailure := m.thresholds.FailureRate > 0 && failureRate > m.thresholds.FailureRate
	failureTransition := highFailure && !m.highFailure
	m.highFailure = highFailure
	m.mu.Unlock()

	if lowTransition {
		m.Raise(SeverityCritical, "running worker count below minimum", map[string]any{
			"running":     running,
			"minimum":     m.thresholds.MinRunningWorkers,
			"errored":     errored,
			"total_slots": len(workers),
		})
	}
	if failureTransition {
		m.Raise(SeverityWarning, "job failure rate above threshold", map[string]any{
			"failure_rate": failureRate,
			"threshold":    m.thresholds.FailureRate,
			"failed":       stats.Failed,
			"completed":    stats.Completed,
		})
	}
}

// WorkerCrashed records an engine runtime failure for a worker.
func (m *AlertManager) WorkerCrashed(workerID string, err error) {
	m.Raise(SeverityWarning, "worker engine crashed", map[string]any{
		"worker_id": workerID,
		"error":     err.Error(),
	})
}
