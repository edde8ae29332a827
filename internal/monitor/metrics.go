package monitor

import (
	"sync"
	"time"
)

// Metric is a single named numeric observation.
type Metric struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// MetricsCollector records named numeric observations with bounded
// per-series retention. It is safe for concurrent use.
type MetricsCollector struct {
	mu        sync.Mutex
	series    map[string][]Metric
	retention int
}

// NewMetricsCollector creates a collector keeping at most retention
// samples per metric name.
func NewMetricsCollector(retention int) *MetricsCollector {
	if retention <= 0 {
		retention = 1000
	}
	return &MetricsCollector{
		series:    make(map[string][]Metric),
		retention: retention,
	}
}

// Record appends an observation stamped with the current time.
func (c *MetricsCollector) Record(name string, value float64, labels map[string]string) {
	c.RecordAt(name, value, labels, time.Now().UTC())
}

// RecordAt appends an observation with an explicit timestamp.
func (c *MetricsCollector) RecordAt(name string, value float64, labels map[string]string, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := append(c.series[name], Metric{
		Name:      name,
		Value:     value,
		Labels:    labels,
		Timestamp: ts,
	})
	if len(s) > c.retention {
		s = s[len(s)-c.retention:]
	}
	c.series[name] = s
}

// GetRecent returns the most recent limit observations for the given
// name in chronological order. A non-positive limit returns everything
// retained.
func (c *MetricsCollector) GetRecent(name string, limit int) []Metric {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.series[name]
	if limit > 0 && len(s) > limit {
		s = s[len(s)-limit:]
	}
	out := make([]Metric, len(s))
	copy(out, s)
	return out
}

// Since returns all retained observations for name recorded at or
// after the cutoff.
func (c *MetricsCollector) Since(name string, cutoff time.Time) []Metric {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.series[name]
	i := 0
	for i < len(s) && s[i].Timestamp.Before(cutoff) {
		i++
	}
	out := make([]Metric, len(s)-i)
	copy(out, s[i:])
	return out
}

// Names returns the metric names with retained samples.
func (c *MetricsCollector) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.series))
	for name := range c.series {
		names = append(names, name)
	}
	return names
}
