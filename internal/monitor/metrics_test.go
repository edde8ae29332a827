package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollectorRecordAndGetRecent(t *testing.T) {
	c := NewMetricsCollector(10)

	c.Record("jobs.completed", 1, nil)
	c.Record("jobs.completed", 1, map[string]string{"worker": "w1"})
	c.Record("jobs.failed", 1, nil)

	recent := c.GetRecent("jobs.completed", 10)
	require.Len(t, recent, 2)
	assert.Equal(t, "jobs.completed", recent[0].Name)
	assert.False(t, recent[0].Timestamp.IsZero())
	assert.Equal(t, map[string]string{"worker": "w1"}, recent[1].Labels)

	assert.Empty(t, c.GetRecent("unknown.metric", 10))
	assert.ElementsMatch(t, []string{"jobs.completed", "jobs.failed"}, c.Names())
}

func TestMetricsCollectorLimit(t *testing.T) {
	c := NewMetricsCollector(100)
	for i := 0; i < 5; i++ {
		c.Record("queue.depth", float64(i), nil)
	}

	limited := c.GetRecent("queue.depth", 2)
	require.Len(t, limited, 2)
	assert.Equal(t, 3.0, limited[0].Value)
	assert.Equal(t, 4.0, limited[1].Value)

	// Non-positive limit returns everything retained.
	assert.Len(t, c.GetRecent("queue.depth", 0), 5)
	assert.Len(t, c.GetRecent("queue.depth", -1), 5)
}

func TestMetricsCollectorRetention(t *testing.T) {
	c := NewMetricsCollector(3)
	for i := 0; i < 6; i++ {
		c.Record("queue.depth", float64(i), nil)
	}

	kept := c.GetRecent("queue.depth", 0)
	require.Len(t, kept, 3)
	assert.Equal(t, 3.0, kept[0].Value)
	assert.Equal(t, 5.0, kept[2].Value)
}

func TestMetricsCollectorSince(t *testing.T) {
	c := NewMetricsCollector(100)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.RecordAt("stage.generate", 100, nil, base)
	c.RecordAt("stage.generate", 200, nil, base.Add(time.Minute))
	c.RecordAt("stage.generate", 300, nil, base.Add(2*time.Minute))

	since := c.Since("stage.generate", base.Add(time.Minute))
	require.Len(t, since, 2)
	assert.Equal(t, 200.0, since[0].Value)
	assert.Equal(t, 300.0, since[1].Value)

	assert.Empty(t, c.Since("stage.generate", base.Add(time.Hour)))
	assert.Len(t, c.Since("stage.generate", base.Add(-time.Hour)), 3)
}
