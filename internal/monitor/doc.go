// Package monitor provides the observability layer of the job system:
// a MetricsCollector for bounded-retention numeric series, an
// AlertManager raising threshold alerts into a ring buffer, a Recorder
// bridging queue lifecycle events into both, and a DashboardProvider
// aggregating a trailing time window into dashboard data.
package monitor
