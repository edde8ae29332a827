// Package queue implements the in-memory priority job queue that sits
// at the core of the job-processing system. A PriorityBuffer orders
// jobs that have not yet been dispatched; a JobQueue owns the full job
// lifecycle, enforcing the concurrency ceiling, the per-job timeout,
// and fixed-delay retries, and broadcasting lifecycle events to
// registered observers.
package queue
