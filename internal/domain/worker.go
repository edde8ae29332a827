package domain

import "time"

// WorkerStatus represents the lifecycle state of a pool worker.
type WorkerStatus string

// Possible worker status values
const (
	WorkerStatusStarting WorkerStatus = "starting"
	WorkerStatusRunning  WorkerStatus = "running"
	WorkerStatusStopping WorkerStatus = "stopping"
	WorkerStatusStopped  WorkerStatus = "stopped"
	WorkerStatusError    WorkerStatus = "error"
)

// WorkerInfo is a point-in-time snapshot of one pool slot. Exactly one
// WorkerInfo exists per slot index.
type WorkerInfo struct {
	ID        string       `json:"id"`
	Index     int          `json:"index"`
	Status    WorkerStatus `json:"status"`
	Restarts  int          `json:"restarts"`
	StartedAt time.Time    `json:"started_at"`
	LastError string       `json:"last_error,omitempty"`
}
