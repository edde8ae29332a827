package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImageAsset is a generated design image produced while running a job.
type ImageAsset struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"job_id"`
	URL       string    `json:"url"`
	Prompt    string    `json:"prompt,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is an item published to an e-commerce platform for a job.
type Product struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	ProductType string    `json:"product_type"`
	Platform    string    `json:"platform"`
	ExternalID  string    `json:"external_id,omitempty"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
}

// JobLog is a single persisted log line attached to a job.
type JobLog struct {
	ID        int64     `json:"id"`
	JobID     uuid.UUID `json:"job_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
