package engine

import "errors"

// Common errors returned by the engine package
var (
	// ErrGenerationFailed is returned when design generation fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate design image")

	// ErrPublishFailed is returned when publishing a product to the platform fails
	ErrPublishFailed = errors.New("failed to publish product")

	// ErrInvalidRequest is returned when the job payload cannot be parsed or validated
	ErrInvalidRequest = errors.New("invalid job request payload")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during job execution")
)
