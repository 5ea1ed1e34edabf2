package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrSceneNotFound is returned when a scene cannot be found in the database
	ErrSceneNotFound = errors.New("scene not found")

	// ErrWorkflowNotFound is returned when a workflow cannot be found in the database
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrSettingNotFound is returned when a settings key has never been written
	ErrSettingNotFound = errors.New("setting not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that's already claimed
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in pending status")

	// ErrInvalidPayload is returned when job data JSON is malformed or incomplete
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrInvalidStatus is returned for a status outside the job lifecycle
	ErrInvalidStatus = errors.New("invalid job status")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
