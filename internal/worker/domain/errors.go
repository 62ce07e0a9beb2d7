package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrNoPendingJobs is returned by a claim attempt when the queue is empty
	ErrNoPendingJobs = errors.New("no pending jobs")

	// ErrRetryExhausted is returned when a retry is requested for a job
	// that has already spent its retry budget
	ErrRetryExhausted = errors.New("retry budget exhausted")

	// ErrInvalidPayload is returned when the job payload JSON is malformed
	ErrInvalidPayload = errors.New("invalid job payload")
)

// AutomationError wraps a transient scraping failure (navigation error,
// extraction mismatch, timeout, crashed session). It is absorbed by the
// retry supervisor while the retry budget lasts.
type AutomationError struct {
	Err error
}

func (e *AutomationError) Error() string {
	return "automation failure: " + e.Err.Error()
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

// NewAutomationError wraps err as a retryable automation failure
func NewAutomationError(err error) error {
	return &AutomationError{Err: err}
}

// IsAutomationError reports whether err is (or wraps) an automation failure
func IsAutomationError(err error) bool {
	var ae *AutomationError
	return errors.As(err, &ae)
}
