package domain

import (
	"errors"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

var (
	// ErrJobNotFound covers both absent jobs and jobs owned by another
	// requester; callers cannot tell the two apart.
	ErrJobNotFound = errors.New("job not found")

	// ErrRetryExhausted means the job already spent its retry budget.
	ErrRetryExhausted = errors.New("retry budget exhausted")
)
