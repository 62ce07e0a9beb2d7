package model

import "time"

type Job struct {
	JobID        string     `db:"job_id"`
	RequesterID  string     `db:"requester_id"`
	ServiceType  string     `db:"service_type"`
	Payload      string     `db:"payload"`
	Priority     int        `db:"priority"`
	Status       string     `db:"status"`
	WorkerID     *string    `db:"worker_id"`
	RetryCount   int        `db:"retry_count"`
	MaxRetries   int        `db:"max_retries"`
	Result       *string    `db:"result"`
	ErrorMessage *string    `db:"error_message"`
	StartedAt    *time.Time `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}
