package domain

import "time"

// Job statuses. A job only ever moves pending -> processing -> completed or
// failed, with failed-with-retries-remaining re-entering pending.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Service types dispatched through the automation pipeline
const (
	ServiceBVNRetrieval = "bvn_retrieval"
	ServiceNINLookup    = "nin_lookup"
	ServiceJAMBScore    = "jamb_score"
	ServiceWAECResult   = "waec_result"
)

// KnownServiceType reports whether t is a dispatchable service type.
func KnownServiceType(t string) bool {
	switch t {
	case ServiceBVNRetrieval, ServiceNINLookup, ServiceJAMBScore, ServiceWAECResult:
		return true
	}
	return false
}

// Job is a verification job claimed from the queue for automation
type Job struct {
	JobID       string
	RequesterID string
	ServiceType string
	Payload     string // JSON object with the provider query fields
	Priority    int
	Status      string
	WorkerID    string
	RetryCount  int
	MaxRetries  int
	CreatedAt   time.Time
	StartedAt   *time.Time
}
