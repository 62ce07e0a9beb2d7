package dto

type EnqueueJobRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
	ServiceType string `json:"service_type" binding:"required"`
	Payload     string `json:"payload" binding:"required"`
	Priority    int    `json:"priority"`
}

type EnqueueJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	// QueuePosition is the pending-job count at enqueue time. It is a UX
	// hint, not a priority-aware promise.
	QueuePosition        int `json:"queue_position"`
	EstimatedWaitSeconds int `json:"estimated_wait_seconds"`
}

type JobView struct {
	JobID        string `json:"job_id"`
	RequesterID  string `json:"requester_id"`
	ServiceType  string `json:"service_type"`
	Priority     int    `json:"priority"`
	Status       string `json:"status"`
	RetryCount   int    `json:"retry_count"`
	MaxRetries   int    `json:"max_retries"`
	Result       string `json:"result,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

type ListJobsRequest struct {
	RequesterID string `form:"requester_id"`
	ServiceType string `form:"service_type"`
	Status      string `form:"status"`
	PageSize    int    `form:"page_size"`
	Cursor      string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobView `json:"jobs"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type JobStatsResponse struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
