package handler

import "time"

// EstimateWait converts a queue position into a wait estimate assuming
// each job ahead takes the configured average service time.
func EstimateWait(queuePosition int, avgServiceTime time.Duration) time.Duration {
	if queuePosition <= 0 {
		return 0
	}
	return time.Duration(queuePosition) * avgServiceTime
}
