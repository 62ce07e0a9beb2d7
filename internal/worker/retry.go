package worker

import (
	"context"
	"log/slog"

	"github.com/Mhixter/arapointx-sub002/internal/worker/domain"
)

// RetrySupervisor decides requeue versus terminal failure after a worker
// reports a failed automation attempt. Pool exhaustion never reaches it -
// deferral is handled entirely inside the dispatch loop.
type RetrySupervisor struct {
	store  JobStore
	logger *slog.Logger
}

// NewRetrySupervisor creates a retry supervisor over the job store
func NewRetrySupervisor(store JobStore, logger *slog.Logger) *RetrySupervisor {
	return &RetrySupervisor{
		store:  store,
		logger: logger,
	}
}

// OnFailure consumes one retry when budget remains, otherwise finalizes the
// job as failed. The budget check is a conditional update in the store, so
// the decision is race-free even with several supervisors running.
func (r *RetrySupervisor) OnFailure(ctx context.Context, job *domain.Job, reason error) {
	requeued, err := r.store.Requeue(ctx, job.JobID)
	if err != nil {
		r.logger.Error("Failed to requeue job",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
		return
	}

	if requeued {
		r.logger.Info("Job requeued for retry",
			slog.String("job_id", job.JobID),
			slog.Int("retry_count", job.RetryCount+1),
			slog.Int("max_retries", job.MaxRetries),
			slog.String("reason", reason.Error()),
		)
		return
	}

	if err := r.store.MarkFailed(ctx, job.JobID, reason.Error()); err != nil {
		r.logger.Error("Failed to finalize job",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
		return
	}

	r.logger.Warn("Job failed terminally - retry budget exhausted",
		slog.String("job_id", job.JobID),
		slog.Int("retry_count", job.RetryCount),
		slog.Int("max_retries", job.MaxRetries),
		slog.String("reason", reason.Error()),
	)
}
