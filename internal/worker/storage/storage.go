package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mhixter/arapointx-sub002/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all job-table operations for the dispatch workers
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimNext atomically claims the highest-priority pending job for workerID.
// The claim is the single conditional transition pending -> processing; with
// FOR UPDATE SKIP LOCKED two workers can never select the same row, so
// exactly one claimer wins each job.
func (s *Storage) ClaimNext(ctx context.Context, workerID string) (*domain.Job, error) {
	query := `
		WITH next AS (
			SELECT job_id FROM jobs
			WHERE status = $1
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE jobs j
		SET status = $2,
		    worker_id = $3,
		    started_at = NOW(),
		    updated_at = NOW()
		FROM next
		WHERE j.job_id = next.job_id
		RETURNING j.job_id, j.requester_id, j.service_type, j.payload,
		          j.priority, j.retry_count, j.max_retries, j.created_at
	`

	var job domain.Job
	err := s.db.QueryRowContext(ctx, query, domain.JobStatusPending, domain.JobStatusProcessing, workerID).Scan(
		&job.JobID,
		&job.RequesterID,
		&job.ServiceType,
		&job.Payload,
		&job.Priority,
		&job.RetryCount,
		&job.MaxRetries,
		&job.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoPendingJobs
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job.Status = domain.JobStatusProcessing
	job.WorkerID = workerID

	s.logger.Info("Job claimed",
		slog.String("job_id", job.JobID),
		slog.String("worker_id", workerID),
		slog.String("service_type", job.ServiceType),
		slog.Int("priority", job.Priority),
	)

	return &job, nil
}

// Defer returns a claimed job to pending untouched. Used when no browser
// session is available; the deferral does not count against the retry
// budget and the job re-enters the queue at its original position.
func (s *Storage) Defer(ctx context.Context, jobID, workerID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = NULL,
		    started_at = NULL,
		    updated_at = NOW()
		WHERE job_id = $2 AND status = $3 AND worker_id = $4
	`

	res, err := s.db.ExecContext(ctx, query, domain.JobStatusPending, jobID, domain.JobStatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("failed to defer job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		// Job was force-failed while we held the claim; nothing to undo
		s.logger.Warn("Defer skipped - job no longer held by this worker",
			slog.String("job_id", jobID),
			slog.String("worker_id", workerID),
		)
	}

	return nil
}

// Complete writes the automation result back and mirrors it into
// verification_results in the same transaction. The update is guarded by
// "still processing under this worker's claim" so a force-fail issued while
// the job was mid-flight is never overwritten by a late success. Returns
// false when the guard rejected the write.
func (s *Storage) Complete(ctx context.Context, jobID, workerID, result string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin completion: %w", err)
	}
	defer tx.Rollback()

	updateQuery := `
		UPDATE jobs
		SET status = $1,
		    result = $2,
		    error_message = NULL,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3 AND status = $4 AND worker_id = $5
		RETURNING requester_id, service_type
	`

	var mirror struct {
		RequesterID string `db:"requester_id"`
		ServiceType string `db:"service_type"`
	}
	err = tx.GetContext(ctx, &mirror, updateQuery, domain.JobStatusCompleted, result, jobID, domain.JobStatusProcessing, workerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to complete job: %w", err)
	}

	insertQuery := `
		INSERT INTO verification_results (job_id, requester_id, service_type, result)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO NOTHING
	`

	if _, err := tx.ExecContext(ctx, insertQuery, jobID, mirror.RequesterID, mirror.ServiceType, result); err != nil {
		return false, fmt.Errorf("failed to record verification result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit completion: %w", err)
	}

	s.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
	)

	return true, nil
}

// Requeue resets a job to pending after a failed attempt, consuming one
// retry. The budget guard lives in SQL so the invariant
// retry_count <= max_retries holds under concurrent supervisors; the status
// guard keeps a force-failed job from being resurrected by its in-flight
// worker. Returns false when the budget is spent or the claim is gone.
func (s *Storage) Requeue(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    retry_count = retry_count + 1,
		    worker_id = NULL,
		    started_at = NULL,
		    completed_at = NULL,
		    error_message = NULL,
		    updated_at = NOW()
		WHERE job_id = $2 AND status = $3 AND retry_count + 1 < max_retries
	`

	res, err := s.db.ExecContext(ctx, query, domain.JobStatusPending, jobID, domain.JobStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to requeue job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// ReclaimStale sweeps processing rows whose claim has outlived olderThan -
// the worker crashed or was killed before its write-back landed. A reclaimed
// attempt counts against the retry budget like any other failed attempt:
// jobs with budget left go back to pending, the rest are failed terminally.
func (s *Storage) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reclaim: %w", err)
	}
	defer tx.Rollback()

	requeueQuery := `
		UPDATE jobs
		SET status = $1,
		    retry_count = retry_count + 1,
		    worker_id = NULL,
		    started_at = NULL,
		    completed_at = NULL,
		    error_message = NULL,
		    updated_at = NOW()
		WHERE status = $2 AND started_at < $3 AND retry_count + 1 < max_retries
	`

	res, err := tx.ExecContext(ctx, requeueQuery, domain.JobStatusPending, domain.JobStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale jobs: %w", err)
	}
	requeued, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	// Whatever is still processing past the cutoff has no budget left
	failQuery := `
		UPDATE jobs
		SET status = $1,
		    retry_count = LEAST(retry_count + 1, max_retries),
		    error_message = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE status = $3 AND started_at < $4
	`

	res, err = tx.ExecContext(ctx, failQuery, domain.JobStatusFailed, "claim expired", domain.JobStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale jobs: %w", err)
	}
	failed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reclaim: %w", err)
	}

	if requeued+failed > 0 {
		s.logger.Warn("Reclaimed stale claims",
			slog.Int64("requeued", requeued),
			slog.Int64("failed", failed),
		)
	}

	return requeued + failed, nil
}

// MarkFailed records a terminal failure with its reason, counting the final
// attempt without ever pushing retry_count past max_retries. Guarded on the
// processing state so a force-fail reason written by an administrator is
// not replaced by the worker's own failure message.
func (s *Storage) MarkFailed(ctx context.Context, jobID, reason string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    retry_count = LEAST(retry_count + 1, max_retries),
		    error_message = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3 AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, reason, jobID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	s.logger.Warn("Job failed terminally",
		slog.String("job_id", jobID),
		slog.String("reason", reason),
	)

	return nil
}
