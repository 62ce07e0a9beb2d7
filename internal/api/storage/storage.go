package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Mhixter/arapointx-sub002/internal/api/domain"
	"github.com/Mhixter/arapointx-sub002/internal/api/model"
	"github.com/Mhixter/arapointx-sub002/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, requester_id, service_type, payload, priority,
			status, retry_count, max_retries, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.RequesterID,
		job.ServiceType,
		job.Payload,
		job.Priority,
		job.Status,
		job.RetryCount,
		job.MaxRetries,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// CountPending returns the pending-job count used as the queue-position
// hint at enqueue time. It is a snapshot; priorities submitted later can
// still overtake.
func (s *Storage) CountPending(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM jobs WHERE status = $1`

	if err := s.db.GetContext(ctx, &count, query, domain.JobStatusPending); err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}

	return count, nil
}

// GetJobForRequester loads a job scoped to its owner. A job owned by
// another requester is indistinguishable from an absent one.
func (s *Storage) GetJobForRequester(ctx context.Context, jobID, requesterID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT job_id, requester_id, service_type, payload, priority,
		       status, worker_id, retry_count, max_retries, result,
		       error_message, started_at, completed_at, created_at, updated_at
		FROM jobs
		WHERE job_id = $1 AND requester_id = $2
	`

	err := s.db.GetContext(ctx, &job, query, jobID, requesterID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	RequesterID string
	ServiceType string
	Status      string
	PageSize    int
	Cursor      *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `
        SELECT job_id, requester_id, service_type, payload, priority,
               status, worker_id, retry_count, max_retries, result,
               error_message, started_at, completed_at, created_at, updated_at
        FROM jobs
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.RequesterID != "" {
		query += fmt.Sprintf(" AND requester_id = $%d", argIdx)
		args = append(args, filter.RequesterID)
		argIdx++
	}

	if filter.ServiceType != "" {
		query += fmt.Sprintf(" AND service_type = $%d", argIdx)
		args = append(args, filter.ServiceType)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (s *Storage) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}

	query := `SELECT status, COUNT(*) AS count FROM jobs GROUP BY status`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

// ManualRetry re-enters a failed job into the queue under the same retry
// gate the supervisor uses. Returns ErrRetryExhausted once the budget is
// spent and ErrJobNotFound when the job does not exist.
func (s *Storage) ManualRetry(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    retry_count = retry_count + 1,
		    worker_id = NULL,
		    error_message = NULL,
		    started_at = NULL,
		    completed_at = NULL,
		    updated_at = $2
		WHERE job_id = $3 AND status = $4 AND retry_count < max_retries
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusPending, time.Now(), jobID, domain.JobStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to retry job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var status string
	err = s.db.GetContext(ctx, &status, `SELECT status FROM jobs WHERE job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check job: %w", err)
	}

	if status != domain.JobStatusFailed {
		return fmt.Errorf("job %s is %s, only failed jobs can be retried", jobID, status)
	}
	return domain.ErrRetryExhausted
}

// ForceFail administratively terminates a pending or processing job. A
// worker mid-flight on it will find its conditional write-back affects
// zero rows and drop the result.
func (s *Storage) ForceFail(ctx context.Context, jobID, reason string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = $2,
		    completed_at = $3,
		    updated_at = $3
		WHERE job_id = $4 AND status IN ($5, $6)
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed, reason, time.Now(), jobID,
		domain.JobStatusPending, domain.JobStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to force-fail job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	err = s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM jobs WHERE job_id = $1)`, jobID)
	if err != nil {
		return fmt.Errorf("failed to check job: %w", err)
	}
	if !exists {
		return domain.ErrJobNotFound
	}
	return fmt.Errorf("job %s is already terminal", jobID)
}
