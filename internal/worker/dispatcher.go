package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Mhixter/arapointx-sub002/internal/browser"
	"github.com/Mhixter/arapointx-sub002/internal/worker/domain"
)

// writeBackTimeout bounds store writes that outlive the loop context, so a
// shutdown mid-job still lands its result or retry before the process exits.
const writeBackTimeout = 10 * time.Second

// writeCtx returns a context for store write-backs that survives loop
// cancellation. Without it, a job interrupted by shutdown would be stranded
// in processing with no path back to the queue.
func writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
}

// dispatchLoop polls the queue on a fixed cadence and drains it whenever
// work or a wake nudge arrives. It never busy-loops: an empty queue parks
// the loop on the ticker.
func (w *Worker) dispatchLoop(ctx context.Context, workerName string) {
	defer w.wg.Done()

	w.logger.Info("Dispatch loop started",
		slog.String("worker_name", workerName),
	)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// wake goes nil once the nudge channel closes; selecting on a nil
	// channel blocks, leaving the ticker as the only trigger
	wake := w.wake

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Dispatch loop stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Dispatch loop stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case <-ticker.C:
			w.drain(ctx, workerName)

		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			w.drain(ctx, workerName)
		}
	}
}

// drain claims and runs jobs until the queue is empty or dispatch stalls
// (pool exhausted, store error, shutdown)
func (w *Worker) drain(ctx context.Context, workerName string) {
	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		progressed := w.dispatchOnce(ctx, workerName)
		if !progressed {
			return
		}
	}
}

// dispatchOnce claims at most one job and runs it end to end. Returns false
// when the loop should go back to sleep.
func (w *Worker) dispatchOnce(ctx context.Context, workerName string) bool {
	job, err := w.store.ClaimNext(ctx, workerName)
	if err != nil {
		if errors.Is(err, domain.ErrNoPendingJobs) {
			return false
		}
		w.logger.Error("Failed to claim job",
			slog.String("worker_name", workerName),
			slog.Any("error", err),
		)
		return false
	}

	sess, err := w.pool.Acquire(ctx)
	if err != nil {
		// No session within the acquire timeout. The job goes back to
		// pending untouched - deferral is not a failure and never counts
		// against the retry budget.
		deferCtx, cancel := writeCtx(ctx)
		defer cancel()
		if deferErr := w.store.Defer(deferCtx, job.JobID, workerName); deferErr != nil {
			w.logger.Error("Failed to defer job",
				slog.String("job_id", job.JobID),
				slog.Any("error", deferErr),
			)
		}
		if !errors.Is(err, browser.ErrPoolExhausted) {
			w.logger.Error("Failed to acquire browser session",
				slog.String("worker_name", workerName),
				slog.Any("error", err),
			)
		} else {
			w.logger.Debug("Session pool exhausted, job deferred",
				slog.String("job_id", job.JobID),
			)
		}
		return false
	}

	w.runJob(ctx, workerName, job, sess)
	return true
}

// runJob executes the provider automation for a claimed job with the leased
// session, releasing the lease on every exit path
func (w *Worker) runJob(ctx context.Context, workerName string, job *domain.Job, sess *browser.Session) {
	defer w.pool.Release(sess)

	w.logger.Info("Processing job",
		slog.String("worker_name", workerName),
		slog.String("job_id", job.JobID),
		slog.String("service_type", job.ServiceType),
		slog.String("session_id", sess.ID()),
	)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	result, runErr := w.runner.Run(jobCtx, sess, job)

	// jobCtx may already be past its deadline, and the loop context dies on
	// shutdown; write-backs get a detached context so an interrupted job is
	// never stranded in processing.
	storeCtx, cancelStore := writeCtx(ctx)
	defer cancelStore()

	if runErr != nil {
		if !domain.IsAutomationError(runErr) {
			// Not a portal failure: unknown service type, disabled or
			// missing target, bad payload. Retrying cannot fix it and the
			// session is still healthy.
			w.logger.Warn("Job failed permanently",
				slog.String("worker_name", workerName),
				slog.String("job_id", job.JobID),
				slog.Any("error", runErr),
			)
			if err := w.store.MarkFailed(storeCtx, job.JobID, runErr.Error()); err != nil {
				w.logger.Error("Failed to finalize job",
					slog.String("job_id", job.JobID),
					slog.Any("error", err),
				)
			}
			return
		}

		// A failed or timed-out automation leaves the session in an unknown
		// state; discard it rather than handing its cookies to the next job.
		sess.MarkBroken()

		w.logger.Warn("Job automation failed",
			slog.String("worker_name", workerName),
			slog.String("job_id", job.JobID),
			slog.Any("error", runErr),
		)

		w.retry.OnFailure(storeCtx, job, runErr)
		return
	}

	written, err := w.store.Complete(storeCtx, job.JobID, workerName, result)
	if err != nil {
		w.logger.Error("Failed to write job result",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
		return
	}

	if !written {
		// The job was force-failed while we were mid-flight. The late
		// success loses and the result is dropped.
		w.logger.Warn("Job result dropped - claim no longer held",
			slog.String("job_id", job.JobID),
			slog.String("worker_name", workerName),
		)
		return
	}

	w.logger.Info("Job completed successfully",
		slog.String("worker_name", workerName),
		slog.String("job_id", job.JobID),
	)
}
