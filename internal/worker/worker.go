package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mhixter/arapointx-sub002/internal/browser"
	"github.com/Mhixter/arapointx-sub002/internal/worker/domain"
)

// JobStore is the durable queue the dispatch loops claim from
type JobStore interface {
	ClaimNext(ctx context.Context, workerID string) (*domain.Job, error)
	Defer(ctx context.Context, jobID, workerID string) error
	Complete(ctx context.Context, jobID, workerID, result string) (bool, error)
	Requeue(ctx context.Context, jobID string) (bool, error)
	MarkFailed(ctx context.Context, jobID, reason string) error
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SessionPool leases browser sessions to dispatch loops
type SessionPool interface {
	Acquire(ctx context.Context) (*browser.Session, error)
	Release(s *browser.Session)
}

// Runner executes a claimed job's provider automation on a leased session
type Runner interface {
	Run(ctx context.Context, sess *browser.Session, job *domain.Job) (string, error)
}

// Config holds worker configuration
type Config struct {
	Logger          *slog.Logger
	Store           JobStore
	Pool            SessionPool
	Runner          Runner
	Wake            <-chan struct{}
	Concurrency     int
	PollInterval    time.Duration
	JobTimeout      time.Duration
	ReclaimInterval time.Duration
	StaleAfter      time.Duration
}

// Worker runs the dispatch loops that drain the job queue
type Worker struct {
	logger          *slog.Logger
	store           JobStore
	pool            SessionPool
	runner          Runner
	retry           *RetrySupervisor
	wake            <-chan struct{}
	concurrency     int
	pollInterval    time.Duration
	jobTimeout      time.Duration
	reclaimInterval time.Duration
	staleAfter      time.Duration
	workerID        string
	wg              sync.WaitGroup
	stopChan        chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:          cfg.Logger,
		store:           cfg.Store,
		pool:            cfg.Pool,
		runner:          cfg.Runner,
		retry:           NewRetrySupervisor(cfg.Store, cfg.Logger),
		wake:            cfg.Wake,
		concurrency:     cfg.Concurrency,
		pollInterval:    cfg.PollInterval,
		jobTimeout:      cfg.JobTimeout,
		reclaimInterval: cfg.ReclaimInterval,
		staleAfter:      cfg.StaleAfter,
		workerID:        uuid.New().String()[:8],
		stopChan:        make(chan struct{}),
	}
}

// Start spawns the dispatch loops and blocks until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("poll_interval", w.pollInterval),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.dispatchLoop(ctx, fmt.Sprintf("%s-%d", w.workerID, i))
	}

	if w.reclaimInterval > 0 {
		w.wg.Add(1)
		go w.reclaimLoop(ctx)
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker, waiting for in-flight jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
