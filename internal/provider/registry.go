package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Mhixter/arapointx-sub002/internal/browser"
	"github.com/Mhixter/arapointx-sub002/internal/worker/domain"
)

// Registry selects and runs the strategy for a claimed job. It implements
// the runner the dispatch loop hands each job to.
type Registry struct {
	strategies map[string]Strategy
	targets    TargetSource
	logger     *slog.Logger
}

// NewRegistry builds a registry over the given strategies
func NewRegistry(targets TargetSource, logger *slog.Logger, strategies ...Strategy) *Registry {
	byType := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		byType[s.ServiceType()] = s
	}
	return &Registry{
		strategies: byType,
		targets:    targets,
		logger:     logger,
	}
}

// DefaultStrategies returns the full strategy set for the known service types
func DefaultStrategies() []Strategy {
	return []Strategy{
		&BVNStrategy{},
		&NINStrategy{},
		&JAMBStrategy{},
		&WAECStrategy{},
	}
}

// Run executes the job's provider automation on a page opened from the
// leased session and returns the serialized result. Portal-level failures
// come back wrapped as automation errors so the retry supervisor treats
// them as transient; misconfiguration (unknown service, missing or disabled
// target, bad payload) comes back bare and fails the job without retries.
func (r *Registry) Run(ctx context.Context, sess *browser.Session, job *domain.Job) (string, error) {
	strategy, ok := r.strategies[job.ServiceType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownService, job.ServiceType)
	}

	target, err := r.targets.Target(ctx, job.ServiceType)
	if errors.Is(err, ErrTargetNotFound) {
		return "", fmt.Errorf("no portal configured for %s: %w", job.ServiceType, err)
	}
	if err != nil {
		// A target load miss is a store hiccup, not a misconfiguration;
		// wrap it as transient so the job gets retried.
		return "", domain.NewAutomationError(fmt.Errorf("failed to load target for %s: %w", job.ServiceType, err))
	}
	if !target.Enabled {
		return "", fmt.Errorf("%w: %s", ErrTargetDisabled, job.ServiceType)
	}

	payload, err := decodePayload(job.Payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	page, err := sess.Page(ctx)
	if err != nil {
		return "", domain.NewAutomationError(err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Warn("Failed to close page",
				slog.String("job_id", job.JobID),
				slog.Any("error", err),
			)
		}
	}()

	r.logger.Info("Running provider automation",
		slog.String("job_id", job.JobID),
		slog.String("service_type", job.ServiceType),
		slog.String("portal_url", target.PortalURL),
	)

	result, err := strategy.Run(ctx, page, target, payload)
	if err != nil {
		return "", domain.NewAutomationError(err)
	}

	return result.JSON()
}
