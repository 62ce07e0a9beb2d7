package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhixter/arapointx-sub002/internal/worker/domain"
	"github.com/Mhixter/arapointx-sub002/shared/logger"
)

type staticSource struct {
	targets map[string]*Target
	calls   int
}

func (s *staticSource) Target(_ context.Context, serviceType string) (*Target, error) {
	s.calls++
	t, ok := s.targets[serviceType]
	if !ok {
		return nil, ErrTargetNotFound
	}
	return t, nil
}

func TestRegistry_UnknownServiceType(t *testing.T) {
	src := &staticSource{targets: map[string]*Target{}}
	reg := NewRegistry(src, logger.NewDefault().Logger, DefaultStrategies()...)

	job := &domain.Job{
		JobID:       "job-1",
		ServiceType: "voter_card_lookup",
	}

	_, err := reg.Run(context.Background(), nil, job)
	require.ErrorIs(t, err, ErrUnknownService)
	// The strategy lookup fails before any target or session work
	assert.Zero(t, src.calls)
}

func TestRegistry_TargetDisabled(t *testing.T) {
	src := &staticSource{targets: map[string]*Target{
		domain.ServiceBVNRetrieval: {
			ServiceType: domain.ServiceBVNRetrieval,
			PortalURL:   "https://portal.example/bvn",
			Enabled:     false,
		},
	}}
	reg := NewRegistry(src, logger.NewDefault().Logger, DefaultStrategies()...)

	job := &domain.Job{
		JobID:       "job-2",
		ServiceType: domain.ServiceBVNRetrieval,
	}

	_, err := reg.Run(context.Background(), nil, job)
	require.ErrorIs(t, err, ErrTargetDisabled)
}

func TestRegistry_TargetMissing(t *testing.T) {
	src := &staticSource{targets: map[string]*Target{}}
	reg := NewRegistry(src, logger.NewDefault().Logger, DefaultStrategies()...)

	job := &domain.Job{
		JobID:       "job-3",
		ServiceType: domain.ServiceWAECResult,
	}

	_, err := reg.Run(context.Background(), nil, job)
	require.ErrorIs(t, err, ErrTargetNotFound)
	// A missing portal is a misconfiguration, not a transient failure
	assert.False(t, domain.IsAutomationError(err))
}

type failingSource struct {
	err error
}

func (s *failingSource) Target(context.Context, string) (*Target, error) {
	return nil, s.err
}

func TestRegistry_TargetLoadFailureIsRetryable(t *testing.T) {
	src := &failingSource{err: errors.New("connection refused")}
	reg := NewRegistry(src, logger.NewDefault().Logger, DefaultStrategies()...)

	job := &domain.Job{
		JobID:       "job-4",
		ServiceType: domain.ServiceNINLookup,
	}

	_, err := reg.Run(context.Background(), nil, job)
	require.Error(t, err)
	assert.True(t, domain.IsAutomationError(err), "a store hiccup must classify as transient")
}

func TestDefaultStrategies_CoverKnownServiceTypes(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range DefaultStrategies() {
		seen[s.ServiceType()] = true
	}

	for _, svc := range []string{
		domain.ServiceBVNRetrieval,
		domain.ServiceNINLookup,
		domain.ServiceJAMBScore,
		domain.ServiceWAECResult,
	} {
		assert.True(t, seen[svc], "missing strategy for %s", svc)
		assert.True(t, domain.KnownServiceType(svc))
	}

	assert.False(t, domain.KnownServiceType("voter_card_lookup"))
}

func TestCachedTargets(t *testing.T) {
	src := &staticSource{targets: map[string]*Target{
		domain.ServiceNINLookup: {
			ServiceType: domain.ServiceNINLookup,
			PortalURL:   "https://portal.example/nin",
			Enabled:     true,
		},
	}}

	cached := NewCachedTargets(src, time.Minute)

	first, err := cached.Target(context.Background(), domain.ServiceNINLookup)
	require.NoError(t, err)
	second, err := cached.Target(context.Background(), domain.ServiceNINLookup)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)

	// Invalidation forces a reload
	cached.Invalidate(domain.ServiceNINLookup)
	_, err = cached.Target(context.Background(), domain.ServiceNINLookup)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestTarget_Selector(t *testing.T) {
	target := &Target{
		ServiceType: domain.ServiceJAMBScore,
		Selectors:   map[string]string{"submit_button": "#check-result"},
	}

	sel, err := target.Selector("submit_button")
	require.NoError(t, err)
	assert.Equal(t, "#check-result", sel)

	_, err = target.Selector("reg_number_input")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reg_number_input")
}
