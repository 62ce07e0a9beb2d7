package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrPoolExhausted is returned when no session lease becomes available
// within the acquire timeout. Dispatch treats it as deferral, not failure.
var ErrPoolExhausted = errors.New("no browser session available")

// PoolConfig holds session pool configuration
type PoolConfig struct {
	// Capacity bounds the number of concurrently leased sessions
	Capacity int
	// AcquireTimeout bounds how long Acquire blocks for a lease
	AcquireTimeout time.Duration
	// SessionMaxAge recycles sessions past this age instead of reusing them
	SessionMaxAge time.Duration
	// SessionMaxUses recycles sessions after this many leases
	SessionMaxUses int
}

// Pool is the worker pool coordinator. A weighted semaphore keeps the live
// lease count at or below capacity; sessions are created lazily and idle
// ones are cached for reuse until they age out.
type Pool struct {
	factory Factory
	sem     *semaphore.Weighted
	cfg     PoolConfig
	logger  *slog.Logger

	mu   sync.Mutex
	idle []*Session
}

// NewPool creates a session pool backed by factory
func NewPool(factory Factory, cfg PoolConfig, logger *slog.Logger) *Pool {
	return &Pool{
		factory: factory,
		sem:     semaphore.NewWeighted(int64(cfg.Capacity)),
		cfg:     cfg,
		logger:  logger,
	}
}

// Acquire leases a session, blocking at most the configured acquire
// timeout. Every successful Acquire must be paired with exactly one Release.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, ErrPoolExhausted
	}

	s := p.takeIdle()
	if s == nil {
		created, err := p.factory()
		if err != nil {
			p.sem.Release(1)
			return nil, err
		}
		s = created
		p.logger.Debug("Browser session created",
			slog.String("session_id", s.id),
		)
	}

	s.uses++
	return s, nil
}

// Release returns a session lease. Broken or worn-out sessions are closed
// and replaced on the next Acquire rather than returned to the free-list.
func (p *Pool) Release(s *Session) {
	defer p.sem.Release(1)

	if s == nil {
		return
	}

	if s.broken || p.wornOut(s) {
		if err := s.Close(); err != nil {
			p.logger.Warn("Failed to close browser session",
				slog.String("session_id", s.id),
				slog.Any("error", err),
			)
		}
		p.logger.Debug("Browser session discarded",
			slog.String("session_id", s.id),
			slog.Bool("broken", s.broken),
			slog.Int("uses", s.uses),
		)
		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, s)
	p.mu.Unlock()
}

// Close discards all idle sessions. In-flight leases finish on their own.
func (p *Pool) Close() {
	p.mu.Lock()
	sessions := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			p.logger.Warn("Failed to close browser session",
				slog.String("session_id", s.id),
				slog.Any("error", err),
			)
		}
	}
}

// takeIdle pops a reusable idle session, closing any that aged out while
// parked on the free-list
func (p *Pool) takeIdle() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.idle) > 0 {
		s := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if p.wornOut(s) {
			_ = s.Close()
			continue
		}
		return s
	}
	return nil
}

func (p *Pool) wornOut(s *Session) bool {
	if p.cfg.SessionMaxUses > 0 && s.uses >= p.cfg.SessionMaxUses {
		return true
	}
	if p.cfg.SessionMaxAge > 0 && time.Since(s.createdAt) > p.cfg.SessionMaxAge {
		return true
	}
	return false
}
