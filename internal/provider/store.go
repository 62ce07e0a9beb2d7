package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Mhixter/arapointx-sub002/internal/ttlcache"
)

// Store reads and writes scrape_targets rows
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a target store
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

type targetRow struct {
	ServiceType string `db:"service_type"`
	PortalURL   string `db:"portal_url"`
	Selectors   string `db:"selectors"`
	Enabled     bool   `db:"enabled"`
}

func (r *targetRow) toTarget() (*Target, error) {
	selectors := map[string]string{}
	if r.Selectors != "" {
		if err := json.Unmarshal([]byte(r.Selectors), &selectors); err != nil {
			return nil, fmt.Errorf("failed to decode selectors for %s: %w", r.ServiceType, err)
		}
	}
	return &Target{
		ServiceType: r.ServiceType,
		PortalURL:   r.PortalURL,
		Selectors:   selectors,
		Enabled:     r.Enabled,
	}, nil
}

// Target loads the portal configuration for one service type
func (s *Store) Target(ctx context.Context, serviceType string) (*Target, error) {
	query := `
		SELECT service_type, portal_url, selectors, enabled
		FROM scrape_targets
		WHERE service_type = $1
	`

	var row targetRow
	if err := s.db.GetContext(ctx, &row, query, serviceType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, serviceType)
		}
		return nil, fmt.Errorf("failed to get target: %w", err)
	}

	return row.toTarget()
}

// List returns every configured target
func (s *Store) List(ctx context.Context) ([]*Target, error) {
	query := `
		SELECT service_type, portal_url, selectors, enabled
		FROM scrape_targets
		ORDER BY service_type
	`

	var rows []targetRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	targets := make([]*Target, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toTarget()
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	return targets, nil
}

// Upsert writes a target's portal URL, selectors, and enabled flag
func (s *Store) Upsert(ctx context.Context, t *Target) error {
	selectors, err := json.Marshal(t.Selectors)
	if err != nil {
		return fmt.Errorf("failed to encode selectors: %w", err)
	}

	query := `
		INSERT INTO scrape_targets (service_type, portal_url, selectors, enabled, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (service_type) DO UPDATE
		SET portal_url = EXCLUDED.portal_url,
		    selectors = EXCLUDED.selectors,
		    enabled = EXCLUDED.enabled,
		    updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, t.ServiceType, t.PortalURL, string(selectors), t.Enabled); err != nil {
		return fmt.Errorf("failed to upsert target: %w", err)
	}

	s.logger.Info("Scrape target updated",
		slog.String("service_type", t.ServiceType),
		slog.String("portal_url", t.PortalURL),
		slog.Bool("enabled", t.Enabled),
	)

	return nil
}

// CachedTargets layers a TTL cache over a TargetSource so the dispatch loop
// does not hit the database for every job. Updates through the API service
// invalidate its own cache immediately; other processes converge when the
// TTL lapses.
type CachedTargets struct {
	source TargetSource
	cache  *ttlcache.Cache[string, *Target]
}

// NewCachedTargets wraps source with a TTL cache
func NewCachedTargets(source TargetSource, ttl time.Duration) *CachedTargets {
	return &CachedTargets{
		source: source,
		cache:  ttlcache.New[string, *Target](ttl),
	}
}

// Target returns the cached configuration, loading through on a miss
func (c *CachedTargets) Target(ctx context.Context, serviceType string) (*Target, error) {
	if t, ok := c.cache.Get(serviceType); ok {
		return t, nil
	}

	t, err := c.source.Target(ctx, serviceType)
	if err != nil {
		return nil, err
	}

	c.cache.Set(serviceType, t)
	return t, nil
}

// Invalidate drops the cached entry for a service type
func (c *CachedTargets) Invalidate(serviceType string) {
	c.cache.Invalidate(serviceType)
}
