// Package provider holds the portal automation strategies run against
// leased browser sessions. Each service type maps to one strategy; portal
// URLs and CSS selectors are data loaded from the scrape_targets table so
// the dispatch loop stays provider-agnostic.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
)

var (
	// ErrUnknownService is returned when no strategy is registered for a
	// job's service type
	ErrUnknownService = errors.New("unknown service type")

	// ErrTargetDisabled is returned when the portal configuration for a
	// service has been switched off by an administrator
	ErrTargetDisabled = errors.New("provider target disabled")

	// ErrTargetNotFound is returned when no portal configuration exists
	// for a service
	ErrTargetNotFound = errors.New("provider target not found")
)

// Target is the external portal configuration for one service type
type Target struct {
	ServiceType string            `json:"service_type"`
	PortalURL   string            `json:"portal_url"`
	Selectors   map[string]string `json:"selectors"`
	Enabled     bool              `json:"enabled"`
}

// Selector returns the named selector or an error naming the missing key,
// so a half-configured target fails with a usable message
func (t *Target) Selector(name string) (string, error) {
	sel, ok := t.Selectors[name]
	if !ok || sel == "" {
		return "", fmt.Errorf("target %s missing selector %q", t.ServiceType, name)
	}
	return sel, nil
}

// Result is the structured outcome extracted from a portal
type Result struct {
	Fields map[string]string `json:"fields"`
}

// JSON serializes the result for storage on the job row
func (r *Result) JSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(data), nil
}

// Strategy drives one provider portal: navigate, submit the query, extract
// the structured result
type Strategy interface {
	ServiceType() string
	Run(ctx context.Context, page *rod.Page, target *Target, payload map[string]string) (*Result, error)
}

// TargetSource resolves portal configuration for a service type
type TargetSource interface {
	Target(ctx context.Context, serviceType string) (*Target, error)
}

func decodePayload(raw string) (map[string]string, error) {
	payload := map[string]string{}
	if raw == "" {
		return payload, nil
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return payload, nil
}
