package provider

import (
	"context"

	"github.com/go-rod/rod"

	"github.com/Mhixter/arapointx-sub002/internal/worker/domain"
)

// NINStrategy looks up a National Identification Number record.
//
// Required selectors: nin_input, submit_button, full_name, gender,
// date_of_birth, state_of_origin.
type NINStrategy struct{}

func (s *NINStrategy) ServiceType() string {
	return domain.ServiceNINLookup
}

func (s *NINStrategy) Run(ctx context.Context, page *rod.Page, target *Target, payload map[string]string) (*Result, error) {
	if err := navigate(page, target); err != nil {
		return nil, err
	}

	if err := fill(page, target, "nin_input", payload, "nin"); err != nil {
		return nil, err
	}

	if err := submit(page, target); err != nil {
		return nil, err
	}

	return extract(page, target, map[string]string{
		"full_name":       "full_name",
		"gender":          "gender",
		"date_of_birth":   "date_of_birth",
		"state_of_origin": "state_of_origin",
	})
}
