package provider

import (
	"context"

	"github.com/go-rod/rod"

	"github.com/Mhixter/arapointx-sub002/internal/worker/domain"
)

// BVNStrategy retrieves a customer's BVN record from the verification
// portal using the registered phone number.
//
// Required selectors: phone_input, submit_button, bvn_value, full_name,
// date_of_birth.
type BVNStrategy struct{}

func (s *BVNStrategy) ServiceType() string {
	return domain.ServiceBVNRetrieval
}

func (s *BVNStrategy) Run(ctx context.Context, page *rod.Page, target *Target, payload map[string]string) (*Result, error) {
	if err := navigate(page, target); err != nil {
		return nil, err
	}

	if err := fill(page, target, "phone_input", payload, "phone_number"); err != nil {
		return nil, err
	}

	if err := submit(page, target); err != nil {
		return nil, err
	}

	return extract(page, target, map[string]string{
		"bvn":           "bvn_value",
		"full_name":     "full_name",
		"date_of_birth": "date_of_birth",
	})
}
