package provider

import (
	"context"

	"github.com/go-rod/rod"

	"github.com/Mhixter/arapointx-sub002/internal/worker/domain"
)

// WAECStrategy checks a WAEC result. The portal requires a scratch-card PIN
// and serial alongside the candidate's exam details, so the payload carries
// the PIN allocated to the requester's order.
//
// Required selectors: exam_number_input, exam_year_input, pin_input,
// serial_input, submit_button, candidate_name, subject_grades.
type WAECStrategy struct{}

func (s *WAECStrategy) ServiceType() string {
	return domain.ServiceWAECResult
}

func (s *WAECStrategy) Run(ctx context.Context, page *rod.Page, target *Target, payload map[string]string) (*Result, error) {
	if err := navigate(page, target); err != nil {
		return nil, err
	}

	if err := fill(page, target, "exam_number_input", payload, "exam_number"); err != nil {
		return nil, err
	}
	if err := fill(page, target, "exam_year_input", payload, "exam_year"); err != nil {
		return nil, err
	}
	if err := fill(page, target, "pin_input", payload, "card_pin"); err != nil {
		return nil, err
	}
	if err := fill(page, target, "serial_input", payload, "card_serial"); err != nil {
		return nil, err
	}

	if err := submit(page, target); err != nil {
		return nil, err
	}

	return extract(page, target, map[string]string{
		"candidate_name": "candidate_name",
		"subject_grades": "subject_grades",
	})
}
