package provider

import (
	"context"

	"github.com/go-rod/rod"

	"github.com/Mhixter/arapointx-sub002/internal/worker/domain"
)

// JAMBStrategy fetches a candidate's UTME score from the JAMB result portal.
//
// Required selectors: reg_number_input, exam_year_input, submit_button,
// candidate_name, aggregate_score, subject_scores.
type JAMBStrategy struct{}

func (s *JAMBStrategy) ServiceType() string {
	return domain.ServiceJAMBScore
}

func (s *JAMBStrategy) Run(ctx context.Context, page *rod.Page, target *Target, payload map[string]string) (*Result, error) {
	if err := navigate(page, target); err != nil {
		return nil, err
	}

	if err := fill(page, target, "reg_number_input", payload, "registration_number"); err != nil {
		return nil, err
	}
	if err := fill(page, target, "exam_year_input", payload, "exam_year"); err != nil {
		return nil, err
	}

	if err := submit(page, target); err != nil {
		return nil, err
	}

	return extract(page, target, map[string]string{
		"candidate_name":  "candidate_name",
		"aggregate_score": "aggregate_score",
		"subject_scores":  "subject_scores",
	})
}
