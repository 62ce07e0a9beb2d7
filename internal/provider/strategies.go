package provider

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// navigate opens the portal URL and waits for the initial document load.
// Element lookups after this still block until the selector appears, bounded
// by the page context deadline.
func navigate(page *rod.Page, target *Target) error {
	if err := page.Navigate(target.PortalURL); err != nil {
		return fmt.Errorf("navigate %s: %w", target.PortalURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", target.PortalURL, err)
	}
	return nil
}

// fill types a payload value into the input named by selector
func fill(page *rod.Page, target *Target, selectorName string, payload map[string]string, field string) error {
	value, ok := payload[field]
	if !ok || value == "" {
		return fmt.Errorf("payload missing field %q", field)
	}

	sel, err := target.Selector(selectorName)
	if err != nil {
		return err
	}

	el, err := page.Element(sel)
	if err != nil {
		return fmt.Errorf("find %s (%s): %w", selectorName, sel, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill %s: %w", selectorName, err)
	}
	return nil
}

// submit clicks the form's submit control and waits for the next load
func submit(page *rod.Page, target *Target) error {
	sel, err := target.Selector("submit_button")
	if err != nil {
		return err
	}

	el, err := page.Element(sel)
	if err != nil {
		return fmt.Errorf("find submit_button (%s): %w", sel, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click submit: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait result load: %w", err)
	}
	return nil
}

// extract reads the text of each named selector into result fields. Every
// listed field must be present; a missing one means the portal layout
// changed or the query failed, and the job should be retried as an
// automation failure.
func extract(page *rod.Page, target *Target, fields map[string]string) (*Result, error) {
	out := &Result{Fields: make(map[string]string, len(fields))}

	for field, selectorName := range fields {
		sel, err := target.Selector(selectorName)
		if err != nil {
			return nil, err
		}

		el, err := page.Element(sel)
		if err != nil {
			return nil, fmt.Errorf("find %s (%s): %w", selectorName, sel, err)
		}

		text, err := el.Text()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", selectorName, err)
		}
		out.Fields[field] = text
	}

	return out, nil
}
