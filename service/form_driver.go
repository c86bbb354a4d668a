package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"casestatus-backend/browser"
	"casestatus-backend/models"
)

// Form step names
const (
	StepSelectComplexMode = "select_court_complex_mode"
	StepSelectComplex     = "select_court_complex"
	StepSelectCaseType    = "select_case_type"
	StepEnterCaseNumber   = "enter_case_number"
	StepEnterCaseYear     = "enter_case_year"
)

// formStep is one ordered interaction with the search form. The target element
// is awaited first, then precondition must hold before act runs.
type formStep struct {
	name         string
	selector     string
	timeout      time.Duration
	precondition func(ctx context.Context) error
	act          func(ctx context.Context) error
}

// FormDriver brings the search form into a submit-ready state
type FormDriver struct {
	session   *browser.Session
	selectors Selectors
	cfg       PipelineConfig
	logPrefix string
}

// NewFormDriver creates a driver for the session's page
func NewFormDriver(session *browser.Session, selectors Selectors, cfg PipelineConfig) *FormDriver {
	return &FormDriver{session: session, selectors: selectors, cfg: cfg}
}

func (d *FormDriver) steps(q models.CaseQuery) []formStep {
	page := d.session.Page
	sel := d.selectors

	return []formStep{
		{
			// Case type and number fields only exist in court-complex mode
			name:     StepSelectComplexMode,
			selector: sel.ComplexModeRadio,
			timeout:  d.cfg.StepTimeout,
			act: func(ctx context.Context) error {
				return page.ClickJS(ctx, sel.ComplexModeRadio)
			},
		},
		{
			name:         StepSelectComplex,
			selector:     sel.CourtComplex,
			timeout:      d.cfg.StepTimeout,
			precondition: d.awaitOption(sel.CourtComplex, q.CourtComplex),
			act: func(ctx context.Context) error {
				return page.Select(ctx, sel.CourtComplex, q.CourtComplex)
			},
		},
		{
			// Options are loaded asynchronously once a court complex is chosen
			name:     StepSelectCaseType,
			selector: sel.CaseType,
			timeout:  d.cfg.FieldTimeout,
			precondition: all(
				d.ensureEnabled(sel.CaseType),
				d.awaitOption(sel.CaseType, q.CaseType),
			),
			act: func(ctx context.Context) error {
				return page.Select(ctx, sel.CaseType, q.CaseType)
			},
		},
		{
			name:     StepEnterCaseNumber,
			selector: sel.CaseNumber,
			timeout:  d.cfg.FieldTimeout,
			act: func(ctx context.Context) error {
				return page.Type(ctx, sel.CaseNumber, q.CaseNumber)
			},
		},
		{
			name:     StepEnterCaseYear,
			selector: sel.CaseYear,
			timeout:  d.cfg.FieldTimeout,
			act: func(ctx context.Context) error {
				return page.Type(ctx, sel.CaseYear, q.CaseYear)
			},
		},
	}
}

// ensureEnabled clears the disabled attribute the site ships on dependent
// dropdowns and confirms the control accepts input afterwards
func (d *FormDriver) ensureEnabled(selector string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		page := d.session.Page
		disabled, err := page.IsDisabled(ctx, selector)
		if err != nil {
			return err
		}
		if !disabled {
			return nil
		}
		if err := page.RemoveAttribute(ctx, selector, "disabled"); err != nil {
			return err
		}
		disabled, err = page.IsDisabled(ctx, selector)
		if err != nil {
			return err
		}
		if disabled {
			return fmt.Errorf("%w: %s", browser.ErrControlDisabled, selector)
		}
		return nil
	}
}

// awaitOption waits for the select to offer value
func (d *FormDriver) awaitOption(selector, value string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return d.session.Page.WaitReady(ctx, browser.OptionSelector(selector, value))
	}
}

func all(checks ...func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Fill runs every form step in order, stopping at the first failure
func (d *FormDriver) Fill(ctx context.Context, q models.CaseQuery) error {
	for _, step := range d.steps(q) {
		if err := d.session.WaitForElement(ctx, step.selector, step.timeout); err != nil {
			if isTimeout(err) {
				return newPipelineError(KindFormStepTimeout, step.name, err)
			}
			return d.stepError(ctx, step.name, err)
		}
		if step.precondition != nil {
			if err := d.runBounded(ctx, step.timeout, step.precondition); err != nil {
				return d.stepError(ctx, step.name, err)
			}
		}
		if err := d.runBounded(ctx, step.timeout, step.act); err != nil {
			return d.stepError(ctx, step.name, err)
		}
		log.Printf("%sForm step %s done", d.logPrefix, step.name)
	}
	return nil
}

func (d *FormDriver) runBounded(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func (d *FormDriver) stepError(ctx context.Context, step string, err error) *PipelineError {
	switch {
	case ctx.Err() != nil:
		return newPipelineError(KindCanceled, step, err)
	case isTimeout(err):
		return newPipelineError(KindFormStepTimeout, step, err)
	case errors.Is(err, browser.ErrElementNotFound):
		return newPipelineError(KindElementNotFound, step, err)
	default:
		return newPipelineError(KindFormState, step, err)
	}
}
