package service

import (
	"context"
	"errors"
	"fmt"

	"casestatus-backend/browser"
	"casestatus-backend/models"
)

// ErrorKind classifies why a lookup failed
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindBrowserLaunch      ErrorKind = "browser_launch"
	KindNavigation         ErrorKind = "navigation"
	KindElementNotFound    ErrorKind = "element_not_found"
	KindFormState          ErrorKind = "form_state"
	KindFormStepTimeout    ErrorKind = "form_step_timeout"
	KindCaptchaNotFound    ErrorKind = "captcha_not_found"
	KindCaptchaUnsolved    ErrorKind = "captcha_unsolved"
	KindSubmissionTimeout  ErrorKind = "submission_timeout"
	KindSubmissionRejected ErrorKind = "submission_rejected"
	KindExtractionTimeout  ErrorKind = "extraction_timeout"
	KindExtraction         ErrorKind = "extraction"
	KindCanceled           ErrorKind = "canceled"
	KindInternal           ErrorKind = "internal"
)

var (
	ErrFormState          = errors.New("form control is not in a usable state")
	ErrFormStepTimeout    = errors.New("form step timed out")
	ErrCaptchaNotFound    = errors.New("CAPTCHA image not found")
	ErrCaptchaUnsolved    = errors.New("failed to solve CAPTCHA")
	ErrSubmissionTimeout  = errors.New("form submission timed out")
	ErrSubmissionRejected = errors.New("form submission rejected")
	ErrExtractionTimeout  = errors.New("case details did not appear")
	ErrExtraction         = errors.New("failed to extract case details")
	ErrCanceled           = errors.New("lookup canceled")
	ErrInternal           = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	KindValidation:         models.ErrMissingFields,
	KindBrowserLaunch:      browser.ErrLaunch,
	KindNavigation:         browser.ErrNavigation,
	KindElementNotFound:    browser.ErrElementNotFound,
	KindFormState:          ErrFormState,
	KindFormStepTimeout:    ErrFormStepTimeout,
	KindCaptchaNotFound:    ErrCaptchaNotFound,
	KindCaptchaUnsolved:    ErrCaptchaUnsolved,
	KindSubmissionTimeout:  ErrSubmissionTimeout,
	KindSubmissionRejected: ErrSubmissionRejected,
	KindExtractionTimeout:  ErrExtractionTimeout,
	KindExtraction:         ErrExtraction,
	KindCanceled:           ErrCanceled,
	KindInternal:           ErrInternal,
}

// PipelineError is the single error type returned by a failed lookup.
// errors.Is matches both the kind's sentinel and anything in the cause chain.
type PipelineError struct {
	Kind ErrorKind
	// Step is the pipeline or form step that failed, if known.
	Step string
	// Status is the HTTP status of a rejected submission.
	Status int64
	// Attempts is the number of OCR passes made before giving up.
	Attempts int
	Err      error
}

func newPipelineError(kind ErrorKind, step string, err error) *PipelineError {
	if err == nil {
		err = kindSentinels[kind]
	}
	return &PipelineError{Kind: kind, Step: step, Err: err}
}

func (e *PipelineError) Error() string {
	msg := kindSentinels[e.Kind].Error()
	if e.Err != nil && e.Err != kindSentinels[e.Kind] {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Step != "" {
		return fmt.Sprintf("%s: %s", e.Step, msg)
	}
	return msg
}

func (e *PipelineError) Unwrap() error { return e.Err }

func (e *PipelineError) Is(target error) bool {
	return target == kindSentinels[e.Kind]
}

// UserMessage is the summary shown to API callers
func (e *PipelineError) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		return "Missing required fields"
	case KindCaptchaUnsolved:
		return "Failed to solve CAPTCHA correctly."
	default:
		return "An error occurred while fetching case details"
	}
}

// asPipelineError converts any error escaping the pipeline into a PipelineError
func asPipelineError(ctx context.Context, step string, err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		if pe.Step == "" {
			pe.Step = step
		}
		return pe
	}
	if ctx.Err() != nil {
		return newPipelineError(KindCanceled, step, err)
	}
	return newPipelineError(KindInternal, step, err)
}

// isTimeout reports whether err came from an expired deadline
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
