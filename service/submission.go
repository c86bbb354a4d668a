package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"casestatus-backend/browser"
	"casestatus-backend/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const (
	StepEnterCaptcha   = "enter_captcha"
	StepSubmit         = "submit"
	StepAwaitResults   = "await_results"
	StepExtractDetails = "extract_details"
)

// Submitter submits the completed form and scrapes the results page
type Submitter struct {
	session         *browser.Session
	selectors       Selectors
	cfg             PipelineConfig
	responsePattern string
	logPrefix       string
}

// NewSubmitter creates a submitter. responsePattern is a substring of the URL
// the search endpoint answers on.
func NewSubmitter(session *browser.Session, selectors Selectors, cfg PipelineConfig, responsePattern string) *Submitter {
	if responsePattern == "" {
		responsePattern = DefaultResponseURLPattern
	}
	return &Submitter{session: session, selectors: selectors, cfg: cfg, responsePattern: responsePattern}
}

// Submit enters the CAPTCHA answer, submits the form and extracts the case details
func (s *Submitter) Submit(ctx context.Context, captchaAnswer string) (models.CaseResult, error) {
	if err := s.enterCaptcha(ctx, captchaAnswer); err != nil {
		return models.CaseResult{}, err
	}

	resp, err := s.submitAndAwait(ctx)
	if err != nil {
		return models.CaseResult{}, err
	}
	if !resp.OK() {
		pe := newPipelineError(KindSubmissionRejected, StepSubmit, fmt.Errorf("%s responded with status %d", resp.URL, resp.Status))
		pe.Status = resp.Status
		return models.CaseResult{}, pe
	}
	log.Printf("%sForm submitted successfully (status %d)", s.logPrefix, resp.Status)

	if err := s.session.WaitForElement(ctx, s.selectors.CaseTitle, s.cfg.ResultTimeout); err != nil {
		if ctx.Err() != nil {
			return models.CaseResult{}, newPipelineError(KindCanceled, StepAwaitResults, err)
		}
		return models.CaseResult{}, newPipelineError(KindExtractionTimeout, StepAwaitResults, err)
	}

	html, err := s.session.Page.HTML(ctx)
	if err != nil {
		return models.CaseResult{}, newPipelineError(KindExtraction, StepExtractDetails, err)
	}
	result, err := ExtractCaseResult(html, s.selectors)
	if err != nil {
		return models.CaseResult{}, newPipelineError(KindExtraction, StepExtractDetails, err)
	}
	return result, nil
}

func (s *Submitter) enterCaptcha(ctx context.Context, answer string) error {
	if err := s.session.WaitForElement(ctx, s.selectors.CaptchaInput, s.cfg.FieldTimeout); err != nil {
		if ctx.Err() != nil {
			return newPipelineError(KindCanceled, StepEnterCaptcha, err)
		}
		return newPipelineError(KindElementNotFound, StepEnterCaptcha, err)
	}

	typeCtx, cancel := context.WithTimeout(ctx, s.cfg.FieldTimeout)
	defer cancel()
	if err := s.session.Page.Type(typeCtx, s.selectors.CaptchaInput, answer); err != nil {
		return newPipelineError(KindFormState, StepEnterCaptcha, err)
	}
	return nil
}

// submitAndAwait clicks submit and waits for the search endpoint to respond.
// Both must finish within SubmissionTimeout.
func (s *Submitter) submitAndAwait(ctx context.Context) (browser.Response, error) {
	pattern := s.responsePattern
	responses, stop := s.session.Page.ExpectResponse(func(url string, status int64) bool {
		return strings.Contains(url, pattern)
	})
	defer stop()

	subCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmissionTimeout)
	defer cancel()

	var resp browser.Response
	g, gctx := errgroup.WithContext(subCtx)
	g.Go(func() error {
		return s.session.Page.Click(gctx, s.selectors.Submit)
	})
	g.Go(func() error {
		select {
		case resp = <-responses:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	if err := g.Wait(); err != nil {
		switch {
		case ctx.Err() != nil:
			return resp, newPipelineError(KindCanceled, StepSubmit, err)
		case isTimeout(err):
			return resp, newPipelineError(KindSubmissionTimeout, StepSubmit, err)
		case errors.Is(err, browser.ErrElementNotFound):
			return resp, newPipelineError(KindElementNotFound, StepSubmit, err)
		default:
			return resp, newPipelineError(KindFormState, StepSubmit, err)
		}
	}
	return resp, nil
}

// ExtractCaseResult reads the case fields from a results page. Each missing or
// empty field is reported as models.NotAvailable.
func ExtractCaseResult(html string, selectors Selectors) (models.CaseResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.CaseResult{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := models.NewCaseResult()
	fields := []struct {
		selector string
		dst      *string
	}{
		{selectors.CaseTitle, &result.CaseTitle},
		{selectors.CaseStatus, &result.CaseStatus},
		{selectors.HearingDate, &result.HearingDate},
		{selectors.OrderJudgment, &result.OrderJudgment},
	}
	for _, f := range fields {
		if text := strings.Join(strings.Fields(doc.Find(f.selector).First().Text()), " "); text != "" {
			*f.dst = text
		}
	}
	return result, nil
}
