package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"casestatus-backend/browser"
	"casestatus-backend/models"
	"casestatus-backend/ocr"
	"casestatus-backend/storage"

	"github.com/google/uuid"
)

// CaseLookupService fetches a single case record by driving the case-status search form
type CaseLookupService struct {
	launcher        browser.Launcher
	engine          ocr.Engine
	artifacts       storage.Storage
	lookupRepo      LookupRepository
	acceptor        Acceptor
	cfg             PipelineConfig
	selectors       Selectors
	searchURL       string
	responsePattern string
}

// CaseLookupServiceOption is a functional option for CaseLookupService
type CaseLookupServiceOption func(*CaseLookupService)

// WithLauncher sets the browser launcher
func WithLauncher(launcher browser.Launcher) CaseLookupServiceOption {
	return func(s *CaseLookupService) {
		s.launcher = launcher
	}
}

// WithOCREngine sets the OCR engine used for CAPTCHAs
func WithOCREngine(engine ocr.Engine) CaseLookupServiceOption {
	return func(s *CaseLookupService) {
		s.engine = engine
	}
}

// WithArtifactStorage sets where CAPTCHA captures are kept during a lookup
func WithArtifactStorage(artifacts storage.Storage) CaseLookupServiceOption {
	return func(s *CaseLookupService) {
		s.artifacts = artifacts
	}
}

// WithLookupRepository enables the lookup audit trail
func WithLookupRepository(repo LookupRepository) CaseLookupServiceOption {
	return func(s *CaseLookupService) {
		s.lookupRepo = repo
	}
}

// WithCaptchaAcceptor replaces the OCR acceptance rule
func WithCaptchaAcceptor(acceptor Acceptor) CaseLookupServiceOption {
	return func(s *CaseLookupService) {
		s.acceptor = acceptor
	}
}

// WithPipelineConfig sets timeouts and retry policy
func WithPipelineConfig(cfg PipelineConfig) CaseLookupServiceOption {
	return func(s *CaseLookupService) {
		s.cfg = cfg
	}
}

// WithSelectors overrides the form and results selectors
func WithSelectors(selectors Selectors) CaseLookupServiceOption {
	return func(s *CaseLookupService) {
		s.selectors = selectors
	}
}

// WithSearchURL sets the search form URL
func WithSearchURL(url string) CaseLookupServiceOption {
	return func(s *CaseLookupService) {
		if url != "" {
			s.searchURL = url
		}
	}
}

// WithResponseURLPattern sets the URL substring of the search endpoint response
func WithResponseURLPattern(pattern string) CaseLookupServiceOption {
	return func(s *CaseLookupService) {
		if pattern != "" {
			s.responsePattern = pattern
		}
	}
}

// NewCaseLookupService creates a new case lookup service
func NewCaseLookupService(opts ...CaseLookupServiceOption) *CaseLookupService {
	s := &CaseLookupService{
		acceptor:        DefaultAcceptor,
		cfg:             DefaultPipelineConfig(),
		selectors:       DefaultSelectors(),
		searchURL:       DefaultSearchURL,
		responsePattern: DefaultResponseURLPattern,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchCaseRequest represents a request to look up a case
type FetchCaseRequest struct {
	Query models.CaseQuery
}

// FetchCaseResult represents the outcome of a successful lookup
type FetchCaseResult struct {
	LookupID        uuid.UUID
	Case            models.CaseResult
	CaptchaAttempts int
}

// FetchCase runs one lookup end to end. Every failure is returned as a
// *PipelineError, and the browser session is closed on every path.
func (s *CaseLookupService) FetchCase(ctx context.Context, req FetchCaseRequest) (*FetchCaseResult, error) {
	query := req.Query.Normalize()
	if err := query.Validate(); err != nil {
		metricLookups.WithLabelValues(string(KindValidation)).Inc()
		return nil, newPipelineError(KindValidation, "", err)
	}
	if s.launcher == nil {
		return nil, newPipelineError(KindInternal, "", errors.New("browser launcher not set"))
	}
	if s.engine == nil {
		return nil, newPipelineError(KindInternal, "", errors.New("OCR engine not set"))
	}

	lookupID := uuid.New()
	prefix := fmt.Sprintf("Lookup %s: ", lookupID)
	tracker := newLookupTracker(s.lookupRepo, lookupID, prefix)
	tracker.start(ctx, query)

	log.Printf("%sfetching case %s/%s/%s/%s", prefix, query.CourtComplex, query.CaseType, query.CaseNumber, query.CaseYear)

	metricLookupsInFlight.Inc()
	started := time.Now()
	result, attempts, err := s.run(ctx, lookupID, prefix, query, tracker)
	metricLookupDuration.Observe(time.Since(started).Seconds())
	metricLookupsInFlight.Dec()

	if err != nil {
		pe := asPipelineError(ctx, tracker.current, err)
		if pe.Attempts == 0 {
			pe.Attempts = attempts
		}
		metricLookups.WithLabelValues(string(pe.Kind)).Inc()
		log.Printf("%sERROR (%s): %+v", prefix, pe.Kind, pe)
		tracker.fail(ctx, pe)
		return nil, pe
	}

	metricLookups.WithLabelValues("success").Inc()
	tracker.complete(ctx)
	log.Printf("%scase details fetched: %+v", prefix, result)

	return &FetchCaseResult{
		LookupID:        lookupID,
		Case:            result,
		CaptchaAttempts: attempts,
	}, nil
}

// run executes the stages in order against one browser session
func (s *CaseLookupService) run(ctx context.Context, lookupID uuid.UUID, prefix string, query models.CaseQuery, tracker *lookupTracker) (models.CaseResult, int, error) {
	tracker.begin(ctx, StageOpenBrowser)
	session, err := s.launcher.Open(ctx)
	if err != nil {
		return models.CaseResult{}, 0, newPipelineError(KindBrowserLaunch, StageOpenBrowser, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("%sWarning: failed to close browser: %v", prefix, err)
		}
	}()

	tracker.begin(ctx, StageNavigate)
	log.Printf("%sNavigating to %s", prefix, s.searchURL)
	if err := session.Navigate(ctx, s.searchURL, s.cfg.NavigationTimeout); err != nil {
		kind := KindNavigation
		if ctx.Err() != nil {
			kind = KindCanceled
		}
		return models.CaseResult{}, 0, newPipelineError(kind, StageNavigate, err)
	}

	tracker.begin(ctx, StageFillForm)
	driver := NewFormDriver(session, s.selectors, s.cfg)
	driver.logPrefix = prefix
	if err := driver.Fill(ctx, query); err != nil {
		return models.CaseResult{}, 0, err
	}

	tracker.begin(ctx, StageSolveCaptcha)
	resolver := NewCaptchaResolver(session, s.engine, s.artifacts, s.acceptor, s.selectors, s.cfg, lookupID)
	resolver.logPrefix = prefix
	resolver.onAttempt = func(a models.CaptchaAttempt) {
		metricOCRAttempts.WithLabelValues(s.engine.Name(), strconv.FormatBool(s.acceptor.Accept(a.RecognizedText))).Inc()
		tracker.captchaAttempt(ctx, a.AttemptIndex)
	}
	defer resolver.Cleanup(context.WithoutCancel(ctx))

	answer, err := resolver.Resolve(ctx)
	if err != nil {
		return models.CaseResult{}, resolver.Attempts(), err
	}
	log.Printf("%sCAPTCHA solved after %d attempt(s)", prefix, resolver.Attempts())

	tracker.begin(ctx, StageSubmit)
	submitter := NewSubmitter(session, s.selectors, s.cfg, s.responsePattern)
	submitter.logPrefix = prefix
	result, err := submitter.Submit(ctx, answer)
	if err != nil {
		return models.CaseResult{}, resolver.Attempts(), err
	}
	return result, resolver.Attempts(), nil
}
