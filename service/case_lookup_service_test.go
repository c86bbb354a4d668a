package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"casestatus-backend/browser"
	"casestatus-backend/browser/browsertest"
	"casestatus-backend/models"
	"casestatus-backend/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(launcher browser.Launcher, engine *scriptedOCR, opts ...CaseLookupServiceOption) *CaseLookupService {
	base := []CaseLookupServiceOption{
		WithLauncher(launcher),
		WithOCREngine(engine),
		WithPipelineConfig(testConfig()),
		WithSearchURL("https://example.test/case-status-search-by-case-number/"),
	}
	return NewCaseLookupService(append(base, opts...)...)
}

func requirePipelineError(t *testing.T, err error, kind ErrorKind) *PipelineError {
	t.Helper()
	require.Error(t, err)
	var pe *PipelineError
	require.True(t, errors.As(err, &pe), "expected *PipelineError, got %T: %v", err, err)
	require.Equal(t, kind, pe.Kind, "unexpected error: %v", err)
	return pe
}

func TestFetchCaseSuccess(t *testing.T) {
	page := newFormPage(200, true)
	launcher := browsertest.NewLauncher(page)
	engine := newScriptedOCR("Ab3d")
	svc := newTestService(launcher, engine)

	res, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	require.NoError(t, err)

	assert.Equal(t, models.CaseResult{
		CaseTitle:     "State vs. Example Person",
		CaseStatus:    "Pending",
		HearingDate:   "12-03-2024",
		OrderJudgment: "Order dated 01-02-2024",
	}, res.Case)
	assert.Equal(t, 1, res.CaptchaAttempts)
	assert.Equal(t, 1, engine.Calls())

	sel := DefaultSelectors()
	assert.Equal(t, "EST01", page.Value(sel.CourtComplex))
	assert.Equal(t, "CRL", page.Value(sel.CaseType))
	assert.Equal(t, "123", page.Value(sel.CaseNumber))
	assert.Equal(t, "2023", page.Value(sel.CaseYear))
	assert.Equal(t, "Ab3d", page.Value(sel.CaptchaInput))

	assert.Equal(t, 1, launcher.Opens())
	assert.Equal(t, 1, launcher.Closes())
}

func TestFetchCaseFormStepOrder(t *testing.T) {
	page := newFormPage(200, true)
	svc := newTestService(browsertest.NewLauncher(page), newScriptedOCR("Ab3d"))

	_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	require.NoError(t, err)

	sel := DefaultSelectors()
	calls := page.Calls()
	order := []string{
		"navigate https://example.test/case-status-search-by-case-number/",
		"clickjs " + sel.ComplexModeRadio,
		"select " + sel.CourtComplex,
		"remove-disabled " + sel.CaseType,
		"select " + sel.CaseType,
		"type " + sel.CaseNumber,
		"type " + sel.CaseYear,
		"screenshot " + sel.CaptchaImage,
		"type " + sel.CaptchaInput,
		"click " + sel.Submit,
	}
	last := -1
	for _, call := range order {
		idx := indexOf(calls, call)
		require.NotEqual(t, -1, idx, "missing call %q in %v", call, calls)
		assert.Greater(t, idx, last, "call %q out of order in %v", call, calls)
		last = idx
	}
	assert.Zero(t, page.DisabledSelects(), "case type must be enabled before selection")
}

func TestFetchCaseValidationDoesNoBrowserWork(t *testing.T) {
	launcher := browsertest.NewLauncher(newFormPage(200, true))
	engine := newScriptedOCR("Ab3d")
	svc := newTestService(launcher, engine)

	queries := []models.CaseQuery{
		{},
		{CourtComplex: "EST01", CaseType: "CRL", CaseNumber: "123"},
		{CourtComplex: "EST01", CaseType: "CRL", CaseYear: "2023"},
		{CourtComplex: "EST01", CaseNumber: "123", CaseYear: "2023"},
		{CaseType: "CRL", CaseNumber: "123", CaseYear: "2023"},
	}
	for _, q := range queries {
		_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: q})
		pe := requirePipelineError(t, err, KindValidation)
		assert.ErrorIs(t, pe, models.ErrMissingFields)
		assert.Equal(t, "Missing required fields", pe.UserMessage())
	}
	assert.Zero(t, launcher.Opens())
	assert.Zero(t, engine.Calls())
}

func TestFetchCaseCaptchaUnsolved(t *testing.T) {
	page := newFormPage(200, true)
	launcher := browsertest.NewLauncher(page)
	engine := newScriptedOCR("", "a", "xy")
	svc := newTestService(launcher, engine)

	_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	pe := requirePipelineError(t, err, KindCaptchaUnsolved)
	assert.ErrorIs(t, err, ErrCaptchaUnsolved)
	assert.Equal(t, 3, pe.Attempts)
	assert.Equal(t, "Failed to solve CAPTCHA correctly.", pe.UserMessage())

	assert.Equal(t, 3, engine.Calls())
	sel := DefaultSelectors()
	calls := page.Calls()
	assert.Equal(t, 2, countCalls(calls, "click "+sel.CaptchaRefresh))
	assert.Equal(t, 3, page.Screenshots())
	assert.Equal(t, -1, indexOf(calls, "click "+sel.Submit), "submission must not be attempted")
	assert.Equal(t, -1, indexOf(calls, "type "+sel.CaptchaInput))

	assert.Equal(t, 1, launcher.Opens())
	assert.Equal(t, 1, launcher.Closes(), "session must be closed exactly once")
}

func TestFetchCaseCaptchaRetriesUntilAccepted(t *testing.T) {
	page := newFormPage(200, true)
	engine := newScriptedOCR("ab", "Xy9Z", "never")
	svc := newTestService(browsertest.NewLauncher(page), engine)

	res, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	require.NoError(t, err)
	assert.Equal(t, 2, engine.Calls())
	assert.Equal(t, 2, res.CaptchaAttempts)
	assert.Equal(t, "Xy9Z", page.Value(DefaultSelectors().CaptchaInput))

	// each attempt reads a fresh capture
	require.Len(t, engine.images, 2)
	assert.NotEqual(t, engine.images[0], engine.images[1])
}

func TestFetchCaseOCRErrorCountsAsAttempt(t *testing.T) {
	page := newFormPage(200, true)
	engine := newScriptedOCR()
	engine.err = errors.New("tesseract exploded")
	launcher := browsertest.NewLauncher(page)
	svc := newTestService(launcher, engine)

	_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	requirePipelineError(t, err, KindCaptchaUnsolved)
	assert.Equal(t, 3, engine.Calls())
	assert.Equal(t, 1, launcher.Closes())
}

func TestFetchCaseCaptchaImageMissing(t *testing.T) {
	page := newFormPage(200, true)
	sel := DefaultSelectors()
	page.Add(sel.CaptchaImage).Visible = false
	engine := newScriptedOCR("Ab3d")
	launcher := browsertest.NewLauncher(page)
	svc := newTestService(launcher, engine)

	_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	pe := requirePipelineError(t, err, KindCaptchaNotFound)
	assert.ErrorIs(t, err, ErrCaptchaNotFound)
	assert.Equal(t, StepCaptureCaptcha, pe.Step)
	assert.Zero(t, engine.Calls(), "OCR loop must not start without an image")
	assert.Equal(t, 1, launcher.Closes())
}

func TestFetchCaseResultsMarkerNeverAppears(t *testing.T) {
	page := newFormPage(200, false)
	launcher := browsertest.NewLauncher(page)
	svc := newTestService(launcher, newScriptedOCR("Ab3d"))

	res, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	assert.Nil(t, res, "no default result on extraction timeout")
	pe := requirePipelineError(t, err, KindExtractionTimeout)
	assert.Equal(t, StepAwaitResults, pe.Step)
	assert.ErrorIs(t, err, ErrExtractionTimeout)
	assert.Equal(t, 1, launcher.Closes())
}

func TestFetchCaseSubmissionRejected(t *testing.T) {
	page := newFormPage(503, true)
	launcher := browsertest.NewLauncher(page)
	svc := newTestService(launcher, newScriptedOCR("Ab3d"))

	_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	pe := requirePipelineError(t, err, KindSubmissionRejected)
	assert.EqualValues(t, 503, pe.Status)
	assert.Contains(t, pe.Error(), "503")
	assert.Equal(t, 1, launcher.Closes())
}

func TestFetchCaseSubmissionTimeout(t *testing.T) {
	page := newFormPage(0, false)
	launcher := browsertest.NewLauncher(page)
	svc := newTestService(launcher, newScriptedOCR("Ab3d"))

	_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	requirePipelineError(t, err, KindSubmissionTimeout)
	assert.ErrorIs(t, err, ErrSubmissionTimeout)
	assert.Equal(t, 1, launcher.Closes())
}

func TestFetchCaseNavigationFailure(t *testing.T) {
	page := newFormPage(200, true)
	page.NavigateErr = errors.New("net::ERR_CONNECTION_RESET")
	launcher := browsertest.NewLauncher(page)
	engine := newScriptedOCR("Ab3d")
	svc := newTestService(launcher, engine)

	_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	pe := requirePipelineError(t, err, KindNavigation)
	assert.Equal(t, StageNavigate, pe.Step)
	assert.ErrorIs(t, err, browser.ErrNavigation)
	assert.Zero(t, engine.Calls())
	assert.Equal(t, 1, launcher.Closes())
}

func TestFetchCaseLaunchFailure(t *testing.T) {
	launcher := browsertest.NewLauncher(newFormPage(200, true))
	launcher.OpenErr = errors.New("chrome not installed")
	svc := newTestService(launcher, newScriptedOCR("Ab3d"))

	_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	requirePipelineError(t, err, KindBrowserLaunch)
	assert.Zero(t, launcher.Closes())
}

func TestFetchCaseFormStepTimeout(t *testing.T) {
	page := newFormPage(200, true)
	sel := DefaultSelectors()
	page.Add(sel.CaseNumber).Visible = false
	launcher := browsertest.NewLauncher(page)
	svc := newTestService(launcher, newScriptedOCR("Ab3d"))

	_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	pe := requirePipelineError(t, err, KindFormStepTimeout)
	assert.Equal(t, StepEnterCaseNumber, pe.Step)
	assert.ErrorIs(t, err, ErrFormStepTimeout)
	assert.Equal(t, 1, launcher.Closes())
}

func TestFetchCaseRecordsLookup(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo := newMemoryLookupRepo()
		svc := newTestService(browsertest.NewLauncher(newFormPage(200, true)), newScriptedOCR("a", "Ab3d"),
			WithLookupRepository(repo))

		res, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
		require.NoError(t, err)

		lookup := repo.only()
		require.NotNil(t, lookup)
		assert.Equal(t, res.LookupID, lookup.ID)
		assert.Equal(t, models.LookupStatusCompleted, lookup.Status)
		assert.Equal(t, 2, lookup.CaptchaAttempts)
		assert.Equal(t, "EST01", lookup.CourtComplex)
		for _, step := range lookup.Steps {
			assert.Equal(t, models.StepCompleted, step.Status, "step %s", step.Name)
		}
	})

	t.Run("failure", func(t *testing.T) {
		repo := newMemoryLookupRepo()
		svc := newTestService(browsertest.NewLauncher(newFormPage(200, true)), newScriptedOCR("", "a", "xy"),
			WithLookupRepository(repo))

		_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
		require.Error(t, err)

		lookup := repo.only()
		require.NotNil(t, lookup)
		assert.Equal(t, models.LookupStatusFailed, lookup.Status)
		require.NotNil(t, lookup.ErrorKind)
		assert.Equal(t, string(KindCaptchaUnsolved), *lookup.ErrorKind)
		require.NotNil(t, lookup.CurrentStep)
		assert.Equal(t, StageSolveCaptcha, *lookup.CurrentStep)
		assert.Equal(t, 3, lookup.CaptchaAttempts)
	})

	t.Run("repository down", func(t *testing.T) {
		repo := newMemoryLookupRepo()
		repo.createErr = errors.New("connection refused")
		svc := newTestService(browsertest.NewLauncher(newFormPage(200, true)), newScriptedOCR("Ab3d"),
			WithLookupRepository(repo))

		_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
		assert.NoError(t, err)
		assert.Nil(t, repo.only())
	})
}

func TestFetchCaseRemovesCaptchaArtifact(t *testing.T) {
	base := t.TempDir()
	store, err := storage.NewLocalStorage(base)
	require.NoError(t, err)

	engine := newScriptedOCR("x", "Ab3d")
	svc := newTestService(browsertest.NewLauncher(newFormPage(200, true)), engine,
		WithArtifactStorage(store))

	_, err = svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("image-1"), []byte("image-2")}, engine.images, "OCR reads the stored captures")

	var files []string
	require.NoError(t, filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return err
	}))
	assert.Empty(t, files, "CAPTCHA capture should be removed after the lookup")
}

func TestFetchCaseCanceled(t *testing.T) {
	page := newFormPage(200, true)
	page.Add(DefaultSelectors().ComplexModeRadio).Visible = false
	launcher := browsertest.NewLauncher(page)
	svc := newTestService(launcher, newScriptedOCR("Ab3d"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.FetchCase(ctx, FetchCaseRequest{Query: testQuery})
	requirePipelineError(t, err, KindCanceled)
	assert.Equal(t, 1, launcher.Closes())
}

func TestFetchCaseMissingCollaborators(t *testing.T) {
	svc := NewCaseLookupService()
	_, err := svc.FetchCase(context.Background(), FetchCaseRequest{Query: testQuery})
	requirePipelineError(t, err, KindInternal)
}
