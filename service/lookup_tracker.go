package service

import (
	"context"
	"log"

	"casestatus-backend/models"

	"github.com/google/uuid"
)

// Pipeline stage names, in order
const (
	StageOpenBrowser  = "open_browser"
	StageNavigate     = "navigate"
	StageFillForm     = "fill_form"
	StageSolveCaptcha = "solve_captcha"
	StageSubmit       = "submit_form"
)

var stageNames = []string{StageOpenBrowser, StageNavigate, StageFillForm, StageSolveCaptcha, StageSubmit}

// LookupRepository persists the audit trail of lookups
type LookupRepository interface {
	Create(ctx context.Context, lookup *models.Lookup) error
	UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.LookupSteps) error
	UpdateCaptchaAttempts(ctx context.Context, id uuid.UUID, attempts int) error
	Complete(ctx context.Context, id uuid.UUID, steps models.LookupSteps) error
	Fail(ctx context.Context, id uuid.UUID, steps models.LookupSteps, errorKind, errorMessage string) error
}

// lookupTracker follows a lookup through its stages and mirrors progress to the
// repository. Repository failures are logged and never fail the lookup.
type lookupTracker struct {
	repo    LookupRepository
	id      uuid.UUID
	steps   models.LookupSteps
	current string
	prefix  string
}

func newLookupTracker(repo LookupRepository, id uuid.UUID, prefix string) *lookupTracker {
	steps := make(models.LookupSteps, 0, len(stageNames))
	for _, name := range stageNames {
		steps = append(steps, models.LookupStep{Name: name, Status: models.StepPending})
	}
	return &lookupTracker{repo: repo, id: id, steps: steps, prefix: prefix}
}

func (t *lookupTracker) start(ctx context.Context, q models.CaseQuery) {
	if t.repo == nil {
		return
	}
	lookup := &models.Lookup{
		ID:           t.id,
		CourtComplex: q.CourtComplex,
		CaseType:     q.CaseType,
		CaseNumber:   q.CaseNumber,
		CaseYear:     q.CaseYear,
		Status:       models.LookupStatusPending,
		Steps:        t.steps,
	}
	if err := t.repo.Create(ctx, lookup); err != nil {
		log.Printf("%sWarning: failed to record lookup, continuing without audit: %v", t.prefix, err)
		t.repo = nil
	}
}

func (t *lookupTracker) begin(ctx context.Context, stage string) {
	if t.current != "" {
		t.steps.SetStatus(t.current, models.StepCompleted)
	}
	t.steps.SetStatus(stage, models.StepInProgress)
	t.current = stage

	if t.repo == nil {
		return
	}
	if err := t.repo.UpdateProgress(ctx, t.id, stage, t.steps); err != nil {
		log.Printf("%sWarning: failed to update lookup progress: %v", t.prefix, err)
	}
}

func (t *lookupTracker) captchaAttempt(ctx context.Context, attempts int) {
	if t.repo == nil {
		return
	}
	if err := t.repo.UpdateCaptchaAttempts(ctx, t.id, attempts); err != nil {
		log.Printf("%sWarning: failed to update CAPTCHA attempts: %v", t.prefix, err)
	}
}

func (t *lookupTracker) complete(ctx context.Context) {
	if t.current != "" {
		t.steps.SetStatus(t.current, models.StepCompleted)
	}
	if t.repo == nil {
		return
	}
	if err := t.repo.Complete(context.WithoutCancel(ctx), t.id, t.steps); err != nil {
		log.Printf("%sWarning: failed to mark lookup completed: %v", t.prefix, err)
	}
}

func (t *lookupTracker) fail(ctx context.Context, pe *PipelineError) {
	if t.current != "" {
		t.steps.SetStatus(t.current, models.StepFailed)
	}
	if t.repo == nil {
		return
	}
	if err := t.repo.Fail(context.WithoutCancel(ctx), t.id, t.steps, string(pe.Kind), pe.Error()); err != nil {
		log.Printf("%sWarning: failed to mark lookup failed: %v", t.prefix, err)
	}
}
