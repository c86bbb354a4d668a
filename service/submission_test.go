package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"casestatus-backend/browser"
	"casestatus-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCaseResult(t *testing.T) {
	sel := DefaultSelectors()

	t.Run("all fields", func(t *testing.T) {
		res, err := ExtractCaseResult(resultsHTML, sel)
		require.NoError(t, err)
		assert.Equal(t, "State vs. Example Person", res.CaseTitle)
		assert.Equal(t, "Pending", res.CaseStatus)
		assert.Equal(t, "12-03-2024", res.HearingDate)
		assert.Equal(t, "Order dated 01-02-2024", res.OrderJudgment)
	})

	tests := []struct {
		name string
		html string
		want models.CaseResult
	}{
		{
			name: "title only",
			html: `<div class="case-title">A v. B</div>`,
			want: models.CaseResult{CaseTitle: "A v. B", CaseStatus: "N/A", HearingDate: "N/A", OrderJudgment: "N/A"},
		},
		{
			name: "missing status",
			html: `<div class="case-title">A v. B</div><p class="hearing-date">1-1-2025</p><p class="order-judgment">Disposed</p>`,
			want: models.CaseResult{CaseTitle: "A v. B", CaseStatus: "N/A", HearingDate: "1-1-2025", OrderJudgment: "Disposed"},
		},
		{
			name: "missing hearing date",
			html: `<div class="case-title">A v. B</div><p class="case-status">Pending</p><p class="order-judgment">Disposed</p>`,
			want: models.CaseResult{CaseTitle: "A v. B", CaseStatus: "Pending", HearingDate: "N/A", OrderJudgment: "Disposed"},
		},
		{
			name: "missing order",
			html: `<div class="case-title">A v. B</div><p class="case-status">Pending</p><p class="hearing-date">1-1-2025</p>`,
			want: models.CaseResult{CaseTitle: "A v. B", CaseStatus: "Pending", HearingDate: "1-1-2025", OrderJudgment: "N/A"},
		},
		{
			name: "empty element counts as absent",
			html: `<div class="case-title">A v. B</div><p class="case-status">   </p>`,
			want: models.CaseResult{CaseTitle: "A v. B", CaseStatus: "N/A", HearingDate: "N/A", OrderJudgment: "N/A"},
		},
		{
			name: "first match wins",
			html: `<div class="case-title">First</div><div class="case-title">Second</div>`,
			want: models.CaseResult{CaseTitle: "First", CaseStatus: "N/A", HearingDate: "N/A", OrderJudgment: "N/A"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ExtractCaseResult(tc.html, sel)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res)
		})
	}
}

func TestSubmitClickFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"control disabled", fmt.Errorf("%w: submit", browser.ErrControlDisabled), KindFormState},
		{"script error", errors.New("Runtime.evaluate: exception thrown"), KindFormState},
		{"element gone", fmt.Errorf("%w: submit", browser.ErrElementNotFound), KindElementNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sel := DefaultSelectors()
			page := newFormPage(200, true)
			page.ClickErrs[sel.Submit] = tc.err
			s := NewSubmitter(browser.NewSession(page, nil), sel, testConfig(), "")

			_, err := s.Submit(context.Background(), "Ab3d")
			pe := requirePipelineError(t, err, tc.kind)
			assert.Equal(t, StepSubmit, pe.Step)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestExtractCaseResultEmptyDocument(t *testing.T) {
	res, err := ExtractCaseResult(`<html></html>`, DefaultSelectors())
	require.NoError(t, err)
	assert.Equal(t, models.NewCaseResult(), res)
}
