package models

import (
	"errors"
	"strings"
)

// NotAvailable is reported for any result field missing from the results page
const NotAvailable = "N/A"

// ErrMissingFields is returned when a case query lacks one of its required fields
var ErrMissingFields = errors.New("missing required fields")

// CaseQuery identifies a single case on the case-status search form
type CaseQuery struct {
	CourtComplex string `json:"courtComplex"`
	CaseType     string `json:"caseType"`
	CaseNumber   string `json:"caseNumber"`
	CaseYear     string `json:"caseYear"`
}

// Normalize trims surrounding whitespace from every field
func (q CaseQuery) Normalize() CaseQuery {
	return CaseQuery{
		CourtComplex: strings.TrimSpace(q.CourtComplex),
		CaseType:     strings.TrimSpace(q.CaseType),
		CaseNumber:   strings.TrimSpace(q.CaseNumber),
		CaseYear:     strings.TrimSpace(q.CaseYear),
	}
}

// Validate reports ErrMissingFields unless all four fields are non-empty
func (q CaseQuery) Validate() error {
	n := q.Normalize()
	if n.CourtComplex == "" || n.CaseType == "" || n.CaseNumber == "" || n.CaseYear == "" {
		return ErrMissingFields
	}
	return nil
}

// CaseResult holds the fields scraped from the case-status results page
type CaseResult struct {
	CaseTitle     string `json:"caseTitle"`
	CaseStatus    string `json:"caseStatus"`
	HearingDate   string `json:"hearingDate"`
	OrderJudgment string `json:"orderJudgment"`
}

// NewCaseResult returns a result with every field set to NotAvailable
func NewCaseResult() CaseResult {
	return CaseResult{
		CaseTitle:     NotAvailable,
		CaseStatus:    NotAvailable,
		HearingDate:   NotAvailable,
		OrderJudgment: NotAvailable,
	}
}

// CaptchaAttempt records a single OCR pass over the CAPTCHA image
type CaptchaAttempt struct {
	ImagePath      string `json:"image_path"`
	RecognizedText string `json:"recognized_text"`
	AttemptIndex   int    `json:"attempt_index"`
}
