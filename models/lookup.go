package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LookupStatus represents the status of a case lookup
type LookupStatus string

const (
	LookupStatusPending    LookupStatus = "pending"
	LookupStatusInProgress LookupStatus = "in_progress"
	LookupStatusCompleted  LookupStatus = "completed"
	LookupStatusFailed     LookupStatus = "failed"
)

// Step status values
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepFailed     = "failed"
)

// LookupStep represents a stage of the lookup pipeline
type LookupStep struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pending", "in_progress", "completed", "failed"
}

// LookupSteps represents the ordered stages of a lookup
type LookupSteps []LookupStep

// Value implements driver.Valuer for JSONB
func (l LookupSteps) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB
func (l *LookupSteps) Scan(value interface{}) error {
	if value == nil {
		*l = make(LookupSteps, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*l = make(LookupSteps, 0)
		return nil
	}

	if len(bytes) == 0 {
		*l = make(LookupSteps, 0)
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// SetStatus updates the named step and reports whether it was found
func (l LookupSteps) SetStatus(name, status string) bool {
	for i := range l {
		if l[i].Name == name {
			l[i].Status = status
			return true
		}
	}
	return false
}

// Lookup is the audit record of one case lookup. It never carries the scraped result.
type Lookup struct {
	ID              uuid.UUID    `json:"id"`
	CourtComplex    string       `json:"court_complex"`
	CaseType        string       `json:"case_type"`
	CaseNumber      string       `json:"case_number"`
	CaseYear        string       `json:"case_year"`
	Status          LookupStatus `json:"status"`
	CurrentStep     *string      `json:"current_step,omitempty"`
	Steps           LookupSteps  `json:"steps"`
	CaptchaAttempts int          `json:"captcha_attempts"`
	ErrorKind       *string      `json:"error_kind,omitempty"`
	ErrorMessage    *string      `json:"error_message,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
}
