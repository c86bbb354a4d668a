package repository

import (
	"context"
	"errors"
	"time"

	"casestatus-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLookupNotFound is returned when no lookup row matches the ID
var ErrLookupNotFound = errors.New("lookup not found")

// LookupRepository handles database operations for case lookups
type LookupRepository struct {
	db *pgxpool.Pool
}

// NewLookupRepository creates a new lookup repository
func NewLookupRepository(db *pgxpool.Pool) *LookupRepository {
	return &LookupRepository{db: db}
}

// Create inserts a new lookup and fills in its timestamps
func (r *LookupRepository) Create(ctx context.Context, lookup *models.Lookup) error {
	query := `
		INSERT INTO case_lookups (
			id, court_complex, case_type, case_number, case_year,
			status, current_step, steps, captcha_attempts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return r.db.QueryRow(
		ctx, query,
		lookup.ID,
		lookup.CourtComplex,
		lookup.CaseType,
		lookup.CaseNumber,
		lookup.CaseYear,
		lookup.Status,
		lookup.CurrentStep,
		lookup.Steps,
		lookup.CaptchaAttempts,
	).Scan(&lookup.CreatedAt, &lookup.UpdatedAt)
}

// GetByID retrieves a lookup by ID
func (r *LookupRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lookup, error) {
	lookup := &models.Lookup{}
	query := `
		SELECT id, court_complex, case_type, case_number, case_year,
			status, current_step, steps, captcha_attempts, error_kind, error_message,
			created_at, updated_at, completed_at
		FROM case_lookups
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&lookup.ID,
		&lookup.CourtComplex,
		&lookup.CaseType,
		&lookup.CaseNumber,
		&lookup.CaseYear,
		&lookup.Status,
		&lookup.CurrentStep,
		&lookup.Steps,
		&lookup.CaptchaAttempts,
		&lookup.ErrorKind,
		&lookup.ErrorMessage,
		&lookup.CreatedAt,
		&lookup.UpdatedAt,
		&lookup.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLookupNotFound
	}
	if err != nil {
		return nil, err
	}

	if lookup.Steps == nil {
		lookup.Steps = make(models.LookupSteps, 0)
	}

	return lookup, nil
}

// UpdateProgress records the current step and step states, moving the lookup in progress
func (r *LookupRepository) UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.LookupSteps) error {
	query := `
		UPDATE case_lookups SET
			status = $2,
			current_step = $3,
			steps = $4,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.LookupStatusInProgress, currentStep, steps)
	return err
}

// UpdateCaptchaAttempts records how many OCR passes have been made
func (r *LookupRepository) UpdateCaptchaAttempts(ctx context.Context, id uuid.UUID, attempts int) error {
	query := `
		UPDATE case_lookups SET
			captcha_attempts = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, attempts)
	return err
}

// Complete marks a lookup as completed
func (r *LookupRepository) Complete(ctx context.Context, id uuid.UUID, steps models.LookupSteps) error {
	now := time.Now()
	query := `
		UPDATE case_lookups SET
			status = $2,
			steps = $3,
			completed_at = $4,
			updated_at = $4
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.LookupStatusCompleted, steps, now)
	return err
}

// Fail marks a lookup as failed with the error kind and message
func (r *LookupRepository) Fail(ctx context.Context, id uuid.UUID, steps models.LookupSteps, errorKind, errorMessage string) error {
	now := time.Now()
	query := `
		UPDATE case_lookups SET
			status = $2,
			steps = $3,
			error_kind = $4,
			error_message = $5,
			completed_at = $6,
			updated_at = $6
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.LookupStatusFailed, steps, errorKind, errorMessage, now)
	return err
}
