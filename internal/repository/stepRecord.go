// Step records are the only shared mutable state of the onboarding engine.
// Every write names the status the writer last read; the store applies it only if
// that is still the stored status. A double-submitted OTP or two racing retries
// therefore produce one success and one ErrConflict instead of a silent overwrite.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cradoe/skypay/internal/models"
	"github.com/jmoiron/sqlx"
)

type StepRecordRepository interface {
	Get(ctx context.Context, applicantID string, kind models.StepKind) (*models.StepRecord, bool, error)
	GetAll(ctx context.Context, applicantID string) ([]models.StepRecord, error)
	// Save inserts the record when expected is StepNotStarted, otherwise updates it
	// only if the stored status equals expected.
	Save(ctx context.Context, record *models.StepRecord, expected models.StepStatus) error
}

// checkStepTransition enforces that a verified step can only expire.
func checkStepTransition(expected, next models.StepStatus) error {
	if expected == models.StepVerified && next != models.StepExpired {
		return ErrInvalidTransition
	}
	return nil
}

type StepRecordRepositoryImpl struct {
	db *sqlx.DB
}

func NewStepRecordRepository(db *sqlx.DB) StepRecordRepository {
	return &StepRecordRepositoryImpl{db: db}
}

func (repo *StepRecordRepositoryImpl) Get(ctx context.Context, applicantID string, kind models.StepKind) (*models.StepRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var record models.StepRecord

	query := `SELECT * FROM step_records WHERE applicant_id = $1 AND step_kind = $2`

	err := repo.db.GetContext(ctx, &record, query, applicantID, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &record, true, nil
}

func (repo *StepRecordRepositoryImpl) GetAll(ctx context.Context, applicantID string) ([]models.StepRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var records []models.StepRecord

	query := `SELECT * FROM step_records WHERE applicant_id = $1`

	err := repo.db.SelectContext(ctx, &records, query, applicantID)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (repo *StepRecordRepositoryImpl) Save(ctx context.Context, record *models.StepRecord, expected models.StepStatus) error {
	if err := checkStepTransition(expected, record.Status); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		result sql.Result
		err    error
	)

	if expected == models.StepNotStarted {
		query := `
			INSERT INTO step_records (
				applicant_id, step_kind, status, provider_ref, attempts, failure_reason,
				failure_detail, idempotency_key, started_at, last_attempt_at, verified_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (applicant_id, step_kind) DO NOTHING`

		result, err = repo.db.ExecContext(ctx, query,
			record.ApplicantID,
			record.Kind,
			record.Status,
			record.ProviderRef,
			record.Attempts,
			record.FailureReason,
			record.FailureDetail,
			record.IdempotencyKey,
			record.StartedAt,
			record.LastAttemptAt,
			record.VerifiedAt,
		)
	} else {
		query := `
			UPDATE step_records
			SET
				status = $1,
				provider_ref = $2,
				attempts = $3,
				failure_reason = $4,
				failure_detail = $5,
				idempotency_key = $6,
				started_at = $7,
				last_attempt_at = $8,
				verified_at = $9,
				updated_at = NOW()
			WHERE applicant_id = $10 AND step_kind = $11 AND status = $12`

		result, err = repo.db.ExecContext(ctx, query,
			record.Status,
			record.ProviderRef,
			record.Attempts,
			record.FailureReason,
			record.FailureDetail,
			record.IdempotencyKey,
			record.StartedAt,
			record.LastAttemptAt,
			record.VerifiedAt,
			record.ApplicantID,
			record.Kind,
			expected,
		)
	}
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	return rowsChanged(n)
}
