package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cradoe/skypay/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type ApplicantRepository interface {
	Insert(ctx context.Context, applicant *models.Applicant) (string, error)
	GetOne(ctx context.Context, id string) (*models.Applicant, bool, error)
	// Update writes every mutable field, guarded by the status the caller read.
	Update(ctx context.Context, applicant *models.Applicant, expected models.ApplicantStatus) error
	ListByStatus(ctx context.Context, statuses ...models.ApplicantStatus) ([]models.Applicant, error)
}

type ApplicantRepositoryImpl struct {
	db *sqlx.DB
}

func NewApplicantRepository(db *sqlx.DB) ApplicantRepository {
	return &ApplicantRepositoryImpl{db: db}
}

func (repo *ApplicantRepositoryImpl) Insert(ctx context.Context, applicant *models.Applicant) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO applicants (email, phone, business_type, business_name, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := repo.db.QueryRowxContext(ctx, query,
		applicant.Email,
		applicant.Phone,
		applicant.BusinessType,
		applicant.BusinessName,
		applicant.Status,
	).Scan(&applicant.ID, &applicant.CreatedAt, &applicant.UpdatedAt)
	if err != nil {
		return "", err
	}

	return applicant.ID, nil
}

func (repo *ApplicantRepositoryImpl) GetOne(ctx context.Context, id string) (*models.Applicant, bool, error) {
	// ids are uuids; anything else cannot exist and would make postgres reject the query
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var applicant models.Applicant

	query := `SELECT * FROM applicants WHERE id = $1`

	err := repo.db.GetContext(ctx, &applicant, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &applicant, true, nil
}

func (repo *ApplicantRepositoryImpl) Update(ctx context.Context, applicant *models.Applicant, expected models.ApplicantStatus) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		UPDATE applicants
		SET
			email_verified = $1,
			phone_verified = $2,
			business_name = $3,
			business_address = $4,
			registry_number = $5,
			director_name = $6,
			director_dob = $7,
			status = $8,
			status_reason = $9,
			reviewer_id = $10,
			escalated_at = $11,
			updated_at = NOW()
		WHERE id = $12 AND status = $13
		RETURNING updated_at`

	err := repo.db.QueryRowxContext(ctx, query,
		applicant.EmailVerified,
		applicant.PhoneVerified,
		applicant.BusinessName,
		applicant.BusinessAddress,
		applicant.RegistryNumber,
		applicant.DirectorName,
		applicant.DirectorDOB,
		applicant.Status,
		applicant.StatusReason,
		applicant.ReviewerID,
		applicant.EscalatedAt,
		applicant.ID,
		expected,
	).Scan(&applicant.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrConflict
	}

	return err
}

func (repo *ApplicantRepositoryImpl) ListByStatus(ctx context.Context, statuses ...models.ApplicantStatus) ([]models.Applicant, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	query := `
		SELECT * FROM applicants
		WHERE status = ANY($1)
		ORDER BY updated_at ASC`

	var applicants []models.Applicant
	err := repo.db.SelectContext(ctx, &applicants, query, pq.Array(values))
	if err != nil {
		return nil, err
	}

	return applicants, nil
}
