package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cradoe/skypay/internal/models"
	"github.com/jmoiron/sqlx"
)

type ConsentRepository interface {
	Insert(ctx context.Context, consent *models.DirectorConsent) error
	GetByToken(ctx context.Context, token string) (*models.DirectorConsent, bool, error)
	GetAllByApplicant(ctx context.Context, applicantID string) ([]models.DirectorConsent, error)
	// UpdateStatus resolves a sent consent. Granted and declined consents are immutable.
	UpdateStatus(ctx context.Context, id string, expected, next models.ConsentStatus, at time.Time) error
}

func checkConsentTransition(expected, next models.ConsentStatus) error {
	if expected != models.ConsentSent || next == models.ConsentSent {
		return ErrInvalidTransition
	}
	return nil
}

type ConsentRepositoryImpl struct {
	db *sqlx.DB
}

func NewConsentRepository(db *sqlx.DB) ConsentRepository {
	return &ConsentRepositoryImpl{db: db}
}

func (repo *ConsentRepositoryImpl) Insert(ctx context.Context, consent *models.DirectorConsent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO director_consents (
			applicant_id, director_email, is_primary, token, link_url, status, issued_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	return repo.db.QueryRowxContext(ctx, query,
		consent.ApplicantID,
		consent.DirectorEmail,
		consent.Primary,
		consent.Token,
		consent.LinkURL,
		consent.Status,
		consent.IssuedAt,
		consent.ExpiresAt,
	).Scan(&consent.ID)
}

func (repo *ConsentRepositoryImpl) GetByToken(ctx context.Context, token string) (*models.DirectorConsent, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var consent models.DirectorConsent

	query := `SELECT * FROM director_consents WHERE token = $1`

	err := repo.db.GetContext(ctx, &consent, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &consent, true, nil
}

func (repo *ConsentRepositoryImpl) GetAllByApplicant(ctx context.Context, applicantID string) ([]models.DirectorConsent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var consents []models.DirectorConsent

	query := `
		SELECT * FROM director_consents
		WHERE applicant_id = $1
		ORDER BY issued_at ASC`

	err := repo.db.SelectContext(ctx, &consents, query, applicantID)
	if err != nil {
		return nil, err
	}

	return consents, nil
}

func (repo *ConsentRepositoryImpl) UpdateStatus(ctx context.Context, id string, expected, next models.ConsentStatus, at time.Time) error {
	if err := checkConsentTransition(expected, next); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		UPDATE director_consents
		SET status = $1, responded_at = $2
		WHERE id = $3 AND status = $4`

	result, err := repo.db.ExecContext(ctx, query, next, at, id, expected)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	return rowsChanged(n)
}
