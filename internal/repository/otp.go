package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cradoe/skypay/internal/models"
	"github.com/jmoiron/sqlx"
)

type OTPRepository interface {
	// Put replaces the live challenge for the channel.
	Put(ctx context.Context, challenge *models.OTPChallenge) error
	Get(ctx context.Context, applicantID string, channel models.OTPChannel) (*models.OTPChallenge, bool, error)
	MarkVerified(ctx context.Context, applicantID string, channel models.OTPChannel, at time.Time) error
	// RecordFailure counts a wrong code against the live challenge and returns the new count.
	RecordFailure(ctx context.Context, applicantID string, channel models.OTPChannel) (int, error)
}

type OTPRepositoryImpl struct {
	db *sqlx.DB
}

func NewOTPRepository(db *sqlx.DB) OTPRepository {
	return &OTPRepositoryImpl{db: db}
}

func (repo *OTPRepositoryImpl) Put(ctx context.Context, challenge *models.OTPChallenge) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO otp_challenges (applicant_id, channel, code_hash, expires_at, attempts, verified_at, created_at)
		VALUES ($1, $2, $3, $4, 0, NULL, $5)
		ON CONFLICT (applicant_id, channel)
		DO UPDATE SET code_hash = $3, expires_at = $4, attempts = 0, verified_at = NULL, created_at = $5`

	_, err := repo.db.ExecContext(ctx, query,
		challenge.ApplicantID,
		challenge.Channel,
		challenge.CodeHash,
		challenge.ExpiresAt,
		challenge.CreatedAt,
	)

	return err
}

func (repo *OTPRepositoryImpl) Get(ctx context.Context, applicantID string, channel models.OTPChannel) (*models.OTPChallenge, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var challenge models.OTPChallenge

	query := `SELECT * FROM otp_challenges WHERE applicant_id = $1 AND channel = $2`

	err := repo.db.GetContext(ctx, &challenge, query, applicantID, channel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &challenge, true, nil
}

func (repo *OTPRepositoryImpl) MarkVerified(ctx context.Context, applicantID string, channel models.OTPChannel, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		UPDATE otp_challenges
		SET verified_at = $1
		WHERE applicant_id = $2 AND channel = $3 AND verified_at IS NULL`

	result, err := repo.db.ExecContext(ctx, query, at, applicantID, channel)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	return rowsChanged(n)
}

func (repo *OTPRepositoryImpl) RecordFailure(ctx context.Context, applicantID string, channel models.OTPChannel) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var attempts int

	query := `
		UPDATE otp_challenges
		SET attempts = attempts + 1
		WHERE applicant_id = $1 AND channel = $2 AND verified_at IS NULL
		RETURNING attempts`

	err := repo.db.QueryRowxContext(ctx, query, applicantID, channel).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConflict
	}

	return attempts, err
}
