package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cradoe/skypay/internal/models"
	"github.com/jmoiron/sqlx"
)

type SettlementRepository interface {
	GetActive(ctx context.Context, applicantID string) (*models.SettlementAccountBinding, bool, error)
	// Bind archives the current active binding, if any, and stores the new one as active.
	Bind(ctx context.Context, binding *models.SettlementAccountBinding) error
	History(ctx context.Context, applicantID string) ([]models.SettlementAccountBinding, error)
}

type SettlementRepositoryImpl struct {
	db *sqlx.DB
}

func NewSettlementRepository(db *sqlx.DB) SettlementRepository {
	return &SettlementRepositoryImpl{db: db}
}

func (repo *SettlementRepositoryImpl) GetActive(ctx context.Context, applicantID string) (*models.SettlementAccountBinding, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var binding models.SettlementAccountBinding

	query := `SELECT * FROM settlement_accounts WHERE applicant_id = $1 AND active`

	err := repo.db.GetContext(ctx, &binding, query, applicantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &binding, true, nil
}

func (repo *SettlementRepositoryImpl) Bind(ctx context.Context, binding *models.SettlementAccountBinding) (err error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// archival and the new binding commit together so there is never a moment
	// with two active accounts or none after a successful verification
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		UPDATE settlement_accounts
		SET active = FALSE, archived_at = NOW()
		WHERE applicant_id = $1 AND active`,
		binding.ApplicantID,
	)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO settlement_accounts (
			applicant_id, account_number, bank_code, holder_name, name_matched, match_score, linked, active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, created_at`

	err = tx.QueryRowxContext(ctx, query,
		binding.ApplicantID,
		binding.AccountNumber,
		binding.BankCode,
		binding.HolderName,
		binding.NameMatched,
		binding.MatchScore,
		binding.Linked,
	).Scan(&binding.ID, &binding.CreatedAt)
	if err != nil {
		return err
	}

	binding.Active = true

	return tx.Commit()
}

func (repo *SettlementRepositoryImpl) History(ctx context.Context, applicantID string) ([]models.SettlementAccountBinding, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var bindings []models.SettlementAccountBinding

	query := `
		SELECT * FROM settlement_accounts
		WHERE applicant_id = $1
		ORDER BY created_at ASC`

	err := repo.db.SelectContext(ctx, &bindings, query, applicantID)
	if err != nil {
		return nil, err
	}

	return bindings, nil
}
