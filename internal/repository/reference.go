package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cradoe/skypay/internal/models"
	"github.com/jmoiron/sqlx"
)

type BankRepository interface {
	Upsert(ctx context.Context, bank models.Bank) error
	Exists(ctx context.Context, code string) (bool, error)
	GetAll(ctx context.Context) ([]models.Bank, error)
}

type BankRepositoryImpl struct {
	db *sqlx.DB
}

func NewBankRepository(db *sqlx.DB) BankRepository {
	return &BankRepositoryImpl{db: db}
}

func (repo *BankRepositoryImpl) Upsert(ctx context.Context, bank models.Bank) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO banks (code, name) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = $2`

	_, err := repo.db.ExecContext(ctx, query, bank.Code, bank.Name)
	return err
}

func (repo *BankRepositoryImpl) Exists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists bool

	query := `SELECT EXISTS(SELECT 1 FROM banks WHERE code = $1)`

	err := repo.db.GetContext(ctx, &exists, query, code)
	return exists, err
}

func (repo *BankRepositoryImpl) GetAll(ctx context.Context) ([]models.Bank, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var banks []models.Bank

	err := repo.db.SelectContext(ctx, &banks, `SELECT code, name FROM banks ORDER BY name`)
	if err != nil {
		return nil, err
	}

	return banks, nil
}

type ReviewerRepository interface {
	Upsert(ctx context.Context, reviewer *models.Reviewer) error
	GetByEmail(ctx context.Context, email string) (*models.Reviewer, bool, error)
	GetOne(ctx context.Context, id string) (*models.Reviewer, bool, error)
}

type ReviewerRepositoryImpl struct {
	db *sqlx.DB
}

func NewReviewerRepository(db *sqlx.DB) ReviewerRepository {
	return &ReviewerRepositoryImpl{db: db}
}

func (repo *ReviewerRepositoryImpl) Upsert(ctx context.Context, reviewer *models.Reviewer) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO reviewers (email, name, hashed_password)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET name = $2
		RETURNING id, created_at`

	return repo.db.QueryRowxContext(ctx, query,
		reviewer.Email,
		reviewer.Name,
		reviewer.HashedPassword,
	).Scan(&reviewer.ID, &reviewer.CreatedAt)
}

func (repo *ReviewerRepositoryImpl) GetByEmail(ctx context.Context, email string) (*models.Reviewer, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var reviewer models.Reviewer

	err := repo.db.GetContext(ctx, &reviewer, `SELECT * FROM reviewers WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &reviewer, true, nil
}

func (repo *ReviewerRepositoryImpl) GetOne(ctx context.Context, id string) (*models.Reviewer, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var reviewer models.Reviewer

	err := repo.db.GetContext(ctx, &reviewer, `SELECT * FROM reviewers WHERE id::text = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &reviewer, true, nil
}
