package seeders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cradoe/gopass"
	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/repository"
)

const defaultTimeout = 5 * time.Second

// Banks is the settlement bank list offered to applicants.
var Banks = []models.Bank{
	{Code: "044", Name: "Access Bank"},
	{Code: "058", Name: "Guaranty Trust Bank"},
	{Code: "011", Name: "First Bank of Nigeria"},
	{Code: "057", Name: "Zenith Bank"},
	{Code: "033", Name: "United Bank for Africa"},
	{Code: "232", Name: "Sterling Bank"},
}

type ReviewerSeed struct {
	Email    string
	Name     string
	Password string
}

type Seeder struct {
	DB     repository.Database
	logger *slog.Logger
}

func New(DB repository.Database, logger *slog.Logger) *Seeder {
	return &Seeder{
		DB:     DB,
		logger: logger,
	}
}

// Run seeds the bank list and, when a password is given, the first reviewer.
func (seeder *Seeder) Run(reviewer ReviewerSeed) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := seeder.seedBanks(ctx); err != nil {
		return err
	}

	if reviewer.Password == "" {
		seeder.logger.Warn("no reviewer password set, skipping reviewer seed")
		return nil
	}

	return seeder.seedReviewer(ctx, reviewer)
}

func (seeder *Seeder) seedBanks(ctx context.Context) error {
	for _, bank := range Banks {
		if err := seeder.DB.Bank().Upsert(ctx, bank); err != nil {
			return fmt.Errorf("failed to seed bank %s: %w", bank.Code, err)
		}
	}

	seeder.logger.Info("banks seeded", "count", len(Banks))
	return nil
}

func (seeder *Seeder) seedReviewer(ctx context.Context, seed ReviewerSeed) error {
	// reviewers approve merchants, so their password must meet the same rules as any account
	_, errs := gopass.Validate(seed.Password)
	if errs != nil {
		return fmt.Errorf("reviewer password is too weak: %v", errs)
	}

	hashedPassword, err := gopass.Hash(seed.Password)
	if err != nil {
		return err
	}

	reviewer := &models.Reviewer{
		Email:          seed.Email,
		Name:           seed.Name,
		HashedPassword: hashedPassword,
	}

	if err := seeder.DB.Reviewer().Upsert(ctx, reviewer); err != nil {
		return fmt.Errorf("failed to seed reviewer: %w", err)
	}

	seeder.logger.Info("reviewer seeded", "email", reviewer.Email, "id", reviewer.ID)
	return nil
}
