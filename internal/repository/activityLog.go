// Every onboarding action is logged against the applicant.
// The log is the audit trail kept after activation, so provider references and
// reviewer decisions are recorded here, never raw provider payloads.
// ...
// We used polymorphism to define entity and entity_id
// This allow our table to be used for different part of the application
package repository

import (
	"context"

	"github.com/cradoe/skypay/internal/models"
	"github.com/jmoiron/sqlx"
)

type ActivityRepository interface {
	Insert(ctx context.Context, log *models.ActivityLog) error
	GetAllByApplicant(ctx context.Context, applicantID string) ([]models.ActivityLog, error)
}

const (
	// ActivityLogApplicantEntity is used for status changes of the applicant itself
	ActivityLogApplicantEntity = "applicant"

	// ActivityLogStepEntity is used for verification step outcomes
	ActivityLogStepEntity = "step"

	// ActivityLogConsentEntity is used for director consent issue and responses
	ActivityLogConsentEntity = "consent"

	// ActivityLogSettlementEntity is used for settlement account bindings
	ActivityLogSettlementEntity = "settlement"
)

type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

func (repo *ActivityRepositoryImpl) Insert(ctx context.Context, log *models.ActivityLog) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO activity_logs (applicant_id, actor_id, entity, entity_id, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return repo.db.QueryRowxContext(ctx, query,
		log.ApplicantID,
		log.ActorID,
		log.Entity,
		log.EntityId,
		log.Description,
	).Scan(&log.ID, &log.CreatedAt)
}

func (repo *ActivityRepositoryImpl) GetAllByApplicant(ctx context.Context, applicantID string) ([]models.ActivityLog, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var logs []models.ActivityLog

	query := `
		SELECT * FROM activity_logs
		WHERE applicant_id = $1
		ORDER BY created_at ASC`

	err := repo.db.SelectContext(ctx, &logs, query, applicantID)
	if err != nil {
		return nil, err
	}

	return logs, nil
}
