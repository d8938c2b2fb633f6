package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cradoe/skypay/assets"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"
)

const defaultTimeout = 3 * time.Second

var (
	// ErrConflict is returned when a write names an expected prior status that no
	// longer matches the stored one. Callers re-read and reapply.
	ErrConflict = errors.New("write conflict: stored status does not match expected status")

	// ErrInvalidTransition is returned for writes that would break record immutability,
	// such as moving a verified step to anything but expired.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Database interface defines available repositories
type Database interface {
	Applicant() ApplicantRepository
	StepRecord() StepRecordRepository
	Consent() ConsentRepository
	Settlement() SettlementRepository
	OTP() OTPRepository
	Bank() BankRepository
	Reviewer() ReviewerRepository
	Activity() ActivityRepository

	Close() error
}

// DatabaseImpl implements the Database interface
type DatabaseImpl struct {
	db             *sqlx.DB
	applicantRepo  ApplicantRepository
	stepRecordRepo StepRecordRepository
	consentRepo    ConsentRepository
	settlementRepo SettlementRepository
	otpRepo        OTPRepository
	bankRepo       BankRepository
	reviewerRepo   ReviewerRepository
	activityRepo   ActivityRepository

	mu sync.Mutex
}

// New initializes a database connection and runs migrations if enabled
func New(dsn string, automigrate bool) (Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", "postgres://"+dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	if automigrate {
		iofsDriver, err := iofs.New(assets.EmbeddedFiles, "migrations")
		if err != nil {
			return nil, err
		}

		migrator, err := migrate.NewWithSourceInstance("iofs", iofsDriver, "postgres://"+dsn)
		if err != nil {
			return nil, err
		}

		if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, err
		}
	}

	return &DatabaseImpl{db: db}, nil
}

func (d *DatabaseImpl) Close() error {
	return d.db.Close()
}

func (d *DatabaseImpl) Applicant() ApplicantRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.applicantRepo == nil {
		d.applicantRepo = NewApplicantRepository(d.db)
	}
	return d.applicantRepo
}

func (d *DatabaseImpl) StepRecord() StepRecordRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stepRecordRepo == nil {
		d.stepRecordRepo = NewStepRecordRepository(d.db)
	}
	return d.stepRecordRepo
}

func (d *DatabaseImpl) Consent() ConsentRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.consentRepo == nil {
		d.consentRepo = NewConsentRepository(d.db)
	}
	return d.consentRepo
}

func (d *DatabaseImpl) Settlement() SettlementRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.settlementRepo == nil {
		d.settlementRepo = NewSettlementRepository(d.db)
	}
	return d.settlementRepo
}

func (d *DatabaseImpl) OTP() OTPRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.otpRepo == nil {
		d.otpRepo = NewOTPRepository(d.db)
	}
	return d.otpRepo
}

func (d *DatabaseImpl) Bank() BankRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bankRepo == nil {
		d.bankRepo = NewBankRepository(d.db)
	}
	return d.bankRepo
}

func (d *DatabaseImpl) Reviewer() ReviewerRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reviewerRepo == nil {
		d.reviewerRepo = NewReviewerRepository(d.db)
	}
	return d.reviewerRepo
}

func (d *DatabaseImpl) Activity() ActivityRepository {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.activityRepo == nil {
		d.activityRepo = NewActivityRepository(d.db)
	}
	return d.activityRepo
}

// rowsChanged turns a zero-row conditional write into ErrConflict.
func rowsChanged(n int64) error {
	if n == 0 {
		return ErrConflict
	}
	return nil
}
