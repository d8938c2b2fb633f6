package models

import (
	"database/sql"
	"time"
)

type StepKind string

const (
	StepContactVerification           StepKind = "contact_verification"
	StepBusinessRegistryLookup        StepKind = "business_registry_lookup"
	StepDirectorIdentityVerification  StepKind = "director_identity_verification"
	StepDirectorConsent               StepKind = "director_consent"
	StepSettlementAccountVerification StepKind = "settlement_account_verification"
)

// StepOrder is the order in which steps gate the applicant.
var StepOrder = []StepKind{
	StepContactVerification,
	StepBusinessRegistryLookup,
	StepDirectorIdentityVerification,
	StepDirectorConsent,
	StepSettlementAccountVerification,
}

func (k StepKind) Valid() bool {
	for _, s := range StepOrder {
		if s == k {
			return true
		}
	}
	return false
}

type StepStatus string

const (
	StepNotStarted StepStatus = "not_started"
	StepInProgress StepStatus = "in_progress"
	StepVerified   StepStatus = "verified"
	StepFailed     StepStatus = "failed"
	StepExpired    StepStatus = "expired"
)

type FailureReason string

const (
	FailureNone              FailureReason = ""
	FailureInvalidInput      FailureReason = "invalid_input"
	FailureNoMatch           FailureReason = "no_match"
	FailureProviderTransient FailureReason = "provider_transient"
	FailureAttemptsExceeded  FailureReason = "attempts_exceeded"
	FailureConsentDeclined   FailureReason = "consent_declined"
	FailureConsentExpired    FailureReason = "consent_expired"
	FailureTimedOut          FailureReason = "timed_out"
)

// StepRecord is unique per (ApplicantID, Kind). Retries mutate it in place.
type StepRecord struct {
	ApplicantID    string        `db:"applicant_id"`
	Kind           StepKind      `db:"step_kind"`
	Status         StepStatus    `db:"status"`
	ProviderRef    string        `db:"provider_ref"`
	Attempts       int           `db:"attempts"`
	FailureReason  FailureReason `db:"failure_reason"`
	FailureDetail  string        `db:"failure_detail"`
	IdempotencyKey string        `db:"idempotency_key"`
	StartedAt      sql.NullTime  `db:"started_at"`
	LastAttemptAt  sql.NullTime  `db:"last_attempt_at"`
	VerifiedAt     sql.NullTime  `db:"verified_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

type ConsentStatus string

const (
	ConsentSent     ConsentStatus = "sent"
	ConsentGranted  ConsentStatus = "granted"
	ConsentDeclined ConsentStatus = "declined"
	ConsentExpired  ConsentStatus = "expired"
)

type DirectorConsent struct {
	ID            string        `db:"id"`
	ApplicantID   string        `db:"applicant_id"`
	DirectorEmail string        `db:"director_email"`
	Primary       bool          `db:"is_primary"`
	Token         string        `db:"token"`
	LinkURL       string        `db:"link_url"`
	Status        ConsentStatus `db:"status"`
	IssuedAt      time.Time     `db:"issued_at"`
	ExpiresAt     time.Time     `db:"expires_at"`
	RespondedAt   sql.NullTime  `db:"responded_at"`
}

// SettlementAccountBinding is the verified payout account. Superseded bindings are
// archived, never overwritten.
type SettlementAccountBinding struct {
	ID            string       `db:"id"`
	ApplicantID   string       `db:"applicant_id"`
	AccountNumber string       `db:"account_number"`
	BankCode      string       `db:"bank_code"`
	HolderName    string       `db:"holder_name"`
	NameMatched   bool         `db:"name_matched"`
	MatchScore    float64      `db:"match_score"`
	Linked        bool         `db:"linked"`
	Active        bool         `db:"active"`
	CreatedAt     time.Time    `db:"created_at"`
	ArchivedAt    sql.NullTime `db:"archived_at"`
}

type OTPChannel string

const (
	OTPChannelEmail OTPChannel = "email"
	OTPChannelPhone OTPChannel = "phone"
)

type OTPChallenge struct {
	ApplicantID string       `db:"applicant_id"`
	Channel     OTPChannel   `db:"channel"`
	CodeHash    string       `db:"code_hash"`
	ExpiresAt   time.Time    `db:"expires_at"`
	Attempts    int          `db:"attempts"`
	VerifiedAt  sql.NullTime `db:"verified_at"`
	CreatedAt   time.Time    `db:"created_at"`
}
