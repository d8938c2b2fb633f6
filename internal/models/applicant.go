package models

import (
	"database/sql"
	"time"
)

type ApplicantStatus string

const (
	ApplicantStarted            ApplicantStatus = "started"
	ApplicantContactVerified    ApplicantStatus = "contact_verified"
	ApplicantBusinessVerified   ApplicantStatus = "business_verified"
	ApplicantDirectorVerified   ApplicantStatus = "director_verified"
	ApplicantConsentPending     ApplicantStatus = "consent_pending"
	ApplicantSettlementVerified ApplicantStatus = "settlement_verified"
	ApplicantPendingAdminReview ApplicantStatus = "pending_admin_review"
	ApplicantActivated          ApplicantStatus = "activated"
	ApplicantRejected           ApplicantStatus = "rejected"
	ApplicantExpired            ApplicantStatus = "expired"
)

type BusinessType string

const (
	BusinessRegistered   BusinessType = "registered"
	BusinessUnregistered BusinessType = "unregistered"
)

// Applicant is one merchant onboarding attempt.
// Business and director fields are overwritten by the values the verification
// provider returns once the matching step is verified.
type Applicant struct {
	ID              string          `db:"id"`
	Email           string          `db:"email"`
	Phone           string          `db:"phone"`
	EmailVerified   bool            `db:"email_verified"`
	PhoneVerified   bool            `db:"phone_verified"`
	BusinessType    BusinessType    `db:"business_type"`
	BusinessName    string          `db:"business_name"`
	BusinessAddress string          `db:"business_address"`
	RegistryNumber  string          `db:"registry_number"`
	DirectorName    string          `db:"director_name"`
	DirectorDOB     string          `db:"director_dob"`
	Status          ApplicantStatus `db:"status"`
	StatusReason    string          `db:"status_reason"`
	ReviewerID      sql.NullString  `db:"reviewer_id"`
	EscalatedAt     sql.NullTime    `db:"escalated_at"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

type Reviewer struct {
	ID             string    `db:"id"`
	Email          string    `db:"email"`
	Name           string    `db:"name"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
}

type Bank struct {
	Code string `db:"code"`
	Name string `db:"name"`
}
