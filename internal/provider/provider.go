package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed verification call.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindTimeout             Kind = "timeout"
	KindRateLimited         Kind = "rate_limited"
)

// Error is the only error type a Client returns for a completed call.
// Message is safe to show to the applicant; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same call may succeed later without new input.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindProviderUnavailable, KindTimeout, KindRateLimited:
		return true
	}
	return false
}

func newError(op string, kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the classification of err. Unclassified errors report
// KindProviderUnavailable since nothing is known about their cause.
func KindOf(err error) Kind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return KindProviderUnavailable
}

func IsRetryable(err error) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

type RegistryRecord struct {
	Reference      string `json:"reference"`
	RegistryNumber string `json:"rc_number"`
	LegalName      string `json:"company_name"`
	Address        string `json:"address"`
}

type IdentityRecord struct {
	Reference   string `json:"reference"`
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
}

type LivenessResult struct {
	Reference string  `json:"reference"`
	Passed    bool    `json:"passed"`
	Score     float64 `json:"confidence"`
}

type AccountRecord struct {
	Reference     string `json:"reference"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	HolderName    string `json:"account_name"`
}

type ConsentRequest struct {
	ApplicantID   string    `json:"applicant_id"`
	BusinessName  string    `json:"business_name"`
	DirectorEmail string    `json:"director_email"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type ConsentLink struct {
	Reference string `json:"reference"`
	URL       string `json:"url"`
}

// Client calls the external verification services. Every call carries an
// idempotency key; repeating a call with the same key has no further side effect.
type Client interface {
	LookupRegistry(ctx context.Context, key, registryNumber string) (*RegistryRecord, error)
	VerifyIdentity(ctx context.Context, key, identityNumber string) (*IdentityRecord, error)
	CheckLiveness(ctx context.Context, key, identityRef, selfieURL string) (*LivenessResult, error)
	ResolveAccount(ctx context.Context, key, accountNumber, bankCode string) (*AccountRecord, error)
	IssueConsentLink(ctx context.Context, key string, req ConsentRequest) (*ConsentLink, error)
}

// ConsentNotifier delivers a consent link to a director.
type ConsentNotifier interface {
	SendConsentLink(ctx context.Context, req ConsentRequest, link ConsentLink) error
}
