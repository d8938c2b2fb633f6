package onboarding

import (
	"errors"
	"fmt"

	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/repository"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNoMatch           = errors.New("no matching record")
	ErrProviderTransient = errors.New("verification provider temporarily unavailable")
	ErrConflict          = repository.ErrConflict
	ErrAttemptsExceeded  = errors.New("maximum attempts exceeded")
	ErrConsentDeclined   = errors.New("director consent declined")
	ErrConsentExpired    = errors.New("director consent expired")

	ErrApplicantNotFound = errors.New("applicant not found")
	ErrConsentNotFound   = errors.New("consent not found")
	ErrInvalidState      = errors.New("operation not allowed in the current state")
)

// InputError reports malformed applicant data. Nothing is recorded for it and
// it does not count as an attempt.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, message string) error {
	return &InputError{Field: field, Message: message}
}

// StepFailure is the classified reason a step attempt did not verify.
type StepFailure struct {
	Kind        models.StepKind      `json:"step"`
	Reason      models.FailureReason `json:"reason"`
	Detail      string               `json:"detail"`
	Director    string               `json:"director,omitempty"`
	Attempts    int                  `json:"attempts"`
	MaxAttempts int                  `json:"max_attempts"`
}

func (f *StepFailure) Error() string {
	if f.Director != "" {
		return fmt.Sprintf("%s failed (%s) for %s: %s", f.Kind, f.Reason, f.Director, f.Detail)
	}
	return fmt.Sprintf("%s failed (%s): %s", f.Kind, f.Reason, f.Detail)
}

func (f *StepFailure) Is(target error) bool {
	sentinel := reasonError(f.Reason)
	return sentinel != nil && sentinel == target
}

func reasonError(reason models.FailureReason) error {
	switch reason {
	case models.FailureInvalidInput:
		return ErrInvalidInput
	case models.FailureNoMatch:
		return ErrNoMatch
	case models.FailureProviderTransient, models.FailureTimedOut:
		return ErrProviderTransient
	case models.FailureAttemptsExceeded:
		return ErrAttemptsExceeded
	case models.FailureConsentDeclined:
		return ErrConsentDeclined
	case models.FailureConsentExpired:
		return ErrConsentExpired
	}
	return nil
}
