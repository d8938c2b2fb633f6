package onboarding

import (
	"context"
	"time"

	"github.com/cradoe/skypay/internal/models"
)

// StatusEvent is published whenever an applicant's stored status changes
// or the applicant is escalated.
type StatusEvent struct {
	ApplicantID  string                 `json:"applicant_id"`
	Email        string                 `json:"email"`
	BusinessName string                 `json:"business_name"`
	From         models.ApplicantStatus `json:"from"`
	To           models.ApplicantStatus `json:"to"`
	Reason       string                 `json:"reason,omitempty"`
	Escalated    bool                   `json:"escalated,omitempty"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// EventPublisher delivers status events. Publishing is best effort; the stored
// status is the source of truth.
type EventPublisher interface {
	PublishStatus(ctx context.Context, event StatusEvent) error
}

// Notifier delivers one-time codes to the applicant.
type Notifier interface {
	SendOTP(ctx context.Context, channel models.OTPChannel, recipient, code string, expiresAt time.Time) error
}

type noopPublisher struct{}

func (noopPublisher) PublishStatus(context.Context, StatusEvent) error { return nil }
