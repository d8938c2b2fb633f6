package worker

import (
	"context"
	"log/slog"

	"github.com/cradoe/skypay/internal/smtp"
	"github.com/cradoe/skypay/internal/stream"
)

type Worker struct {
	KafkaStream *stream.KafkaStream
	Mailer      smtp.MailerInterface
	Logger      *slog.Logger
	Ctx         context.Context

	// BaseURL is the public address used in reviewer links.
	BaseURL string
	// ReviewEmail receives a message whenever an applicant needs a decision.
	ReviewEmail string
}

const (
	// statusNotificationGroupID is used for workers that tell applicants and reviewers about status changes
	statusNotificationGroupID = "status-notification-group"
)

// Our workers typically need the mailer and the kafka event stream.
// Worker-specific dependencies can be passed as arguments to the worker.
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream: wk.KafkaStream,
		Mailer:      wk.Mailer,
		Logger:      wk.Logger,
		Ctx:         wk.Ctx,
		BaseURL:     wk.BaseURL,
		ReviewEmail: wk.ReviewEmail,
	}
}
