package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/provider"
	"github.com/cradoe/skypay/internal/smtp"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// Notifier sends one-time codes and director consent links by email and SMS.
type Notifier struct {
	mailer smtp.MailerInterface
	sms    SMSSender
	logger *slog.Logger
}

func New(mailer smtp.MailerInterface, sms SMSSender, logger *slog.Logger) *Notifier {
	return &Notifier{mailer: mailer, sms: sms, logger: logger}
}

func (n *Notifier) SendOTP(ctx context.Context, channel models.OTPChannel, recipient, code string, expiresAt time.Time) error {
	switch channel {
	case models.OTPChannelEmail:
		return n.mailer.Send(recipient, map[string]any{
			"Code":      code,
			"ExpiresAt": expiresAt,
		}, "otp.tmpl")

	case models.OTPChannelPhone:
		minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
		if minutes < 1 {
			minutes = 1
		}
		body := fmt.Sprintf("Your SkyPay verification code is %s. It expires in %d minutes.", code, minutes)
		return n.sms.Send(ctx, recipient, body)
	}

	return fmt.Errorf("unsupported otp channel %q", channel)
}

func (n *Notifier) SendConsentLink(ctx context.Context, req provider.ConsentRequest, link provider.ConsentLink) error {
	err := n.mailer.Send(req.DirectorEmail, map[string]any{
		"BusinessName": req.BusinessName,
		"LinkURL":      link.URL,
		"ExpiresAt":    req.ExpiresAt,
	}, "director-consent.tmpl")
	if err != nil {
		return err
	}

	n.logger.Info("consent link sent", "applicant_id", req.ApplicantID, "director", req.DirectorEmail)
	return nil
}
